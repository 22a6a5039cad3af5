package tineye

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// newTransport builds an independent transport cloned from http.DefaultTransport,
// so that no global state is shared or mutated.
func newTransport(cfg clientConfig) (*http.Transport, error) {
	var t *http.Transport
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		t = dt.Clone()
	} else {
		t = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	t.MaxIdleConnsPerHost = 4
	t.IdleConnTimeout = 90 * time.Second

	direct := &net.Dialer{
		Timeout:   cfg.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	t.DialContext = direct.DialContext

	if cfg.proxyAddress == "" {
		return t, nil
	}

	if !isValidProxyAddress(cfg.proxyAddress) {
		return nil, &ConfigurationError{Field: "proxy", Err: ErrInvalidProxyAddress}
	}
	dialer, err := proxy.SOCKS5("tcp", cfg.proxyAddress, nil, direct)
	if err != nil {
		return nil, &ConfigurationError{Field: "proxy", Err: fmt.Errorf("failed to create SOCKS5 dialer: %w", err)}
	}
	// Name resolution happens on the proxy side.
	t.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return t, nil
}

// isValidProxyAddress checks for a "host:port" address with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
