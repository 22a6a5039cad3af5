package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const testAPIKey = "cli-test-key"

// writeTestConfig writes a configuration file pointing at apiURL and
// keeping the history in dbDir.
func writeTestConfig(t *testing.T, apiURL, dbDir string) string {
	t.Helper()

	content := fmt.Sprintf(`defaults:
  apiUrl: %q
  apiKey: %q
  timeout: 5s
  dbDir: %q
profiles:
  sandbox:
    limit: 3
`, apiURL, testAPIKey, dbDir)

	path := filepath.Join(t.TempDir(), ".tineye")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// newAPIServer starts a test API server and returns its base URL.
func newAPIServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/rest/"
}

// runCLI runs the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
