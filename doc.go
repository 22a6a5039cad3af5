// Package tineye is a client for the TinEye reverse image search REST API.
//
// A Client is created once with the API base URL and the API key, and is then
// used for any number of calls from any number of goroutines:
//
//	client, err := tineye.New(tineye.DefaultAPIURL, os.Getenv("TINEYE_API_KEY"),
//	    tineye.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	resp, err := client.SearchURL(ctx, "https://example.com/cat.jpg", tineye.WithLimit(10))
//
// Each call performs exactly one HTTP exchange. There are no retries and no
// caching.
//
// # Errors
//
// Failures are reported with four error types, all usable with errors.As:
//   - ConfigurationError: New was given a bad base URL or no API key
//   - RequestError: an argument was rejected before any network activity
//   - APIError: the server refused the call (HTTP or in-body status), or no
//     response was obtained (see APIError.Kind for timeouts and cancellation)
//   - ProtocolError: the response was not the documented JSON shape
//
// The HTTP status is checked before the body, so a non-2xx reply is always an
// APIError of kind KindHTTP even when its body carries a success code.
//
// # Authentication
//
// The API key is sent in the x-api-key header of every request. It is never
// written to the logger passed with WithLogger.
package tineye
