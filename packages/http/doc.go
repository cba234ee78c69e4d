// Package http provides the HTTP client used to execute API calls.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts (every call is bounded)
//   - Redirect handling
//   - Proxy and TLS verification settings
//   - Content-type driven response body decoding
package http
