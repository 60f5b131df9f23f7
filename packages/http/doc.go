// Package http dispatches normalized requests for postbox.
//
// It wraps the standard library's http package with:
//   - A Transport seam so executions can run against fakes
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - A bounded response body
//   - Classification of failures into timeout, network and protocol errors
//
// Executions are never retried.
package http
