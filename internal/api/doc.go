// Package api holds the HTTP pieces owned by the bootstrap layer: the root
// greeting, liveness and readiness endpoints, the JSON error envelope, the CORS
// policy, and the request ID, rate limit, access log and recovery middleware.
package api
