// Package middleware provides the gin middleware for the control API.
//
// Middleware stack includes:
//   - RequestLogger: request ids (X-Request-ID) and access logging via zap
//   - CORS: allows the launcher webview origins
//   - RateLimit: per-IP token bucket rate limiting with idle eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestLogger(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
