// Package middleware provides the HTTP middleware wrapped around the keygate
// API handler.
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Logging: one structured line per request, including the principal
//     the gate authenticated, if any
//   - RecordPrincipal: placed after the auth gate, hands the principal
//     name to Logging
//   - Recovery: turns handler panics into 500 responses
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.Logging(logger)(
//	            gate.Middleware()(middleware.RecordPrincipal()(api)),
//	        ),
//	    ),
//	)
package middleware
