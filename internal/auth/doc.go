// Package auth provides the API key authentication gate for keygate.
//
// The Gate inspects a request for an API key, hands it to an Authority and
// either lets the request proceed with an authenticated token installed in
// the per-request security context, or short-circuits it:
//
//   - no key and forceAPIKey enabled: 401 with an empty body
//   - key rejected by the Authority: 403 with the rejection reason
//   - Authority unavailable: 503 "Authentication service unavailable"
//
// Error bodies follow the request format: {"error":"<reason>"} for JSON
// requests, the bare reason as text/plain otherwise.
//
// # Usage
//
//	gate, err := auth.NewGate(authority,
//	    auth.WithForceAPIKey(true),
//	    auth.WithGateLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	http.Handle("/", gate.Middleware()(handler))
//
// Downstream handlers read the authenticated token with
// security.CurrentToken(r.Context()).
//
// Adapters are provided for gin (GinMiddleware) and gRPC
// (UnaryInterceptor, StreamInterceptor). Concrete authorities backed by key
// stores live in the apikey subpackage.
package auth
