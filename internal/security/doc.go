// Package security holds the authenticated state of a request.
//
// The package provides three building blocks:
//   - Token: an authentication attempt carrying the raw API key and, once
//     an authority accepted it, the resolved Principal
//   - Context: a mutable cell holding the current Token of a request or
//     session
//   - SessionStore: an optional registry that lets a Context outlive a
//     single request
//
// # Ownership
//
// The authentication gate is the only writer of a Context during the
// authentication phase. Everything downstream (authorization, handlers)
// reads it:
//
//	tok, ok := security.CurrentToken(r.Context())
//	if ok && tok.HasRole("admin") {
//	    // ...
//	}
//
// # Tokens
//
// A Token's credential never changes after NewToken. Authorities attach a
// principal by deriving a new token:
//
//	granted := tok.Authenticate(security.Principal{ID: "key-1", Name: "user123"})
package security
