// Package authz authorizes authenticated requests with CEL policies.
//
// A policy applies to requests whose path starts with PathPrefix and whose
// method is listed in Methods (empty matches everything). Every applicable
// policy must evaluate to true; a false result or an evaluation error denies
// the request with 403. Requests no policy applies to are allowed.
//
// Expressions see these variables:
//
//	authenticated  bool
//	principal      string
//	roles          list(string)
//	scopes         list(string)
//	metadata       map(string, string)
//	path, method   string
//	client_ip      string
//	now            timestamp
//
// plus the ip_in_range(ip, cidr) function.
//
//	engine, err := authz.NewEngine([]authz.Policy{{
//	    Name:       "admin-only",
//	    PathPrefix: "/admin",
//	    Expression: `authenticated && "admin" in roles`,
//	}})
//	handler = engine.HTTPMiddleware()(handler)
package authz
