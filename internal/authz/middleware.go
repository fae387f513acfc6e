package authz

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// MessageAccessDenied is the error body for denied requests.
const MessageAccessDenied = "access denied"

// HTTPMiddleware returns a net/http middleware that enforces the policies
// against the request's security context.
func (e *Engine) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := e.Authorize(r.Context(), requestFromHTTP(r))
			if !decision.Allowed {
				e.logDenied(r, decision)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": MessageAccessDenied})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GinMiddleware returns a gin middleware that enforces the policies.
func (e *Engine) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := requestFromHTTP(c.Request)
		req.ClientIP = c.ClientIP()

		decision := e.Authorize(c.Request.Context(), req)
		if !decision.Allowed {
			e.logDenied(c.Request, decision)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": MessageAccessDenied})
			return
		}
		c.Next()
	}
}

func (e *Engine) logDenied(r *http.Request, decision Decision) {
	e.logger.WithContext(r.Context()).Warn("access denied",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.String("policy", decision.Policy),
		observability.String("reason", decision.Reason),
	)
}

func requestFromHTTP(r *http.Request) *Request {
	token, _ := security.CurrentToken(r.Context())
	return &Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		ClientIP: remoteIP(r.RemoteAddr),
		Token:    token,
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
