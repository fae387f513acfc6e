package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/keygate/internal/security"
)

// GinMiddleware returns a gin handler running the gate. The security context
// is stored in the request context and under GinContextKey.
func GinMiddleware(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, sessionID := g.securityContext(c.Request)

		d := g.Handle(c.Request, sc)
		switch d.Outcome {
		case OutcomeProceed:
		case OutcomeUnauthorized:
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		default:
			if RequestFormat(c.Request) == FormatJSON {
				c.AbortWithStatusJSON(d.StatusCode(), gin.H{"error": d.Reason})
			} else {
				c.String(d.StatusCode(), d.Reason)
				c.Abort()
			}
			return
		}

		sc = g.startSession(c.Writer, c.Request, sc, sessionID, d)
		c.Request = c.Request.WithContext(security.WithContext(c.Request.Context(), sc))
		c.Set(GinContextKey, sc)
		c.Next()
	}
}

// GinSecurityContext returns the security context stored by GinMiddleware.
func GinSecurityContext(c *gin.Context) (*security.Context, bool) {
	v, ok := c.Get(GinContextKey)
	if !ok {
		return nil, false
	}
	sc, ok := v.(*security.Context)
	return sc, ok && sc != nil
}
