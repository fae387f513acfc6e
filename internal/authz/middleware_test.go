package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withToken(r *http.Request, token *security.Token) *http.Request {
	sc := security.NewContext()
	if token != nil {
		sc.SetCurrent(token)
	}
	return r.WithContext(security.WithContext(r.Context(), sc))
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(testPolicies())
	require.NoError(t, err)

	handler := engine.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		path       string
		remoteAddr string
		token      *security.Token
		wantStatus int
	}{
		{"public", "/public", "", nil, http.StatusOK},
		{"admin allowed", "/admin", "", adminToken(), http.StatusOK},
		{"admin denied", "/admin", "", readerToken(), http.StatusForbidden},
		{"no security context", "/admin", "", nil, http.StatusForbidden},
		{"internal from private ip", "/internal", "10.0.0.5:4242", nil, http.StatusOK},
		{"internal from public ip", "/internal", "203.0.113.9:4242", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			if tt.token != nil {
				req = withToken(req, tt.token)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())
			}
		})
	}
}

func TestGinMiddleware(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(testPolicies())
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-Role") == "admin" {
			c.Request = withToken(c.Request, adminToken())
		}
		c.Next()
	})
	router.Use(engine.GinMiddleware())
	router.GET("/admin", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Test-Role", "admin")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
