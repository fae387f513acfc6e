package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/authz"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.MetricsAddress = ""
	cfg.Authority.Store.Keys = []apikey.StaticKey{
		{ID: "k1", Key: "good-key", Name: "user123", Roles: []string{"admin"}},
		{ID: "k2", Key: "reader-key", Name: "reader", Scopes: []string{"read"}},
		{ID: "k3", Key: "revoked-key", Name: "old", Revoked: true},
	}
	cfg.Authz.Policies = []authz.Policy{
		{Name: "admin-only", PathPrefix: "/admin", Expression: `"admin" in roles`},
	}
	cfg.Observability.Metrics.Namespace = "test"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.close() })
	return app
}

func TestAPI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		target       string
		header       string
		accept       string
		expectedCode int
		expectedBody string
		jsonBody     bool
	}{
		{
			name:         "no key",
			target:       "/whoami",
			expectedCode: http.StatusUnauthorized,
			expectedBody: "",
		},
		{
			name:         "key in query",
			target:       "/whoami?api_key=good-key",
			expectedCode: http.StatusOK,
			expectedBody: `{"authenticated":true,"principal":"user123","roles":["admin"]}`,
			jsonBody:     true,
		},
		{
			name:         "key in header",
			target:       "/whoami",
			header:       "reader-key",
			expectedCode: http.StatusOK,
			expectedBody: `{"authenticated":true,"principal":"reader","scopes":["read"]}`,
			jsonBody:     true,
		},
		{
			name:         "invalid key json",
			target:       "/whoami",
			header:       "bad-key",
			accept:       "application/json",
			expectedCode: http.StatusForbidden,
			expectedBody: `{"error":"Invalid API Key"}`,
			jsonBody:     true,
		},
		{
			name:         "revoked key text",
			target:       "/whoami",
			header:       "revoked-key",
			expectedCode: http.StatusForbidden,
			expectedBody: apikey.ReasonRevoked,
		},
		{
			name:         "policy denies",
			target:       "/admin/users",
			header:       "reader-key",
			expectedCode: http.StatusForbidden,
			expectedBody: `{"error":"access denied"}`,
			jsonBody:     true,
		},
	}

	for _, router := range []string{config.RouterHTTP, config.RouterGin} {
		cfg := testConfig()
		cfg.Server.Router = router
		app := newTestApp(t, cfg)
		handler := app.apiHandler()

		for _, tt := range tests {
			t.Run(router+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, tt.target, nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				if tt.accept != "" {
					req.Header.Set("Accept", tt.accept)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				assert.Equal(t, tt.expectedCode, rec.Code)
				if tt.jsonBody {
					assert.JSONEq(t, tt.expectedBody, rec.Body.String())
				} else {
					assert.Equal(t, tt.expectedBody, rec.Body.String())
				}
				assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			})
		}
	}
}

func TestAPI_NotForced(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.ForceAPIKey = false
	handler := newTestApp(t, cfg).apiHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_Sessions(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Sessions.Enabled = true
	app := newTestApp(t, cfg)
	handler := app.apiHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami?api_key=good-key", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "keygate_session", cookies[0].Name)
	assert.Equal(t, 1, app.sessions.Len())
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, testConfig())

	api := app.apiHandler()
	api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/whoami?api_key=good-key", nil))

	handler := app.metricsHandler()

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", `"status":"healthy"`},
		{"/readyz", `"keystore"`},
		{"/metrics", "go_goroutines"},
		{"/metrics", "test_"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Contains(t, rec.Body.String(), tt.contains, tt.path)
	}
}

func TestGRPCServer(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, testConfig())
	srv, hs := app.newGRPCServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)

	tests := []struct {
		name     string
		md       metadata.MD
		wantCode codes.Code
	}{
		{"no key", metadata.MD{}, codes.Unauthenticated},
		{"valid key", metadata.Pairs("authorization", "good-key"), codes.OK},
		{"valid key as api_key", metadata.Pairs("api_key", "reader-key"), codes.OK},
		{"invalid key", metadata.Pairs("authorization", "bad-key"), codes.PermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewOutgoingContext(context.Background(), tt.md)
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode == codes.OK {
				assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
			}
		})
	}
}

func TestReload(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, testConfig())
	handler := app.apiHandler()

	get := func(target string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get("/whoami?api_key=good-key"))
	require.Equal(t, http.StatusForbidden, get("/admin/x?api_key=reader-key"))

	newCfg := testConfig()
	newCfg.Authority.Store.Keys = []apikey.StaticKey{
		{ID: "k4", Key: "rotated-key", Name: "user123", Roles: []string{"admin"}},
		{ID: "k2", Key: "reader-key", Name: "reader"},
	}
	newCfg.Authz.Policies = []authz.Policy{
		{Name: "readers-too", PathPrefix: "/admin", Expression: `authenticated`},
	}
	app.reload(newCfg)

	assert.Equal(t, http.StatusForbidden, get("/whoami?api_key=good-key"))
	assert.Equal(t, http.StatusOK, get("/whoami?api_key=rotated-key"))
	assert.Equal(t, http.StatusNotFound, get("/admin/x?api_key=reader-key"))

	// A policy that does not compile leaves the current set in place.
	broken := testConfig()
	broken.Authority = newCfg.Authority
	broken.Authz.Policies = []authz.Policy{{Name: "broken", Expression: `roles +`}}
	app.reload(broken)

	require.Len(t, app.engine.Policies(), 1)
	assert.Equal(t, "readers-too", app.engine.Policies()[0].Name)
	assert.Equal(t, http.StatusOK, get("/whoami?api_key=rotated-key"))
}

func TestBuildAuthority(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	deps := authorityDeps{logger: observability.NopLogger()}

	tests := []struct {
		name      string
		cfg       func() *config.AuthorityConfig
		wantPing  bool
		expectErr bool
	}{
		{
			name: "memory with breaker and rate limit",
			cfg: func() *config.AuthorityConfig {
				c := testConfig().Authority
				c.Breaker.Enabled = true
				c.RateLimit.Enabled = true
				return &c
			},
			wantPing: true,
		},
		{
			name: "redis",
			cfg: func() *config.AuthorityConfig {
				c := config.DefaultConfig().Authority
				c.Store.Type = config.StoreRedis
				c.Store.Redis = &config.RedisStoreConfig{URL: "redis://" + mr.Addr()}
				return &c
			},
			wantPing: true,
		},
		{
			name: "sqlite",
			cfg: func() *config.AuthorityConfig {
				c := config.DefaultConfig().Authority
				c.Store.Type = config.StoreSQLite
				c.Store.SQLite = &config.SQLiteStoreConfig{Path: filepath.Join(t.TempDir(), "keys.db")}
				return &c
			},
			wantPing: true,
		},
		{
			name: "unsupported",
			cfg: func() *config.AuthorityConfig {
				c := config.DefaultConfig().Authority
				c.Store.Type = "etcd"
				return &c
			},
			expectErr: true,
		},
		{
			name: "bcrypt on redis",
			cfg: func() *config.AuthorityConfig {
				c := config.DefaultConfig().Authority
				c.HashAlgorithm = apikey.HashAlgBcrypt
				c.Store.Type = config.StoreRedis
				c.Store.Redis = &config.RedisStoreConfig{URL: "redis://" + mr.Addr()}
				return &c
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := buildAuthority(context.Background(), tt.cfg(), deps)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { assert.NoError(t, bundle.Close()) }()

			require.NotNil(t, bundle.authority)
			if tt.wantPing {
				assert.NoError(t, bundle.Ping(context.Background()))
			}

			res := bundle.authority.Authenticate(context.Background(), security.NewToken("unknown-key"))
			assert.Equal(t, apikey.ReasonInvalid, res.Reason)
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.MetricsAddress = "127.0.0.1:0"
	cfg.Server.GRPCAddress = "127.0.0.1:0"
	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.start(ctx))
	require.NotNil(t, app.apiServer)
	require.NotNil(t, app.metricsServer)
	require.NotNil(t, app.grpcServer)

	app.shutdown(context.Background())
}

func TestWhoami(t *testing.T) {
	t.Parallel()

	assert.Equal(t, whoamiResponse{}, whoami(context.Background()))

	sc := security.NewContext()
	sc.SetCurrent(security.NewToken("k").Authenticate(security.Principal{Name: "svc", Roles: []string{"a"}}))
	got := whoami(security.WithContext(context.Background(), sc))
	assert.True(t, got.Authenticated)
	assert.Equal(t, "svc", got.Principal)
	assert.Equal(t, []string{"a"}, got.Roles)
}

func TestSampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join("..", "..", "configs", "keygate.yaml"))
	require.NoError(t, err)
	require.NoError(t, config.ValidateConfig(cfg))

	cfg.Server.MetricsAddress = ""
	handler := newTestApp(t, cfg).apiHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami?api_key=reader-key", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"principal":"reader"`)
}
