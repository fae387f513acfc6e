package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vyrodovalexey/keygate/internal/auth"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/health"
	"github.com/vyrodovalexey/keygate/internal/middleware"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// grpcHealthInterval is how often the gRPC health status follows readiness.
const grpcHealthInterval = 10 * time.Second

// whoamiResponse describes the identity of the caller.
type whoamiResponse struct {
	Authenticated bool     `json:"authenticated"`
	Principal     string   `json:"principal,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
}

// whoami reads the current token of the security context attached to ctx.
func whoami(ctx context.Context) whoamiResponse {
	token, ok := security.CurrentToken(ctx)
	if !ok || !token.IsAuthenticated() {
		return whoamiResponse{}
	}
	return whoamiResponse{
		Authenticated: true,
		Principal:     token.PrincipalName(),
		Roles:         token.Roles(),
		Scopes:        token.Scopes(),
	}
}

// apiHandler builds the protected API for the configured router.
func (a *application) apiHandler() http.Handler {
	var h http.Handler
	if a.config.Server.Router == config.RouterGin {
		h = a.ginHandler()
	} else {
		h = a.httpHandler()
	}

	h = middleware.Logging(a.logger)(h)
	h = observability.TracingMiddleware(a.tracer)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(a.logger)(h)

	return h
}

// httpHandler serves the API on net/http.
func (a *application) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /whoami", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(whoami(r.Context()))
	})

	var h http.Handler = mux
	h = a.engine.HTTPMiddleware()(h)
	h = middleware.RecordPrincipal()(h)
	h = a.gate.Middleware()(h)
	return h
}

// ginHandler serves the API on gin.
func (a *application) ginHandler() http.Handler {
	r := gin.New()
	r.Use(
		auth.GinMiddleware(a.gate),
		func(c *gin.Context) {
			if token, ok := security.CurrentToken(c.Request.Context()); ok {
				middleware.SetPrincipal(c.Request.Context(), token.PrincipalName())
			}
			c.Next()
		},
		a.engine.GinMiddleware(),
	)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, whoami(c.Request.Context()))
	})
	return r
}

// metricsHandler serves /metrics and the health endpoints.
func (a *application) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.HandleFunc("/healthz", a.checker.HealthHandler())
	mux.HandleFunc("/readyz", a.checker.ReadinessHandler())
	return mux
}

// newGRPCServer creates the gRPC server. Every call, health checks
// included, passes through the gate.
func (a *application) newGRPCServer() (*grpc.Server, *grpchealth.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(a.gate.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(a.gate.StreamInterceptor()),
	)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// followReadiness mirrors readiness into the gRPC health status until ctx
// is done.
func (a *application) followReadiness(ctx context.Context, hs *grpchealth.Server) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if a.checker.Readiness(ctx).Status == health.StatusUnhealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	}

	update()
	ticker := time.NewTicker(grpcHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}

// start binds all listeners and serves them in the background.
func (a *application) start(ctx context.Context) error {
	sc := a.config.Server

	apiLn, err := net.Listen("tcp", sc.Address)
	if err != nil {
		return err
	}
	a.apiServer = &http.Server{
		Handler:           a.apiHandler(),
		ReadHeaderTimeout: sc.ReadHeaderTimeout.Duration(),
	}
	go a.serveHTTP("api", a.apiServer, apiLn)
	a.logger.Info("API server listening",
		observability.String("address", apiLn.Addr().String()),
		observability.String("router", sc.Router),
	)

	if sc.MetricsAddress != "" {
		metricsLn, err := net.Listen("tcp", sc.MetricsAddress)
		if err != nil {
			return err
		}
		a.metricsServer = &http.Server{
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go a.serveHTTP("metrics", a.metricsServer, metricsLn)
		a.logger.Info("metrics server listening", observability.String("address", metricsLn.Addr().String()))
	}

	if sc.GRPCAddress != "" {
		grpcLn, err := net.Listen("tcp", sc.GRPCAddress)
		if err != nil {
			return err
		}
		var hs *grpchealth.Server
		a.grpcServer, hs = a.newGRPCServer()
		go a.followReadiness(ctx, hs)
		go func() {
			if err := a.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				a.logger.Error("gRPC server error", observability.Error(err))
			}
		}()
		a.logger.Info("gRPC server listening", observability.String("address", grpcLn.Addr().String()))
	}

	return nil
}

func (a *application) serveHTTP(name string, srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("server error", observability.String("server", name), observability.Error(err))
	}
}

// shutdown stops the servers gracefully, then releases resources.
func (a *application) shutdown(ctx context.Context) {
	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop API server gracefully", observability.Error(err))
		}
	}

	if a.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			a.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			a.grpcServer.Stop()
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := a.close(); err != nil {
		a.logger.Error("failed to close key store", observability.Error(err))
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}
}
