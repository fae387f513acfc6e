package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/auth"
	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/authz"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/health"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// sessionSweepInterval is how often expired sessions are dropped.
const sessionSweepInterval = time.Minute

// application holds all application components.
type application struct {
	config   *config.Config
	logger   observability.Logger
	tracer   *observability.Tracer
	registry *prometheus.Registry

	authority    *auth.AtomicAuthority
	authorityDep authorityDeps
	gate         *auth.Gate
	engine       *authz.Engine
	sessions     *security.MemorySessions
	auditor      audit.Logger
	checker      *health.Checker

	bundleMu sync.Mutex
	bundle   *authorityBundle

	reloadMu sync.Mutex
	active   *config.Config

	apiServer     *http.Server
	metricsServer *http.Server
	grpcServer    *grpc.Server

	cancel context.CancelFunc
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &application{
		config: cfg,
		logger: logger,
		cancel: cancel,
	}

	if err := app.initObservability(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.initAuth(ctx); err != nil {
		cancel()
		return nil, err
	}

	app.initHealth()

	return app, nil
}

// initObservability sets up the tracer and the metrics registry.
func (a *application) initObservability() error {
	tc := a.config.Observability.Tracing
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  tc.ServiceName,
		OTLPEndpoint: tc.Endpoint,
		SamplingRate: tc.SamplingRate,
		Enabled:      tc.Enabled,
	})
	if err != nil {
		return err
	}
	a.tracer = tracer

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

// initAuth builds the authority, the gate and the authorization engine.
func (a *application) initAuth(ctx context.Context) error {
	ns := a.config.Observability.Metrics.Namespace

	a.authorityDep = authorityDeps{
		logger:  a.logger,
		metrics: apikey.NewMetricsWithRegisterer(ns, a.registry),
	}

	auditor, err := audit.NewLogger(&a.config.Audit,
		audit.WithLoggerLogger(a.logger),
		audit.WithLoggerMetrics(audit.NewMetricsWithRegisterer(ns, a.registry)),
	)
	if err != nil {
		return err
	}
	a.auditor = auditor

	bundle, err := buildAuthority(ctx, &a.config.Authority, a.authorityDep)
	if err != nil {
		_ = auditor.Close()
		return err
	}
	a.bundle = bundle
	a.authority = auth.NewAtomicAuthority(bundle.authority)

	gateMetrics := auth.NewMetricsWithRegisterer(ns, a.registry)
	gateMetrics.Init()

	ac := a.config.Auth
	opts := []auth.GateOption{
		auth.WithForceAPIKey(ac.ForceAPIKey),
		auth.WithExtractor(auth.NewExtractor(ac.Header, ac.QueryParam)),
		auth.WithGateLogger(a.logger),
		auth.WithGateMetrics(gateMetrics),
		auth.WithGateTracer(a.tracer.Tracer()),
		auth.WithGateAuditor(a.auditor),
	}
	if ac.Sessions.Enabled {
		a.sessions = security.NewMemorySessions(ac.Sessions.TTL.Duration())
		opts = append(opts, auth.WithSessions(a.sessions, ac.Sessions.CookieName))
		go a.sweepSessions(ctx)
	}

	a.gate, err = auth.NewGate(a.authority, opts...)
	if err != nil {
		_ = bundle.Close()
		_ = auditor.Close()
		return err
	}

	a.engine, err = authz.NewEngine(a.config.Authz.Policies,
		authz.WithEngineLogger(a.logger),
		authz.WithEngineMetrics(authz.NewMetricsWithRegisterer(ns, a.registry)),
		authz.WithEngineAuditor(a.auditor),
	)
	if err != nil {
		_ = bundle.Close()
		_ = auditor.Close()
		return err
	}

	return nil
}

// initHealth registers the key store readiness check.
func (a *application) initHealth() {
	a.checker = health.NewChecker(version,
		health.WithMetrics(health.NewMetricsWithRegisterer(a.config.Observability.Metrics.Namespace, a.registry)),
	)
	a.checker.RegisterCheck("keystore", a.pingStore, health.WithCritical(true))
}

// pingStore checks the store of the current authority.
func (a *application) pingStore(ctx context.Context) error {
	a.bundleMu.Lock()
	bundle := a.bundle
	a.bundleMu.Unlock()
	return bundle.Ping(ctx)
}

// swapAuthority installs a new bundle and returns the previous one.
func (a *application) swapAuthority(bundle *authorityBundle) *authorityBundle {
	a.bundleMu.Lock()
	defer a.bundleMu.Unlock()

	old := a.bundle
	a.bundle = bundle
	a.authority.Store(bundle.authority)
	return old
}

// sweepSessions drops expired sessions until ctx is done.
func (a *application) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.Sweep(); n > 0 {
				a.logger.Debug("expired sessions removed", observability.Int("count", n))
			}
		}
	}
}

// close releases the authority and the audit output and stops background
// work.
func (a *application) close() error {
	a.cancel()

	a.bundleMu.Lock()
	bundle := a.bundle
	a.bundle = nil
	a.bundleMu.Unlock()

	err := bundle.Close()
	if a.auditor != nil {
		err = errors.Join(err, a.auditor.Close())
	}
	return err
}
