// Package health provides the liveness and readiness endpoints served next
// to /metrics.
//
// Readiness runs every registered check, typically the Ping of the key
// store, and answers 503 when a critical check fails:
//
//	checker := health.NewChecker(version, health.WithMetrics(metrics))
//	checker.RegisterCheck("keystore", store.Ping, health.WithCritical(true))
//
//	mux.HandleFunc("/healthz", checker.HealthHandler())
//	mux.HandleFunc("/readyz", checker.ReadinessHandler())
package health
