// Package observability provides logging and tracing for keygate.
//
// # Logging
//
// The Logger interface wraps zap with a small set of field constructors:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request authenticated",
//	    observability.String("principal", "user123"),
//	)
//
// Setting Output to "file" writes to a size-rotated file managed by
// lumberjack.
//
// # Tracing
//
// OpenTelemetry tracing with OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    ServiceName:  "keygate",
//	    OTLPEndpoint: "localhost:4317",
//	    Enabled:      true,
//	})
//	defer tracer.Shutdown(ctx)
package observability
