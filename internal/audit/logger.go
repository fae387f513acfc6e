package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Logger is the audit logger interface.
type Logger interface {
	// LogEvent records event. Disabled types and skipped paths are dropped.
	LogEvent(ctx context.Context, event *Event)

	// Close flushes and closes the output.
	Close() error
}

// Metrics contains audit metrics.
type Metrics struct {
	eventsTotal *prometheus.CounterVec
}

// NewMetricsWithRegisterer creates audit metrics registered with registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events",
			},
			[]string{"type", "outcome"},
		),
	}
	_ = registerer.Register(m.eventsTotal)
	return m
}

// RecordEvent records an audit event metric. Safe on a nil receiver.
func (m *Metrics) RecordEvent(eventType EventType, outcome Outcome) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(eventType), string(outcome)).Inc()
}

// logger implements Logger.
type logger struct {
	config  *Config
	writer  io.Writer
	closer  io.Closer
	mu      sync.Mutex
	logger  observability.Logger
	metrics *Metrics
}

// LoggerOption is a functional option for the logger.
type LoggerOption func(*logger)

// WithLoggerLogger sets the logger used to report write failures.
func WithLoggerLogger(l observability.Logger) LoggerOption {
	return func(lg *logger) {
		lg.logger = l
	}
}

// WithLoggerMetrics sets the metrics.
func WithLoggerMetrics(metrics *Metrics) LoggerOption {
	return func(lg *logger) {
		lg.metrics = metrics
	}
}

// WithLoggerWriter sets the writer, overriding the configured output.
func WithLoggerWriter(writer io.Writer) LoggerOption {
	return func(lg *logger) {
		lg.writer = writer
	}
}

// NewLogger creates an audit logger. A disabled configuration yields a
// no-op logger.
func NewLogger(config *Config, opts ...LoggerOption) (Logger, error) {
	if config == nil || !config.Enabled {
		return NewNoopLogger(), nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &logger{
		config: config,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		l.writer, l.closer = createWriter(config)
	}

	return l, nil
}

// createWriter creates the output writer based on configuration.
func createWriter(config *Config) (io.Writer, io.Closer) {
	switch config.Output {
	case OutputStderr:
		return os.Stderr, nil
	case OutputFile:
		rotator := &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		}
		return rotator, rotator
	default:
		return os.Stdout, nil
	}
}

// LogEvent logs an audit event.
func (l *logger) LogEvent(ctx context.Context, event *Event) {
	if event == nil || !l.config.ShouldAudit(event.Type) {
		return
	}
	if event.Resource != nil && l.config.ShouldSkipPath(event.Resource.Path) {
		return
	}

	if event.RequestID == "" {
		event.RequestID = observability.RequestIDFromContext(ctx)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
		event.SpanID = sc.SpanID().String()
	}

	l.metrics.RecordEvent(event.Type, event.Outcome)
	l.writeEvent(event)
}

// writeEvent writes the event to the output.
func (l *logger) writeEvent(event *Event) {
	var output []byte
	if l.config.Format == FormatText {
		output = []byte(formatText(event))
	} else {
		var err error
		output, err = json.Marshal(event)
		if err != nil {
			l.logger.Error("failed to marshal audit event", observability.Error(err))
			return
		}
		output = append(output, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.writer.Write(output); err != nil {
		l.logger.Error("failed to write audit event", observability.Error(err))
	}
}

// formatText formats an event as a single line.
func formatText(event *Event) string {
	var sb strings.Builder

	sb.WriteString(event.Timestamp.Format(time.RFC3339))
	sb.WriteString(" ")
	sb.WriteString(string(event.Type))
	sb.WriteString(" ")
	sb.WriteString(string(event.Action))
	sb.WriteString(" ")
	sb.WriteString(string(event.Outcome))

	if event.Subject != nil && event.Subject.Name != "" {
		sb.WriteString(" subject=")
		sb.WriteString(event.Subject.Name)
	}
	if event.Resource != nil && event.Resource.Path != "" {
		sb.WriteString(" resource=")
		sb.WriteString(event.Resource.Path)
	}
	if event.Reason != "" {
		sb.WriteString(" reason=")
		sb.WriteString(`"` + event.Reason + `"`)
	}
	if event.RequestID != "" {
		sb.WriteString(" request_id=")
		sb.WriteString(event.RequestID)
	}

	sb.WriteString("\n")
	return sb.String()
}

// Close closes the logger.
func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// noopLogger is a no-op audit logger.
type noopLogger struct{}

// NewNoopLogger creates a new no-op audit logger.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) LogEvent(context.Context, *Event) {}

func (noopLogger) Close() error { return nil }

var (
	_ Logger = (*logger)(nil)
	_ Logger = noopLogger{}
)
