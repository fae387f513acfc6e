package auth

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// Outcome is the result of running the gate on a request.
type Outcome int

// Gate outcomes.
const (
	// OutcomeProceed lets the request continue, authenticated or not.
	OutcomeProceed Outcome = iota
	// OutcomeUnauthorized stops a request that carries no key.
	OutcomeUnauthorized
	// OutcomeForbidden stops a request whose key was rejected.
	OutcomeForbidden
	// OutcomeUnavailable stops a request whose key could not be checked.
	OutcomeUnavailable
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Decision is what the gate concluded for one request.
type Decision struct {
	Outcome Outcome

	// Reason is the client-facing message for Forbidden and Unavailable.
	Reason string

	// Token is the authenticated token installed in the security context.
	Token *security.Token

	// Cleared reports that a rejection removed the matching token from the
	// security context.
	Cleared bool

	// Err is the internal cause of an Unavailable outcome.
	Err error
}

// Allowed reports whether the request may continue.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeProceed
}

// StatusCode returns the HTTP status of the decision, or 0 when the gate
// writes nothing.
func (d Decision) StatusCode() int {
	switch d.Outcome {
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	case OutcomeForbidden:
		return http.StatusForbidden
	case OutcomeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return 0
	}
}

// Error returns the decision as an *AuthenticationError, or nil when allowed.
func (d Decision) Error() error {
	if d.Allowed() {
		return nil
	}
	reason := d.Reason
	if d.Outcome == OutcomeUnauthorized {
		reason = ReasonRequired
	}
	return &AuthenticationError{Outcome: d.Outcome, Reason: reason, Cause: d.Err}
}

// Gate authenticates requests by API key.
type Gate struct {
	authority   Authority
	extractor   Extractor
	forceAPIKey bool
	sessions    security.SessionStore
	cookieName  string
	logger      observability.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	auditor     audit.Logger
}

// GateOption is a functional option for the gate.
type GateOption func(*Gate)

// WithForceAPIKey sets whether requests without a key are rejected with 401.
func WithForceAPIKey(force bool) GateOption {
	return func(g *Gate) {
		g.forceAPIKey = force
	}
}

// WithExtractor sets the credential extractor.
func WithExtractor(extractor Extractor) GateOption {
	return func(g *Gate) {
		g.extractor = extractor
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithGateMetrics sets the metrics.
func WithGateMetrics(metrics *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// WithGateTracer sets the tracer used for authority spans.
func WithGateTracer(tracer trace.Tracer) GateOption {
	return func(g *Gate) {
		g.tracer = tracer
	}
}

// WithGateAuditor sets the audit logger receiving one event per decision
// that involved a key or stopped the request.
func WithGateAuditor(auditor audit.Logger) GateOption {
	return func(g *Gate) {
		g.auditor = auditor
	}
}

// WithSessions makes the HTTP middleware keep security contexts in store,
// keyed by the named cookie.
func WithSessions(store security.SessionStore, cookieName string) GateOption {
	return func(g *Gate) {
		g.sessions = store
		if cookieName != "" {
			g.cookieName = cookieName
		}
	}
}

// NewGate creates a gate. forceAPIKey defaults to true.
func NewGate(authority Authority, opts ...GateOption) (*Gate, error) {
	if authority == nil {
		return nil, ErrNilAuthority
	}

	g := &Gate{
		authority:   authority,
		extractor:   NewExtractor("", ""),
		forceAPIKey: true,
		cookieName:  DefaultSessionCookie,
		logger:      observability.NopLogger(),
		auditor:     audit.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.metrics == nil {
		g.metrics = NewMetrics(defaultMetricsNamespace)
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}

	return g, nil
}

// ForceAPIKey reports whether keyless requests are rejected.
func (g *Gate) ForceAPIKey() bool {
	return g.forceAPIKey
}

// Handle runs the gate on r against sc. On success the authenticated token
// is installed in sc. A nil sc is replaced by a fresh context.
// Handle never writes a response; see WriteDecision.
func (g *Gate) Handle(r *http.Request, sc *security.Context) Decision {
	credential, found := g.extractor.Extract(r)
	logger := g.logger.WithContext(r.Context()).With(
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
	)
	res := &audit.Resource{
		Transport: "http",
		Method:    r.Method,
		Path:      r.URL.Path,
		ClientIP:  clientIP(r.RemoteAddr),
	}
	return g.decide(r.Context(), res, credential, found, sc, logger)
}

// decide implements the gate state machine shared by all transports.
func (g *Gate) decide(
	ctx context.Context,
	res *audit.Resource,
	credential string,
	found bool,
	sc *security.Context,
	logger observability.Logger,
) Decision {
	start := time.Now()
	if sc == nil {
		sc = security.NewContext()
	}

	var d Decision
	switch {
	case !found && g.forceAPIKey:
		logger.Debug("api key required")
		d = Decision{Outcome: OutcomeUnauthorized}
	case !found:
		d = Decision{Outcome: OutcomeProceed}
	default:
		d = g.authenticate(ctx, credential, sc, logger)
	}

	g.metrics.RecordOutcome(res.Transport, d.Outcome, time.Since(start))
	g.audit(ctx, res, d)
	return d
}

// audit records d. Anonymous pass-through is not an authentication event.
func (g *Gate) audit(ctx context.Context, res *audit.Resource, d Decision) {
	var event *audit.Event
	switch d.Outcome {
	case OutcomeProceed:
		if d.Token == nil {
			return
		}
		event = audit.AuthenticationEvent(audit.OutcomeSuccess).WithSubject(auditSubject(d.Token))
	case OutcomeUnauthorized:
		event = audit.AuthenticationEvent(audit.OutcomeFailure).WithReason(ReasonRequired)
	case OutcomeForbidden:
		event = audit.AuthenticationEvent(audit.OutcomeDenied).WithReason(d.Reason)
		if d.Cleared {
			event.WithMetadata("context_cleared", "true")
		}
	default:
		event = audit.AuthenticationEvent(audit.OutcomeError).WithReason(d.Reason)
	}
	g.auditor.LogEvent(ctx, event.WithResource(res))
}

func auditSubject(token *security.Token) *audit.Subject {
	p, ok := token.Principal()
	if !ok {
		return nil
	}
	return &audit.Subject{ID: p.ID, Name: p.Name, Roles: p.Roles, Scopes: p.Scopes}
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// authenticate calls the authority once and applies its result to sc.
func (g *Gate) authenticate(
	ctx context.Context,
	credential string,
	sc *security.Context,
	logger observability.Logger,
) Decision {
	ctx, span := g.tracer.Start(ctx, "keygate.authenticate",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	result := g.authority.Authenticate(ctx, security.NewToken(credential))
	if result.Verdict == VerdictGranted && !result.Token.IsAuthenticated() {
		result = Unavailable(ErrInvalidGrant)
	}
	g.metrics.ObserveAuthority(result.Verdict, time.Since(start))
	span.SetAttributes(attribute.String("keygate.verdict", result.Verdict.String()))

	switch result.Verdict {
	case VerdictGranted:
		sc.SetCurrent(result.Token)
		logger.Debug("api key authenticated",
			observability.String("principal", result.Token.PrincipalName()),
		)
		return Decision{Outcome: OutcomeProceed, Token: result.Token}

	case VerdictRejected:
		reason := result.Reason
		if reason == "" {
			reason = ReasonRejected
		}
		cleared := sc.ClearIfCredential(credential)
		if cleared {
			g.metrics.RecordContextClear()
			logger.Info("security context cleared after api key rejection")
		}
		logger.Warn("api key rejected", observability.String("reason", reason))
		span.SetStatus(otelcodes.Error, reason)
		return Decision{Outcome: OutcomeForbidden, Reason: reason, Cleared: cleared}

	default:
		logger.Error("authentication authority unavailable", observability.Error(result.Err))
		span.RecordError(result.Err)
		span.SetStatus(otelcodes.Error, ReasonUnavailable)
		return Decision{Outcome: OutcomeUnavailable, Reason: ReasonUnavailable, Err: result.Err}
	}
}

// WriteDecision writes the response for a stopping decision. It writes
// nothing for OutcomeProceed.
func (g *Gate) WriteDecision(w http.ResponseWriter, r *http.Request, d Decision) {
	switch d.Outcome {
	case OutcomeProceed:
		return
	case OutcomeUnauthorized:
		w.WriteHeader(http.StatusUnauthorized)
	default:
		writeError(w, d.StatusCode(), d.Reason, RequestFormat(r))
	}
}

// writeError writes reason in the requested format.
func writeError(w http.ResponseWriter, status int, reason string, format Format) {
	if format == FormatJSON {
		body, err := json.Marshal(errorBody{Error: reason})
		if err == nil {
			w.Header().Set(HeaderContentType, ContentTypeJSON)
			w.WriteHeader(status)
			_, _ = w.Write(body)
			return
		}
	}
	w.Header().Set(HeaderContentType, contentTypeTextUTF8)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reason))
}

// errorBody is the JSON error response.
type errorBody struct {
	Error string `json:"error"`
}

// Middleware returns an HTTP middleware running the gate before next.
// The security context is available downstream through
// security.FromContext(r.Context()).
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, sessionID := g.securityContext(r)

			d := g.Handle(r, sc)
			if !d.Allowed() {
				g.WriteDecision(w, r, d)
				return
			}

			sc = g.startSession(w, r, sc, sessionID, d)
			next.ServeHTTP(w, r.WithContext(security.WithContext(r.Context(), sc)))
		})
	}
}

// securityContext returns the context a request runs against: one already
// attached to the request, the one of its session, or a new one.
func (g *Gate) securityContext(r *http.Request) (*security.Context, string) {
	if sc, ok := security.FromContext(r.Context()); ok {
		return sc, ""
	}
	if g.sessions != nil {
		if cookie, err := r.Cookie(g.cookieName); err == nil && cookie.Value != "" {
			if sc, ok := g.sessions.Load(r.Context(), cookie.Value); ok {
				return sc, cookie.Value
			}
		}
	}
	return security.NewContext(), ""
}

// startSession moves a freshly authenticated token into a new session.
func (g *Gate) startSession(
	w http.ResponseWriter,
	r *http.Request,
	sc *security.Context,
	sessionID string,
	d Decision,
) *security.Context {
	if g.sessions == nil || sessionID != "" || d.Token == nil {
		return sc
	}

	id, sessionCtx := g.sessions.Create(r.Context())
	sessionCtx.SetCurrent(d.Token)
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionCtx
}
