package authz

import (
	"context"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// Decision reasons.
const (
	ReasonNoPolicy        = "no applicable policy"
	ReasonAllowed         = "all policies allowed"
	ReasonDenied          = "policy denied"
	ReasonEvaluationError = "policy evaluation failed"
)

// Request is the input to an authorization decision.
type Request struct {
	Method   string
	Path     string
	ClientIP string

	// Token is the current token from the security context, if any.
	Token *security.Token
}

// Decision is the result of Authorize.
type Decision struct {
	Allowed bool
	Reason  string

	// Policy names the policy that denied the request.
	Policy string
}

type compiledPolicy struct {
	Policy
	program cel.Program
}

// Engine evaluates CEL policies. Policies can be replaced at runtime.
type Engine struct {
	env      *cel.Env
	policies atomic.Pointer[[]compiledPolicy]
	logger   observability.Logger
	metrics  *Metrics
	auditor  audit.Logger
	now      func() time.Time
}

// EngineOption is a functional option for the engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger.
func WithEngineLogger(logger observability.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineMetrics sets the metrics.
func WithEngineMetrics(metrics *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithEngineAuditor sets the audit logger. Only requests that at least one
// policy applied to are audited.
func WithEngineAuditor(auditor audit.Logger) EngineOption {
	return func(e *Engine) {
		e.auditor = auditor
	}
}

// NewEngine compiles policies into a new engine.
func NewEngine(policies []Policy, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		logger:  observability.NopLogger(),
		auditor: audit.NewNoopLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	env, err := newCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	e.env = env

	if err := e.SetPolicies(policies); err != nil {
		return nil, err
	}

	return e, nil
}

func newCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("authenticated", cel.BoolType),
		cel.Variable("principal", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("scopes", cel.ListType(cel.StringType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("path", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("client_ip", cel.StringType),
		cel.Variable("now", cel.TimestampType),
		cel.Function("ip_in_range",
			cel.Overload("ip_in_range_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(ipInRangeBinding),
			),
		),
	)
}

// ipInRangeBinding checks if an IP is in a CIDR range.
func ipInRangeBinding(ip, cidr ref.Val) ref.Val {
	ipStr, ok := ip.Value().(string)
	if !ok {
		return types.False
	}
	cidrStr, ok := cidr.Value().(string)
	if !ok {
		return types.False
	}

	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return types.False
	}
	prefix, err := netip.ParsePrefix(cidrStr)
	if err != nil {
		return types.False
	}

	return types.Bool(prefix.Contains(addr.Unmap()))
}

// PolicySet is a compiled set of policies ready to be installed.
type PolicySet struct {
	compiled []compiledPolicy
}

// Len returns the number of policies in the set.
func (s *PolicySet) Len() int {
	return len(s.compiled)
}

// SetPolicies compiles policies and replaces the loaded set. On error the
// previous set stays in effect.
func (e *Engine) SetPolicies(policies []Policy) error {
	set, err := e.Compile(policies)
	if err != nil {
		return err
	}
	e.Install(set)
	return nil
}

// Install replaces the loaded set with a set compiled by Compile.
func (e *Engine) Install(set *PolicySet) {
	compiled := set.compiled
	e.policies.Store(&compiled)
	e.metrics.setPolicyCount(len(compiled))
}

// Compile validates and compiles policies without loading them.
func (e *Engine) Compile(policies []Policy) (*PolicySet, error) {
	compiled := make([]compiledPolicy, 0, len(policies))
	seen := make(map[string]struct{}, len(policies))

	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate policy name %q", ErrInvalidPolicy, p.Name)
		}
		seen[p.Name] = struct{}{}

		ast, issues := e.env.Compile(p.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("%w: %s: expression must evaluate to bool, got %s",
				ErrInvalidPolicy, p.Name, ast.OutputType())
		}

		program, err := e.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Name, err)
		}

		compiled = append(compiled, compiledPolicy{Policy: p, program: program})
	}

	return &PolicySet{compiled: compiled}, nil
}

// Policies returns the loaded policies.
func (e *Engine) Policies() []Policy {
	loaded := e.loaded()
	out := make([]Policy, len(loaded))
	for i := range loaded {
		out[i] = loaded[i].Policy
	}
	return out
}

func (e *Engine) loaded() []compiledPolicy {
	if p := e.policies.Load(); p != nil {
		return *p
	}
	return nil
}

// Authorize evaluates every policy that applies to req.
func (e *Engine) Authorize(ctx context.Context, req *Request) Decision {
	start := time.Now()
	defer func() { e.metrics.observeDuration(time.Since(start)) }()

	decision, applied := e.evaluate(ctx, req)
	if applied {
		e.audit(ctx, req, decision)
	}
	return decision
}

func (e *Engine) evaluate(ctx context.Context, req *Request) (Decision, bool) {
	var activation map[string]interface{}
	applied := 0

	for _, p := range e.loaded() {
		if !p.Applies(req.Method, req.Path) {
			continue
		}
		applied++

		if activation == nil {
			activation = e.activation(req)
		}

		out, _, err := p.program.ContextEval(ctx, activation)
		if err != nil {
			e.logger.Warn("CEL evaluation error",
				observability.String("policy", p.Name),
				observability.Error(err),
			)
			e.metrics.recordEvaluation(p.Name, "error")
			return Decision{Reason: ReasonEvaluationError, Policy: p.Name}, true
		}

		if allowed, ok := out.Value().(bool); !ok || !allowed {
			e.metrics.recordEvaluation(p.Name, "deny")
			return Decision{Reason: ReasonDenied, Policy: p.Name}, true
		}
		e.metrics.recordEvaluation(p.Name, "allow")
	}

	if applied == 0 {
		return Decision{Allowed: true, Reason: ReasonNoPolicy}, false
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}, true
}

func (e *Engine) audit(ctx context.Context, req *Request, d Decision) {
	outcome := audit.OutcomeSuccess
	switch {
	case d.Reason == ReasonEvaluationError:
		outcome = audit.OutcomeError
	case !d.Allowed:
		outcome = audit.OutcomeDenied
	}

	event := audit.AuthorizationEvent(outcome).
		WithReason(d.Reason).
		WithResource(&audit.Resource{Method: req.Method, Path: req.Path, ClientIP: req.ClientIP})
	if d.Policy != "" {
		event.WithMetadata("policy", d.Policy)
	}
	if p, ok := req.Token.Principal(); ok {
		event.WithSubject(&audit.Subject{ID: p.ID, Name: p.Name, Roles: p.Roles, Scopes: p.Scopes})
	}
	e.auditor.LogEvent(ctx, event)
}

func (e *Engine) activation(req *Request) map[string]interface{} {
	roles := req.Token.Roles()
	if roles == nil {
		roles = []string{}
	}
	scopes := req.Token.Scopes()
	if scopes == nil {
		scopes = []string{}
	}
	metadata := map[string]string{}
	if p, ok := req.Token.Principal(); ok && p.Metadata != nil {
		metadata = p.Metadata
	}

	return map[string]interface{}{
		"authenticated": req.Token.IsAuthenticated(),
		"principal":     req.Token.PrincipalName(),
		"roles":         roles,
		"scopes":        scopes,
		"metadata":      metadata,
		"path":          req.Path,
		"method":        req.Method,
		"client_ip":     req.ClientIP,
		"now":           e.now(),
	}
}
