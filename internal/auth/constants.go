package auth

// Credential sources.
const (
	// DefaultHeader is the header checked first for an API key.
	DefaultHeader = "Authorization"

	// DefaultQueryParam is the query parameter checked when the header is absent.
	DefaultQueryParam = "api_key"
)

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderAccept is the Accept header name.
	HeaderAccept = "Accept"
)

// Content type constants.
const (
	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// ContentTypeText is the plain text content type.
	ContentTypeText = "text/plain"

	// ContentTypeHTML is offered during negotiation and answered as plain text.
	ContentTypeHTML = "text/html"

	// contentTypeTextUTF8 is written on plain text error responses.
	contentTypeTextUTF8 = "text/plain; charset=utf-8"
)

// Response reasons.
const (
	// ReasonUnavailable is reported when the authority cannot reach a verdict.
	ReasonUnavailable = "Authentication service unavailable"

	// ReasonRejected is used when an authority rejects without a reason.
	ReasonRejected = "Authentication failed"

	// ReasonRequired is the gRPC status message for a missing key.
	ReasonRequired = "API key required"
)

// Session cookie defaults.
const (
	// DefaultSessionCookie is the name of the session cookie.
	DefaultSessionCookie = "keygate_session"
)

// GinContextKey is the gin context key holding the *security.Context.
const GinContextKey = "keygate.security"

// defaultMetricsNamespace is the Prometheus namespace for gate metrics.
const defaultMetricsNamespace = "keygate"

// tracerName is the OpenTelemetry instrumentation name of the gate.
const tracerName = "github.com/vyrodovalexey/keygate/internal/auth"
