package auth

import (
	"context"
	"net/http"

	"github.com/munnerz/goautoneg"
)

// Format is the representation a client expects for error bodies.
type Format string

// Request formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type requestFormatKey struct{}

// negotiable lists the offered types. The first entry wins for */* and for
// requests without an Accept header. Only JSON yields a structured body.
var negotiable = []string{ContentTypeText, ContentTypeHTML, ContentTypeJSON}

// WithRequestFormat pins the request format, overriding Accept negotiation.
// Routers set it when the route itself determines the format.
func WithRequestFormat(ctx context.Context, format Format) context.Context {
	return context.WithValue(ctx, requestFormatKey{}, format)
}

// RequestFormat returns the format of r: an explicit format on the request
// context, otherwise the result of negotiating the Accept header.
func RequestFormat(r *http.Request) Format {
	if format, ok := r.Context().Value(requestFormatKey{}).(Format); ok && format != "" {
		return format
	}
	if goautoneg.Negotiate(r.Header.Get(HeaderAccept), negotiable) == ContentTypeJSON {
		return FormatJSON
	}
	return FormatText
}
