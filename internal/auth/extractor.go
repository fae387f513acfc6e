package auth

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Extractor finds the candidate API key of a request.
// It performs no validation and has no side effects.
type Extractor interface {
	// Extract returns the credential of an HTTP request.
	Extract(r *http.Request) (string, bool)

	// ExtractFromMetadata returns the credential of a gRPC call.
	ExtractFromMetadata(ctx context.Context) (string, bool)
}

// RequestExtractor reads the key from a header, falling back to a query
// parameter. Values are returned untouched; scheme prefixes such as
// "Bearer " are left for the authority to interpret.
type RequestExtractor struct {
	header     string
	queryParam string
}

// NewExtractor creates an extractor. Empty names fall back to the defaults.
func NewExtractor(header, queryParam string) *RequestExtractor {
	if header == "" {
		header = DefaultHeader
	}
	if queryParam == "" {
		queryParam = DefaultQueryParam
	}
	return &RequestExtractor{header: header, queryParam: queryParam}
}

// Extract returns the header value if non-empty, otherwise the query
// parameter value if non-empty.
func (e *RequestExtractor) Extract(r *http.Request) (string, bool) {
	if value := r.Header.Get(e.header); value != "" {
		return value, true
	}
	if r.URL == nil {
		return "", false
	}
	if value := r.URL.Query().Get(e.queryParam); value != "" {
		return value, true
	}
	return "", false
}

// ExtractFromMetadata looks up the header name, then the query parameter
// name, in the incoming gRPC metadata.
func (e *RequestExtractor) ExtractFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, key := range []string{e.header, e.queryParam} {
		for _, value := range md.Get(strings.ToLower(key)) {
			if value != "" {
				return value, true
			}
		}
	}
	return "", false
}

var _ Extractor = (*RequestExtractor)(nil)
