package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestRequestExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		header    string
		want      string
		wantFound bool
	}{
		{
			name:      "header only",
			target:    "/resource",
			header:    "key-1",
			want:      "key-1",
			wantFound: true,
		},
		{
			name:      "query only",
			target:    "/resource?api_key=good-key",
			want:      "good-key",
			wantFound: true,
		},
		{
			name:      "header wins over query",
			target:    "/resource?api_key=from-query",
			header:    "from-header",
			want:      "from-header",
			wantFound: true,
		},
		{
			name:      "empty header falls back to query",
			target:    "/resource?api_key=from-query",
			header:    "",
			want:      "from-query",
			wantFound: true,
		},
		{
			name:   "empty query value is absent",
			target: "/resource?api_key=",
		},
		{
			name:   "nothing supplied",
			target: "/resource",
		},
		{
			name:      "scheme prefix is passed through",
			target:    "/resource",
			header:    "Bearer abc",
			want:      "Bearer abc",
			wantFound: true,
		},
	}

	e := NewExtractor("", "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got, found := e.Extract(req)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestRequestExtractor_CustomNames(t *testing.T) {
	t.Parallel()

	e := NewExtractor("X-API-Key", "key")

	req := httptest.NewRequest(http.MethodGet, "/?api_key=ignored", nil)
	req.Header.Set("Authorization", "ignored")
	_, found := e.Extract(req)
	assert.False(t, found)

	req = httptest.NewRequest(http.MethodGet, "/?key=q", nil)
	got, found := e.Extract(req)
	assert.True(t, found)
	assert.Equal(t, "q", got)

	req.Header.Set("X-API-Key", "h")
	got, _ = e.Extract(req)
	assert.Equal(t, "h", got)
}

func TestRequestExtractor_ExtractFromMetadata(t *testing.T) {
	t.Parallel()

	e := NewExtractor("", "")

	tests := []struct {
		name      string
		md        metadata.MD
		want      string
		wantFound bool
	}{
		{
			name:      "authorization metadata",
			md:        metadata.Pairs("authorization", "key-1"),
			want:      "key-1",
			wantFound: true,
		},
		{
			name:      "api_key metadata",
			md:        metadata.Pairs("api_key", "key-2"),
			want:      "key-2",
			wantFound: true,
		},
		{
			name:      "authorization wins",
			md:        metadata.Pairs("authorization", "a", "api_key", "b"),
			want:      "a",
			wantFound: true,
		},
		{
			name: "empty",
			md:   metadata.MD{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := metadata.NewIncomingContext(context.Background(), tt.md)
			got, found := e.ExtractFromMetadata(ctx)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}

	_, found := e.ExtractFromMetadata(context.Background())
	assert.False(t, found)
}

func TestRequestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		accept   string
		override Format
		want     Format
	}{
		{name: "no accept", want: FormatText},
		{name: "wildcard", accept: "*/*", want: FormatText},
		{name: "json", accept: "application/json", want: FormatJSON},
		{name: "json preferred", accept: "text/plain;q=0.5, application/json", want: FormatJSON},
		{name: "html", accept: "text/html", want: FormatText},
		{name: "browser prefers html", accept: "text/html,application/json;q=0.9", want: FormatText},
		{name: "browser full", accept: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", want: FormatText},
		{name: "json over html", accept: "text/html;q=0.5,application/json", want: FormatJSON},
		{name: "override wins", accept: "text/plain", override: FormatJSON, want: FormatJSON},
		{name: "override text", accept: "application/json", override: FormatText, want: FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.override != "" {
				req = req.WithContext(WithRequestFormat(req.Context(), tt.override))
			}

			assert.Equal(t, tt.want, RequestFormat(req))
		})
	}
}
