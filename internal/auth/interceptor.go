package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// HandleContext runs the gate on a gRPC call. The key is read from the
// incoming metadata and the security context attached to ctx is used, or a
// new one when none is attached. It returns ctx carrying that context.
func (g *Gate) HandleContext(ctx context.Context, fullMethod string) (context.Context, Decision) {
	sc, ok := security.FromContext(ctx)
	if !ok {
		sc = security.NewContext()
		ctx = security.WithContext(ctx, sc)
	}

	credential, found := g.extractor.ExtractFromMetadata(ctx)
	logger := g.logger.WithContext(ctx).With(observability.String("grpc_method", fullMethod))
	res := &audit.Resource{Transport: "grpc", Method: fullMethod}
	return ctx, g.decide(ctx, res, credential, found, sc, logger)
}

// UnaryInterceptor returns a unary server interceptor running the gate.
func (g *Gate) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, d := g.HandleContext(ctx, info.FullMethod)
		if !d.Allowed() {
			return nil, toGRPCError(d)
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor returns a stream server interceptor running the gate.
func (g *Gate) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, d := g.HandleContext(ss.Context(), info.FullMethod)
		if !d.Allowed() {
			return toGRPCError(d)
		}

		wrapped := &authenticatedServerStream{
			ServerStream: ss,
			ctx:          ctx,
		}

		return handler(srv, wrapped)
	}
}

// toGRPCError converts a stopping decision to a gRPC status error.
func toGRPCError(d Decision) error {
	switch d.Outcome {
	case OutcomeUnauthorized:
		return status.Error(codes.Unauthenticated, ReasonRequired)
	case OutcomeForbidden:
		return status.Error(codes.PermissionDenied, d.Reason)
	default:
		return status.Error(codes.Unavailable, ReasonUnavailable)
	}
}

// authenticatedServerStream wraps a grpc.ServerStream with the gate's context.
type authenticatedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the context carrying the security context.
func (s *authenticatedServerStream) Context() context.Context {
	return s.ctx
}
