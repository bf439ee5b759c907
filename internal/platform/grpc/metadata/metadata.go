// Package metadata defines the request headers that carry correlation IDs and
// caller locale across gRPC boundaries.
package metadata

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Impact-Forge/SharedGamemode/internal/platform/id"
)

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-sharedgamemode-request-id"

// InvocationIDHeader is the gRPC metadata key for MCP tool invocation IDs.
const InvocationIDHeader = "x-sharedgamemode-invocation-id"

// LocaleHeader is the gRPC metadata key for the caller's preferred locale.
// Error messages are rendered in this locale.
const LocaleHeader = "x-sharedgamemode-locale"

type contextKey string

const (
	requestIDContextKey    contextKey = "sharedgamemode-request-id"
	invocationIDContextKey contextKey = "sharedgamemode-invocation-id"
)

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// InvocationIDFromContext returns the invocation ID stored in context.
func InvocationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(invocationIDContextKey).(string)
	return value
}

// LocaleFromContext returns the locale from incoming metadata.
func LocaleFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return FirstMetadataValue(md, LocaleHeader)
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// WithInvocationID stores the invocation ID in context.
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, invocationIDContextKey, invocationID)
}

// OutgoingContext appends non-empty request, invocation and locale headers
// to outgoing metadata.
func OutgoingContext(ctx context.Context, requestID, invocationID, locale string) context.Context {
	var pairs []string
	for _, kv := range [][2]string{
		{RequestIDHeader, requestID},
		{InvocationIDHeader, invocationID},
		{LocaleHeader, locale},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			pairs = append(pairs, kv[0], v)
		}
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// UnaryServerInterceptor gives every inbound call a request ID, echoes the
// IDs as response headers and tags the active span with them.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := FirstMetadataValue(md, RequestIDHeader)
		invocationID := FirstMetadataValue(md, InvocationIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
			}
			requestID = generated
		}

		ctx = WithRequestID(ctx, requestID)
		headers := metadata.Pairs(RequestIDHeader, requestID)
		if invocationID != "" {
			ctx = WithInvocationID(ctx, invocationID)
			headers.Append(InvocationIDHeader, invocationID)
		}
		if err := grpc.SetHeader(ctx, headers); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("sharedgamemode.request_id", requestID))
		if invocationID != "" {
			span.SetAttributes(attribute.String("sharedgamemode.invocation_id", invocationID))
		}
		return handler(ctx, req)
	}
}
