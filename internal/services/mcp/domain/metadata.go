package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpcmd "google.golang.org/grpc/metadata"

	grpcmeta "github.com/Impact-Forge/SharedGamemode/internal/platform/grpc/metadata"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/id"
)

// ToolCallMetadata carries correlation identifiers for MCP tool calls.
type ToolCallMetadata struct {
	RequestID    string
	InvocationID string
}

// ResourceUpdateNotifier notifies MCP clients about resource updates.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NewInvocationID generates an invocation identifier for a tool call.
func NewInvocationID() (string, error) {
	return id.NewID()
}

// NewOutgoingContext attaches a fresh request ID and invocationID to ctx.
func NewOutgoingContext(ctx context.Context, invocationID string) (context.Context, ToolCallMetadata, error) {
	requestID, err := id.NewID()
	if err != nil {
		return nil, ToolCallMetadata{}, err
	}
	callCtx := grpcmeta.OutgoingContext(ctx, requestID, invocationID, "")
	return callCtx, ToolCallMetadata{RequestID: requestID, InvocationID: invocationID}, nil
}

// MergeResponseMetadata overlays response headers on top of sent metadata.
func MergeResponseMetadata(sent ToolCallMetadata, header grpcmd.MD) ToolCallMetadata {
	requestID := grpcmeta.FirstMetadataValue(header, grpcmeta.RequestIDHeader)
	if requestID == "" {
		requestID = sent.RequestID
	}
	invocationID := grpcmeta.FirstMetadataValue(header, grpcmeta.InvocationIDHeader)
	if invocationID == "" {
		invocationID = sent.InvocationID
	}
	return ToolCallMetadata{RequestID: requestID, InvocationID: invocationID}
}

// CallToolResultWithMetadata builds a tool result with correlation metadata.
func CallToolResultWithMetadata(meta ToolCallMetadata) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Meta: map[string]any{
			grpcmeta.RequestIDHeader: meta.RequestID,
		},
	}
	if meta.InvocationID != "" {
		result.Meta[grpcmeta.InvocationIDHeader] = meta.InvocationID
	}
	return result
}

// NotifyResourceUpdates sends resource update notifications for each URI provided.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

// callHost runs one host RPC with a timeout and correlation metadata, and
// returns the tool result carrying the response identifiers.
func callHost[O any](ctx context.Context, action string, call func(context.Context, ...grpc.CallOption) (O, error)) (*mcp.CallToolResult, O, error) {
	var zero O
	invocationID, err := NewInvocationID()
	if err != nil {
		return nil, zero, fmt.Errorf("generate invocation id: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
	defer cancel()

	callCtx, callMeta, err := NewOutgoingContext(runCtx, invocationID)
	if err != nil {
		return nil, zero, fmt.Errorf("create request metadata: %w", err)
	}

	var header grpcmd.MD
	out, err := call(callCtx, grpc.Header(&header))
	if err != nil {
		return nil, zero, fmt.Errorf("%s failed: %w", action, err)
	}
	return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header)), out, nil
}
