package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// ParticipantInput names a participant.
type ParticipantInput struct {
	ParticipantID string `json:"participant_id" jsonschema:"participant identifier"`
}

// ParticipantJoinTool defines the MCP tool schema for joining the session.
func ParticipantJoinTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "participant_join",
		Description: "Adds a participant to the session roster so they can vote",
	}
}

// ParticipantJoinHandler adds a participant.
func ParticipantJoinHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ParticipantInput, AckResult] {
	return participantHandler("participant join", client.JoinParticipant, notify)
}

// ParticipantLeaveTool defines the MCP tool schema for leaving the session.
func ParticipantLeaveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "participant_leave",
		Description: "Removes a participant and withdraws their ballot",
	}
}

// ParticipantLeaveHandler removes a participant.
func ParticipantLeaveHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ParticipantInput, AckResult] {
	return participantHandler("participant leave", client.LeaveParticipant, notify)
}

func participantHandler(action string, call func(context.Context, string, ...grpc.CallOption) error, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ParticipantInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ParticipantInput) (*mcp.CallToolResult, AckResult, error) {
		participantID := strings.TrimSpace(input.ParticipantID)
		if participantID == "" {
			return nil, AckResult{}, fmt.Errorf("participant_id is required")
		}
		result, out, err := callHost(ctx, action, ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return call(ctx, participantID, opts...)
		}))
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}
