package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// StatusInput is the empty input of session_status.
type StatusInput struct{}

// SessionStatusTool defines the MCP tool schema for reading the session status.
func SessionStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_status",
		Description: "Returns the voting phase, active scenarios, running instances and participants",
	}
}

// SessionStatusHandler reads the session status.
func SessionStatusHandler(client HostClient) mcp.ToolHandlerFor[StatusInput, session.StatusView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, session.StatusView, error) {
		return callHost(ctx, "session status", func(ctx context.Context, opts ...grpc.CallOption) (session.StatusView, error) {
			status, err := client.Status(ctx, opts...)
			if err != nil {
				return session.StatusView{}, err
			}
			return statusOutput(status), nil
		})
	}
}

// VotingStartInput is the empty input of voting_start.
type VotingStartInput struct{}

// VotingStartResult lists the options of the opened round.
type VotingStartResult struct {
	Round   uint64   `json:"round" jsonschema:"round number"`
	Options []string `json:"options" jsonschema:"scenario IDs on the ballot"`
}

// VotingStartTool defines the MCP tool schema for opening a voting round.
func VotingStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "voting_start",
		Description: "Opens a voting round and generates the ballot options",
	}
}

// VotingStartHandler opens a voting round.
func VotingStartHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[VotingStartInput, VotingStartResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ VotingStartInput) (*mcp.CallToolResult, VotingStartResult, error) {
		result, out, err := callHost(ctx, "voting start", func(ctx context.Context, opts ...grpc.CallOption) (VotingStartResult, error) {
			resp, err := client.StartVoting(ctx, opts...)
			if err != nil {
				return VotingStartResult{}, err
			}
			return VotingStartResult{Round: resp.Round, Options: nonNil(resp.Options)}, nil
		})
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// VotingCancelInput is the empty input of voting_cancel.
type VotingCancelInput struct{}

// VotingCancelTool defines the MCP tool schema for cancelling a round.
func VotingCancelTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "voting_cancel",
		Description: "Cancels the open voting round without picking a winner",
	}
}

// VotingCancelHandler cancels the open round.
func VotingCancelHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[VotingCancelInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ VotingCancelInput) (*mcp.CallToolResult, AckResult, error) {
		result, out, err := callHost(ctx, "voting cancel", ack(client.CancelVoting))
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// VotingResolveInput is the empty input of voting_resolve.
type VotingResolveInput struct{}

// VotingResolveResult reports the winner of the resolved round.
type VotingResolveResult struct {
	Round  uint64 `json:"round" jsonschema:"resolved round number"`
	Winner string `json:"winner" jsonschema:"winning scenario ID"`
}

// VotingResolveTool defines the MCP tool schema for resolving a round early.
func VotingResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "voting_resolve",
		Description: "Tallies the open round now and activates the winner",
	}
}

// VotingResolveHandler resolves the open round.
func VotingResolveHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[VotingResolveInput, VotingResolveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ VotingResolveInput) (*mcp.CallToolResult, VotingResolveResult, error) {
		result, out, err := callHost(ctx, "voting resolve", func(ctx context.Context, opts ...grpc.CallOption) (VotingResolveResult, error) {
			resp, err := client.ResolveVoting(ctx, opts...)
			if err != nil {
				return VotingResolveResult{}, err
			}
			return VotingResolveResult{Round: resp.Round, Winner: resp.Winner}, nil
		})
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI, StatsResourceURI(out.Winner))
		}
		return result, out, err
	}
}

// BallotInput names a participant and a ballot option.
type BallotInput struct {
	ParticipantID string `json:"participant_id" jsonschema:"participant casting the ballot"`
	ScenarioID    string `json:"scenario_id" jsonschema:"scenario option on the current ballot"`
}

func (in BallotInput) validate() error {
	if strings.TrimSpace(in.ParticipantID) == "" {
		return fmt.Errorf("participant_id is required")
	}
	if strings.TrimSpace(in.ScenarioID) == "" {
		return fmt.Errorf("scenario_id is required")
	}
	return nil
}

// VoteCastTool defines the MCP tool schema for casting a vote.
func VoteCastTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vote_cast",
		Description: "Casts or replaces a participant's vote in the open round",
	}
}

// VoteCastHandler casts a vote.
func VoteCastHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[BallotInput, AckResult] {
	return ballotHandler("vote cast", client.CastVote, notify)
}

// VetoCastTool defines the MCP tool schema for vetoing an option.
func VetoCastTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "veto_cast",
		Description: "Spends a participant's veto on a ballot option",
	}
}

// VetoCastHandler casts a veto.
func VetoCastHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[BallotInput, AckResult] {
	return ballotHandler("veto cast", client.Veto, notify)
}

func ballotHandler(action string, call func(context.Context, string, string, ...grpc.CallOption) error, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[BallotInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BallotInput) (*mcp.CallToolResult, AckResult, error) {
		if err := input.validate(); err != nil {
			return nil, AckResult{}, err
		}
		result, out, err := callHost(ctx, action, ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return call(ctx, input.ParticipantID, input.ScenarioID, opts...)
		}))
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// PerformanceInput updates a participant's score.
type PerformanceInput struct {
	ParticipantID string  `json:"participant_id" jsonschema:"participant identifier"`
	Score         float64 `json:"score" jsonschema:"latest performance score"`
}

// PerformanceUpdateTool defines the MCP tool schema for reporting performance.
func PerformanceUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "performance_update",
		Description: "Records a participant's performance score, which scales their vote weight",
	}
}

// PerformanceUpdateHandler records a performance score.
func PerformanceUpdateHandler(client HostClient) mcp.ToolHandlerFor[PerformanceInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PerformanceInput) (*mcp.CallToolResult, AckResult, error) {
		if strings.TrimSpace(input.ParticipantID) == "" {
			return nil, AckResult{}, fmt.Errorf("participant_id is required")
		}
		return callHost(ctx, "performance update", ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return client.UpdatePerformance(ctx, input.ParticipantID, input.Score, opts...)
		}))
	}
}

// PhaseInput reports a match phase.
type PhaseInput struct {
	Phase string `json:"phase" jsonschema:"match phase name, e.g. Game.EndGame"`
}

// PhaseResult reports whether the phase opened a round.
type PhaseResult struct {
	VotingStarted bool `json:"voting_started" jsonschema:"true when the phase opened a voting round"`
}

// PhaseChangedTool defines the MCP tool schema for match phase changes.
func PhaseChangedTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "phase_changed",
		Description: "Reports a match phase change; the end-of-match phase opens voting",
	}
}

// PhaseChangedHandler forwards a phase change.
func PhaseChangedHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PhaseInput, PhaseResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PhaseInput) (*mcp.CallToolResult, PhaseResult, error) {
		result, out, err := callHost(ctx, "phase changed", func(ctx context.Context, opts ...grpc.CallOption) (PhaseResult, error) {
			resp, err := client.PhaseChanged(ctx, input.Phase, opts...)
			if err != nil {
				return PhaseResult{}, err
			}
			return PhaseResult{VotingStarted: resp.VotingStarted}, nil
		})
		if err == nil && out.VotingStarted {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}
