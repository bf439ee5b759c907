package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// ScenarioStartInput starts a scenario.
type ScenarioStartInput struct {
	ScenarioID string   `json:"scenario_id" jsonschema:"catalog scenario identifier"`
	Tags       []string `json:"tags,omitempty" jsonschema:"optional instance tags"`
	Activate   bool     `json:"activate,omitempty" jsonschema:"add the scenario to the active set instead of starting a standalone instance"`
	Force      bool     `json:"force,omitempty" jsonschema:"restart the scenario when it is already active"`
}

// ScenarioStartResult describes the started scenario.
type ScenarioStartResult struct {
	Instance        *session.InstanceView `json:"instance,omitempty" jsonschema:"started instance, absent when it already ended or was activated"`
	ActiveScenarios []string              `json:"active_scenarios" jsonschema:"active scenario IDs after the call"`
}

// ScenarioStartTool defines the MCP tool schema for starting a scenario.
func ScenarioStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_start",
		Description: "Starts a catalog scenario as a standalone instance or activates it",
	}
}

// ScenarioStartHandler starts a scenario.
func ScenarioStartHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ScenarioStartInput, ScenarioStartResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ScenarioStartInput) (*mcp.CallToolResult, ScenarioStartResult, error) {
		scenarioID := strings.TrimSpace(input.ScenarioID)
		if scenarioID == "" {
			return nil, ScenarioStartResult{}, fmt.Errorf("scenario_id is required")
		}
		result, out, err := callHost(ctx, "scenario start", func(ctx context.Context, opts ...grpc.CallOption) (ScenarioStartResult, error) {
			resp, err := client.StartScenario(ctx, hostservice.StartScenarioRequest{
				ScenarioID: scenarioID,
				Tags:       input.Tags,
				Activate:   input.Activate,
				Force:      input.Force,
			}, opts...)
			if err != nil {
				return ScenarioStartResult{}, err
			}
			out := ScenarioStartResult{ActiveScenarios: nonNil(resp.Active)}
			if resp.Instance != nil {
				instance := instanceOutput(resp.Instance)
				out.Instance = &instance
			}
			return out, nil
		})
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// InstanceInput names a scenario instance.
type InstanceInput struct {
	InstanceID string `json:"instance_id" jsonschema:"scenario instance identifier"`
}

// ScenarioCancelTool defines the MCP tool schema for cancelling an instance.
func ScenarioCancelTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_cancel",
		Description: "Cancels a running scenario instance",
	}
}

// ScenarioCancelHandler cancels an instance.
func ScenarioCancelHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[InstanceInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input InstanceInput) (*mcp.CallToolResult, AckResult, error) {
		instanceID := strings.TrimSpace(input.InstanceID)
		if instanceID == "" {
			return nil, AckResult{}, fmt.Errorf("instance_id is required")
		}
		result, out, err := callHost(ctx, "scenario cancel", ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return client.CancelScenario(ctx, instanceID, opts...)
		}))
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// TrackerMarkInput sets a manual tracker result.
type TrackerMarkInput struct {
	InstanceID string `json:"instance_id" jsonschema:"scenario instance identifier"`
	Index      int    `json:"index" jsonschema:"tracker index within the current stage"`
	Result     string `json:"result" jsonschema:"success, failure or pending"`
}

// TrackerMarkTool defines the MCP tool schema for marking a tracker.
func TrackerMarkTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "tracker_mark",
		Description: "Sets the result of a manual tracker on the instance's current stage",
	}
}

// TrackerMarkHandler marks a tracker.
func TrackerMarkHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TrackerMarkInput, session.InstanceView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TrackerMarkInput) (*mcp.CallToolResult, session.InstanceView, error) {
		if strings.TrimSpace(input.InstanceID) == "" {
			return nil, session.InstanceView{}, fmt.Errorf("instance_id is required")
		}
		result, out, err := callHost(ctx, "tracker mark", func(ctx context.Context, opts ...grpc.CallOption) (session.InstanceView, error) {
			view, err := client.MarkTracker(ctx, hostservice.MarkTrackerRequest{
				InstanceID: input.InstanceID,
				Index:      input.Index,
				Result:     input.Result,
			}, opts...)
			if err != nil {
				return session.InstanceView{}, err
			}
			return instanceOutput(view), nil
		})
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatusResourceURI)
		}
		return result, out, err
	}
}

// LabelAddInput adjusts a label count.
type LabelAddInput struct {
	InstanceID string `json:"instance_id" jsonschema:"scenario instance identifier"`
	Label      string `json:"label" jsonschema:"label name"`
	Delta      int    `json:"delta" jsonschema:"amount to add, negative to remove"`
}

// LabelAddTool defines the MCP tool schema for label changes.
func LabelAddTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "label_add",
		Description: "Adds to or removes from a label count on a scenario instance",
	}
}

// LabelAddHandler adjusts a label.
func LabelAddHandler(client HostClient) mcp.ToolHandlerFor[LabelAddInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LabelAddInput) (*mcp.CallToolResult, AckResult, error) {
		if strings.TrimSpace(input.InstanceID) == "" {
			return nil, AckResult{}, fmt.Errorf("instance_id is required")
		}
		if strings.TrimSpace(input.Label) == "" {
			return nil, AckResult{}, fmt.Errorf("label is required")
		}
		return callHost(ctx, "label add", ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return client.AddLabel(ctx, hostservice.LabelRequest{
				InstanceID: input.InstanceID,
				Label:      input.Label,
				Delta:      input.Delta,
			}, opts...)
		}))
	}
}

// StatsInput names a scenario.
type StatsInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"catalog scenario identifier"`
}

// StatsResult is the play history of a scenario.
type StatsResult struct {
	ScenarioID         string   `json:"scenario_id" jsonschema:"scenario identifier"`
	TimesPlayed        int      `json:"times_played" jsonschema:"completed activations"`
	TotalVotes         int      `json:"total_votes" jsonschema:"votes received across rounds"`
	AveragePlayerCount float64  `json:"average_player_count" jsonschema:"mean roster size when played"`
	LastPlayed         string   `json:"last_played,omitempty" jsonschema:"RFC3339 timestamp of the last play"`
	Score              float64  `json:"score" jsonschema:"current rotation score"`
	AllowedInRotation  bool     `json:"allowed_in_rotation" jsonschema:"whether the rotation gap allows it now"`
	RotationWeight     *float64 `json:"rotation_weight,omitempty" jsonschema:"rotation weight, when configured"`
	MinimumGapDays     *int     `json:"minimum_gap_days,omitempty" jsonschema:"rotation gap in days, when configured"`
}

func statsResult(view *session.StatsView) StatsResult {
	out := StatsResult{
		ScenarioID:         view.ScenarioID,
		TimesPlayed:        view.TimesPlayed,
		TotalVotes:         view.TotalVotes,
		AveragePlayerCount: view.AveragePlayerCount,
		Score:              view.Score,
		AllowedInRotation:  view.AllowedInRotation,
		RotationWeight:     view.RotationWeight,
		MinimumGapDays:     view.MinimumGapDays,
	}
	if view.LastPlayed != nil {
		out.LastPlayed = view.LastPlayed.UTC().Format(time.RFC3339)
	}
	return out
}

// ScenarioStatsTool defines the MCP tool schema for reading statistics.
func ScenarioStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_stats",
		Description: "Returns the play history and rotation score of a scenario",
	}
}

// ScenarioStatsHandler reads statistics.
func ScenarioStatsHandler(client HostClient) mcp.ToolHandlerFor[StatsInput, StatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, StatsResult, error) {
		scenarioID := strings.TrimSpace(input.ScenarioID)
		if scenarioID == "" {
			return nil, StatsResult{}, fmt.Errorf("scenario_id is required")
		}
		return callHost(ctx, "scenario stats", func(ctx context.Context, opts ...grpc.CallOption) (StatsResult, error) {
			view, err := client.GetStats(ctx, scenarioID, opts...)
			if err != nil {
				return StatsResult{}, err
			}
			return statsResult(view), nil
		})
	}
}

// RotationSetInput replaces a rotation entry.
type RotationSetInput struct {
	ScenarioID     string  `json:"scenario_id" jsonschema:"catalog scenario identifier"`
	Weight         float64 `json:"weight" jsonschema:"rotation weight multiplier"`
	MinimumGapDays int     `json:"minimum_gap_days" jsonschema:"days before the scenario may repeat"`
}

// RotationSetTool defines the MCP tool schema for rotation entries.
func RotationSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "rotation_set",
		Description: "Sets the rotation weight and minimum gap of a scenario",
	}
}

// RotationSetHandler replaces a rotation entry.
func RotationSetHandler(client HostClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[RotationSetInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RotationSetInput) (*mcp.CallToolResult, AckResult, error) {
		scenarioID := strings.TrimSpace(input.ScenarioID)
		if scenarioID == "" {
			return nil, AckResult{}, fmt.Errorf("scenario_id is required")
		}
		result, out, err := callHost(ctx, "rotation set", ack(func(ctx context.Context, opts ...grpc.CallOption) error {
			return client.SetRotationEntry(ctx, hostservice.RotationEntryRequest{
				ScenarioID:     scenarioID,
				Weight:         input.Weight,
				MinimumGapDays: input.MinimumGapDays,
			}, opts...)
		}))
		if err == nil {
			NotifyResourceUpdates(ctx, notify, StatsResourceURI(scenarioID))
		}
		return result, out, err
	}
}
