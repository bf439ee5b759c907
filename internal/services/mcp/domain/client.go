package domain

import (
	"context"

	"google.golang.org/grpc"

	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// HostClient is the subset of the host API used by MCP tools.
type HostClient interface {
	Status(ctx context.Context, opts ...grpc.CallOption) (*session.StatusView, error)
	StartVoting(ctx context.Context, opts ...grpc.CallOption) (*hostservice.StartVotingResponse, error)
	CancelVoting(ctx context.Context, opts ...grpc.CallOption) error
	ResolveVoting(ctx context.Context, opts ...grpc.CallOption) (*hostservice.ResolveVotingResponse, error)
	CastVote(ctx context.Context, participantID, scenarioID string, opts ...grpc.CallOption) error
	Veto(ctx context.Context, participantID, scenarioID string, opts ...grpc.CallOption) error
	UpdatePerformance(ctx context.Context, participantID string, score float64, opts ...grpc.CallOption) error
	JoinParticipant(ctx context.Context, participantID string, opts ...grpc.CallOption) error
	LeaveParticipant(ctx context.Context, participantID string, opts ...grpc.CallOption) error
	StartScenario(ctx context.Context, req hostservice.StartScenarioRequest, opts ...grpc.CallOption) (*hostservice.StartScenarioResponse, error)
	CancelScenario(ctx context.Context, instanceID string, opts ...grpc.CallOption) error
	MarkTracker(ctx context.Context, req hostservice.MarkTrackerRequest, opts ...grpc.CallOption) (*session.InstanceView, error)
	AddLabel(ctx context.Context, req hostservice.LabelRequest, opts ...grpc.CallOption) error
	GetStats(ctx context.Context, scenarioID string, opts ...grpc.CallOption) (*session.StatsView, error)
	SetRotationEntry(ctx context.Context, req hostservice.RotationEntryRequest, opts ...grpc.CallOption) error
	PhaseChanged(ctx context.Context, phase string, opts ...grpc.CallOption) (*hostservice.PhaseResponse, error)
}

var _ HostClient = (*hostservice.Client)(nil)

// Resource URIs updated by host mutations.
const (
	StatusResourceURI = "sharedgamemode://status"
)

// StatsResourceURI addresses the statistics resource of scenarioID.
func StatsResourceURI(scenarioID string) string {
	return "scenario://" + scenarioID + "/stats"
}

// AckResult is the output of tools without a payload.
type AckResult struct {
	OK bool `json:"ok" jsonschema:"true when the host accepted the call"`
}

// ack adapts a host call without a response body.
func ack(call func(context.Context, ...grpc.CallOption) error) func(context.Context, ...grpc.CallOption) (AckResult, error) {
	return func(ctx context.Context, opts ...grpc.CallOption) (AckResult, error) {
		if err := call(ctx, opts...); err != nil {
			return AckResult{}, err
		}
		return AckResult{OK: true}, nil
	}
}

// statusOutput copies status with nil lists replaced by empty ones so every
// list encodes as a JSON array.
func statusOutput(status *session.StatusView) session.StatusView {
	if status == nil {
		return statusOutput(&session.StatusView{})
	}
	out := *status
	out.ActiveScenarios = nonNil(out.ActiveScenarios)
	out.Participants = nonNil(out.Participants)
	out.Voting.Options = nonNil(out.Voting.Options)
	out.Instances = make([]session.InstanceView, 0, len(status.Instances))
	for _, inst := range status.Instances {
		out.Instances = append(out.Instances, instanceOutput(&inst))
	}
	return out
}

func instanceOutput(view *session.InstanceView) session.InstanceView {
	if view == nil {
		return session.InstanceView{Trackers: []session.TrackerViewJSON{}}
	}
	out := *view
	out.Trackers = nonNil(out.Trackers)
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
