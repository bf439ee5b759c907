package host

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// Client is a typed client for the host service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := fromStruct(out, resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, method+" response", err)
	}
	return resp, nil
}

// Status returns the session status.
func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*session.StatusView, error) {
	return invoke[session.StatusView](ctx, c, MethodStatus, StatusRequest{}, opts...)
}

// StartVoting opens a voting round.
func (c *Client) StartVoting(ctx context.Context, opts ...grpc.CallOption) (*StartVotingResponse, error) {
	return invoke[StartVotingResponse](ctx, c, MethodStartVoting, Empty{}, opts...)
}

// CancelVoting closes the open round without a winner.
func (c *Client) CancelVoting(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodCancelVoting, Empty{}, opts...)
	return err
}

// ResolveVoting resolves the open round immediately.
func (c *Client) ResolveVoting(ctx context.Context, opts ...grpc.CallOption) (*ResolveVotingResponse, error) {
	return invoke[ResolveVotingResponse](ctx, c, MethodResolveVoting, Empty{}, opts...)
}

// CastVote records a ballot.
func (c *Client) CastVote(ctx context.Context, participantID, scenarioID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodCastVote, BallotRequest{ParticipantID: participantID, ScenarioID: scenarioID}, opts...)
	return err
}

// Veto records a veto.
func (c *Client) Veto(ctx context.Context, participantID, scenarioID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodVeto, BallotRequest{ParticipantID: participantID, ScenarioID: scenarioID}, opts...)
	return err
}

// UpdatePerformance sets a participant's performance score.
func (c *Client) UpdatePerformance(ctx context.Context, participantID string, score float64, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodUpdatePerformance, PerformanceRequest{ParticipantID: participantID, Score: score}, opts...)
	return err
}

// JoinParticipant adds a participant.
func (c *Client) JoinParticipant(ctx context.Context, participantID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodJoinParticipant, ParticipantRequest{ParticipantID: participantID}, opts...)
	return err
}

// LeaveParticipant removes a participant.
func (c *Client) LeaveParticipant(ctx context.Context, participantID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodLeaveParticipant, ParticipantRequest{ParticipantID: participantID}, opts...)
	return err
}

// StartScenario starts or activates a scenario.
func (c *Client) StartScenario(ctx context.Context, req StartScenarioRequest, opts ...grpc.CallOption) (*StartScenarioResponse, error) {
	return invoke[StartScenarioResponse](ctx, c, MethodStartScenario, req, opts...)
}

// CancelScenario cancels an instance.
func (c *Client) CancelScenario(ctx context.Context, instanceID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodCancelScenario, InstanceRequest{InstanceID: instanceID}, opts...)
	return err
}

// MarkTracker sets a manual tracker's result.
func (c *Client) MarkTracker(ctx context.Context, req MarkTrackerRequest, opts ...grpc.CallOption) (*session.InstanceView, error) {
	return invoke[session.InstanceView](ctx, c, MethodMarkTracker, req, opts...)
}

// AddLabel adjusts a label count.
func (c *Client) AddLabel(ctx context.Context, req LabelRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodAddLabel, req, opts...)
	return err
}

// GetStats returns a scenario's statistics.
func (c *Client) GetStats(ctx context.Context, scenarioID string, opts ...grpc.CallOption) (*session.StatsView, error) {
	return invoke[session.StatsView](ctx, c, MethodGetStats, StatsRequest{ScenarioID: scenarioID}, opts...)
}

// SetRotationEntry replaces a rotation entry.
func (c *Client) SetRotationEntry(ctx context.Context, req RotationEntryRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodSetRotationEntry, req, opts...)
	return err
}

// PhaseChanged reports a match phase change.
func (c *Client) PhaseChanged(ctx context.Context, phase string, opts ...grpc.CallOption) (*PhaseResponse, error) {
	return invoke[PhaseResponse](ctx, c, MethodPhaseChanged, PhaseRequest{Phase: phase}, opts...)
}
