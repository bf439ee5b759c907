// Package host exposes the session host over gRPC. Messages travel as
// google.protobuf.Struct values decoded into the typed request structs of
// this package.
package host

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

// Runner executes closures on the session authority.
type Runner interface {
	Do(ctx context.Context, name string, fn func(*session.World) error) error
}

// Service implements HostServer on top of a session host.
type Service struct {
	host Runner
}

// NewService creates a host service.
func NewService(host Runner) *Service {
	return &Service{host: host}
}

func (s *Service) do(ctx context.Context, name string, fn func(*session.World) error) error {
	if s == nil || s.host == nil {
		return status.Error(codes.Internal, "session host is not configured")
	}
	return s.host.Do(ctx, name, fn)
}

// Status returns the session status.
func (s *Service) Status(ctx context.Context, _ *StatusRequest) (*session.StatusView, error) {
	var view session.StatusView
	if err := s.do(ctx, "status", func(w *session.World) error {
		view = w.Status()
		return nil
	}); err != nil {
		return nil, err
	}
	return &view, nil
}

// StartVoting opens a voting round.
func (s *Service) StartVoting(ctx context.Context, _ *Empty) (*StartVotingResponse, error) {
	resp := &StartVotingResponse{}
	if err := s.do(ctx, "start_voting", func(w *session.World) error {
		options, err := w.StartVoting()
		if err != nil {
			return err
		}
		resp.Options = options
		resp.Round = w.Status().Voting.Round
		return nil
	}); err != nil {
		return nil, err
	}
	if resp.Options == nil {
		resp.Options = []string{}
	}
	return resp, nil
}

// CancelVoting closes the round without a winner.
func (s *Service) CancelVoting(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.do(ctx, "cancel_voting", func(w *session.World) error {
		return w.CancelVoting()
	})
}

// ResolveVoting resolves the open round immediately.
func (s *Service) ResolveVoting(ctx context.Context, _ *Empty) (*ResolveVotingResponse, error) {
	resp := &ResolveVotingResponse{}
	if err := s.do(ctx, "resolve_voting", func(w *session.World) error {
		outcome, err := w.ProcessResults()
		resp.Round, resp.Winner = outcome.Round, outcome.Winner
		return err
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

// CastVote records a ballot.
func (s *Service) CastVote(ctx context.Context, in *BallotRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "cast vote request is required")
	}
	participantID, scenarioID := strings.TrimSpace(in.ParticipantID), strings.TrimSpace(in.ScenarioID)
	return &Empty{}, s.do(ctx, "cast_vote", func(w *session.World) error {
		return w.CastVote(participantID, scenarioID)
	})
}

// Veto records a veto.
func (s *Service) Veto(ctx context.Context, in *BallotRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "veto request is required")
	}
	participantID, scenarioID := strings.TrimSpace(in.ParticipantID), strings.TrimSpace(in.ScenarioID)
	return &Empty{}, s.do(ctx, "veto", func(w *session.World) error {
		return w.Veto(participantID, scenarioID)
	})
}

// UpdatePerformance sets a participant's performance score.
func (s *Service) UpdatePerformance(ctx context.Context, in *PerformanceRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "update performance request is required")
	}
	participantID := strings.TrimSpace(in.ParticipantID)
	return &Empty{}, s.do(ctx, "update_performance", func(w *session.World) error {
		return w.UpdatePerformance(participantID, in.Score)
	})
}

// JoinParticipant adds a participant to the session.
func (s *Service) JoinParticipant(ctx context.Context, in *ParticipantRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "join participant request is required")
	}
	participantID := strings.TrimSpace(in.ParticipantID)
	return &Empty{}, s.do(ctx, "join_participant", func(w *session.World) error {
		return w.Join(participantID)
	})
}

// LeaveParticipant removes a participant from the session.
func (s *Service) LeaveParticipant(ctx context.Context, in *ParticipantRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "leave participant request is required")
	}
	participantID := strings.TrimSpace(in.ParticipantID)
	return &Empty{}, s.do(ctx, "leave_participant", func(w *session.World) error {
		return w.Leave(participantID)
	})
}

// StartScenario starts or activates a scenario.
func (s *Service) StartScenario(ctx context.Context, in *StartScenarioRequest) (*StartScenarioResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "start scenario request is required")
	}
	scenarioID := strings.TrimSpace(in.ScenarioID)
	if scenarioID == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario id is required")
	}
	resp := &StartScenarioResponse{}
	if err := s.do(ctx, "start_scenario", func(w *session.World) error {
		if in.Activate {
			if err := w.ActivateScenario(scenarioID, in.Force); err != nil {
				return err
			}
		} else {
			view, err := w.StartScenario(scenarioID, in.Tags...)
			if err != nil {
				return err
			}
			if _, err := w.Instance(view.InstanceID); err == nil {
				resp.Instance = &view
			}
		}
		resp.Active = w.Status().ActiveScenarios
		return nil
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelScenario cancels a scenario instance.
func (s *Service) CancelScenario(ctx context.Context, in *InstanceRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "cancel scenario request is required")
	}
	instanceID := strings.TrimSpace(in.InstanceID)
	if instanceID == "" {
		return nil, status.Error(codes.InvalidArgument, "instance id is required")
	}
	return &Empty{}, s.do(ctx, "cancel_scenario", func(w *session.World) error {
		return w.CancelScenario(instanceID)
	})
}

// MarkTracker sets the result of a manual tracker.
func (s *Service) MarkTracker(ctx context.Context, in *MarkTrackerRequest) (*session.InstanceView, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "mark tracker request is required")
	}
	instanceID := strings.TrimSpace(in.InstanceID)
	if instanceID == "" {
		return nil, status.Error(codes.InvalidArgument, "instance id is required")
	}
	result, err := domain.ParseResult(in.Result)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "result: %v", err)
	}
	view := &session.InstanceView{InstanceID: instanceID, State: "ended"}
	if err := s.do(ctx, "mark_tracker", func(w *session.World) error {
		if err := w.MarkTracker(instanceID, in.Index, result); err != nil {
			return err
		}
		if current, err := w.Instance(instanceID); err == nil {
			*view = current
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return view, nil
}

// AddLabel adjusts a label count on an instance.
func (s *Service) AddLabel(ctx context.Context, in *LabelRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "add label request is required")
	}
	instanceID, label := strings.TrimSpace(in.InstanceID), strings.TrimSpace(in.Label)
	if instanceID == "" || label == "" {
		return nil, status.Error(codes.InvalidArgument, "instance id and label are required")
	}
	return &Empty{}, s.do(ctx, "add_label", func(w *session.World) error {
		return w.AddLabel(instanceID, label, in.Delta)
	})
}

// GetStats returns a scenario's play history and rotation standing.
func (s *Service) GetStats(ctx context.Context, in *StatsRequest) (*session.StatsView, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get stats request is required")
	}
	scenarioID := strings.TrimSpace(in.ScenarioID)
	var view session.StatsView
	if err := s.do(ctx, "get_stats", func(w *session.World) error {
		var err error
		view, err = w.Stats(scenarioID)
		return err
	}); err != nil {
		return nil, err
	}
	return &view, nil
}

// SetRotationEntry replaces a scenario's rotation entry.
func (s *Service) SetRotationEntry(ctx context.Context, in *RotationEntryRequest) (*Empty, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "set rotation entry request is required")
	}
	entry := storage.RotationEntry{
		ScenarioID:     strings.TrimSpace(in.ScenarioID),
		Weight:         in.Weight,
		MinimumGapDays: in.MinimumGapDays,
	}
	return &Empty{}, s.do(ctx, "set_rotation_entry", func(w *session.World) error {
		return w.SetRotationEntry(entry)
	})
}

// PhaseChanged forwards a match phase change.
func (s *Service) PhaseChanged(ctx context.Context, in *PhaseRequest) (*PhaseResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "phase changed request is required")
	}
	phase := strings.TrimSpace(in.Phase)
	resp := &PhaseResponse{}
	if err := s.do(ctx, "phase_changed", func(w *session.World) error {
		resp.VotingStarted = w.PhaseChanged(phase)
		return nil
	}); err != nil {
		return nil, err
	}
	return resp, nil
}
