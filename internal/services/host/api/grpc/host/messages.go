package host

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

// StatusRequest asks for the session status.
type StatusRequest struct{}

// StartVotingResponse lists the options of the opened round.
type StartVotingResponse struct {
	Round   uint64   `json:"round"`
	Options []string `json:"options"`
}

// BallotRequest carries a vote or a veto.
type BallotRequest struct {
	ParticipantID string `json:"participant_id"`
	ScenarioID    string `json:"scenario_id"`
}

// PerformanceRequest updates a participant's performance score.
type PerformanceRequest struct {
	ParticipantID string  `json:"participant_id"`
	Score         float64 `json:"score"`
}

// ParticipantRequest names a participant.
type ParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
}

// StartScenarioRequest starts a scenario instance. Activate routes through
// the activation set instead of starting a standalone instance.
type StartScenarioRequest struct {
	ScenarioID string   `json:"scenario_id"`
	Tags       []string `json:"tags,omitempty"`
	Activate   bool     `json:"activate,omitempty"`
	Force      bool     `json:"force,omitempty"`
}

// StartScenarioResponse describes the started instance. Instance is nil
// when the scenario finished during start or was activated.
type StartScenarioResponse struct {
	Instance *session.InstanceView `json:"instance,omitempty"`
	Active   []string              `json:"active_scenarios"`
}

// InstanceRequest names a scenario instance.
type InstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// MarkTrackerRequest sets a manual tracker's result.
type MarkTrackerRequest struct {
	InstanceID string `json:"instance_id"`
	Index      int    `json:"index"`
	Result     string `json:"result"`
}

// LabelRequest adjusts a label count on an instance.
type LabelRequest struct {
	InstanceID string `json:"instance_id"`
	Label      string `json:"label"`
	Delta      int    `json:"delta"`
}

// StatsRequest names a scenario.
type StatsRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// RotationEntryRequest replaces a rotation entry.
type RotationEntryRequest struct {
	ScenarioID     string  `json:"scenario_id"`
	Weight         float64 `json:"weight"`
	MinimumGapDays int     `json:"minimum_gap_days"`
}

// Empty is the response of calls without a payload.
type Empty struct{}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// ResolveVotingResponse reports the winner of a round resolved on demand.
type ResolveVotingResponse struct {
	Round  uint64 `json:"round"`
	Winner string `json:"winner"`
}

// PhaseRequest reports a match phase change.
type PhaseRequest struct {
	Phase string `json:"phase"`
}

// PhaseResponse reports whether the phase change opened a voting round.
type PhaseResponse struct {
	VotingStarted bool `json:"voting_started"`
}
