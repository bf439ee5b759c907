package session

import (
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

// StatusView is the observable state of the session.
type StatusView struct {
	Voting          VotingView     `json:"voting"`
	ActiveScenarios []string       `json:"active_scenarios"`
	PendingScenario string         `json:"pending_scenario,omitempty"`
	Instances       []InstanceView `json:"instances"`
	Participants    []string       `json:"participants"`
	CatalogSize     int            `json:"catalog_size"`
}

// VotingView mirrors engine.Status.
type VotingView struct {
	Phase            string       `json:"phase"`
	Round            uint64       `json:"round"`
	RemainingSeconds float64      `json:"remaining_seconds"`
	Strategy         string       `json:"strategy"`
	Options          []OptionView `json:"options"`
	Voters           int          `json:"voters"`
	LastWinner       string       `json:"last_winner,omitempty"`
}

// OptionView is one ballot entry.
type OptionView struct {
	ScenarioID    string  `json:"scenario_id"`
	Votes         int     `json:"votes"`
	WeightedVotes float64 `json:"weighted_votes"`
	Vetoes        int     `json:"vetoes"`
	Vetoed        bool    `json:"vetoed"`
}

// InstanceView describes a running scenario instance.
type InstanceView struct {
	InstanceID          string            `json:"instance_id"`
	ScenarioID          string            `json:"scenario_id"`
	State               string            `json:"state"`
	Stage               string            `json:"stage"`
	PreviousStageResult string            `json:"previous_stage_result"`
	TransitionPending   bool              `json:"transition_pending"`
	Tags                []string          `json:"tags,omitempty"`
	Labels              map[string]int    `json:"labels,omitempty"`
	Trackers            []TrackerViewJSON `json:"trackers"`
}

// TrackerViewJSON describes one live tracker.
type TrackerViewJSON struct {
	Index     int    `json:"index"`
	Objective string `json:"objective"`
	Kind      string `json:"kind"`
	Result    string `json:"result"`
}

// StatsView is the persisted play history of a scenario.
type StatsView struct {
	ScenarioID         string     `json:"scenario_id"`
	TimesPlayed        int        `json:"times_played"`
	TotalVotes         int        `json:"total_votes"`
	AveragePlayerCount float64    `json:"average_player_count"`
	LastPlayed         *time.Time `json:"last_played,omitempty"`
	Score              float64    `json:"score"`
	AllowedInRotation  bool       `json:"allowed_in_rotation"`
	RotationWeight     *float64   `json:"rotation_weight,omitempty"`
	MinimumGapDays     *int       `json:"minimum_gap_days,omitempty"`
}

func votingView(status engine.Status, vetoed func(string) bool) VotingView {
	view := VotingView{
		Phase:            status.Phase.String(),
		Round:            status.Round,
		RemainingSeconds: status.Remaining.Seconds(),
		Strategy:         status.Strategy,
		Options:          make([]OptionView, 0, len(status.Options)),
		Voters:           status.Voters,
		LastWinner:       status.LastWinner,
	}
	for _, opt := range status.Options {
		view.Options = append(view.Options, OptionView{
			ScenarioID:    opt.ScenarioID,
			Votes:         opt.Votes,
			WeightedVotes: opt.WeightedVotes,
			Vetoes:        opt.Vetoes,
			Vetoed:        vetoed(opt.ScenarioID),
		})
	}
	return view
}

func instanceView(inst *domain.Instance) InstanceView {
	scenario := inst.Scenario()
	view := InstanceView{
		InstanceID:          inst.InstanceID(),
		ScenarioID:          inst.ScenarioID(),
		State:               inst.State().String(),
		Stage:               stageName(scenario, inst.CurrentStage()),
		PreviousStageResult: inst.PreviousStageResult().String(),
		TransitionPending:   inst.TransitionPending(),
		Tags:                inst.Tags(),
		Trackers:            []TrackerViewJSON{},
	}
	if inst.Labels().Len() > 0 {
		view.Labels = inst.Labels().Snapshot()
	}
	for _, tracker := range inst.Trackers() {
		objective := ""
		if obj, ok := scenario.Objective(tracker.Objective); ok {
			objective = obj.Name
		}
		view.Trackers = append(view.Trackers, TrackerViewJSON{
			Index:     tracker.Index,
			Objective: objective,
			Kind:      tracker.Kind,
			Result:    tracker.Result.String(),
		})
	}
	return view
}

func stageName(scenario *domain.Scenario, id domain.StageID) string {
	if scenario == nil || id == domain.NoStage {
		return ""
	}
	if stage, ok := scenario.Stage(id); ok {
		return stage.Name
	}
	return ""
}

func statsView(st storage.Stats) StatsView {
	view := StatsView{
		ScenarioID:         st.ScenarioID,
		TimesPlayed:        st.TimesPlayed,
		TotalVotes:         st.TotalVotes,
		AveragePlayerCount: st.AveragePlayerCount,
	}
	if !st.LastPlayed.IsZero() {
		played := st.LastPlayed
		view.LastPlayed = &played
	}
	return view
}
