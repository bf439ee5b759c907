package playtest

import (
	"slices"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/events"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

func (r *Runner) runStep(run *runState, step Step) error {
	err := r.applyStep(run, step)
	if step.ExpectError == "" {
		return err
	}
	if err == nil {
		return r.assertions.Assertf("expected error %s", step.ExpectError)
	}
	if got := string(apperrors.GetCode(err)); got != step.ExpectError {
		return r.assertions.Assertf("error code = %s, want %s (%v)", got, step.ExpectError, err)
	}
	r.logf("expected error: %v", err)
	return nil
}

func (r *Runner) applyStep(run *runState, step Step) error {
	w := run.world
	args := step.Args
	switch step.Kind {
	case "join":
		return w.Join(stringArg(args, "participant"))
	case "leave":
		return w.Leave(stringArg(args, "participant"))
	case "start_voting":
		options, err := w.StartVoting()
		if err != nil {
			return err
		}
		r.logf("ballot: %v", options)
		return nil
	case "cancel_voting":
		return w.CancelVoting()
	case "resolve":
		outcome, err := w.ProcessResults()
		if err != nil {
			return err
		}
		r.logf("round %d winner: %s", outcome.Round, outcome.Winner)
		return nil
	case "vote", "veto":
		scenarioID, err := r.ballotTarget(run, args)
		if err != nil {
			return err
		}
		if step.Kind == "vote" {
			return w.CastVote(stringArg(args, "participant"), scenarioID)
		}
		return w.Veto(stringArg(args, "participant"), scenarioID)
	case "performance":
		return w.UpdatePerformance(stringArg(args, "participant"), floatArg(args, "score"))
	case "advance":
		value, ok := args["duration"]
		if !ok {
			value = args["seconds"]
		}
		d, err := durationArg(value)
		if err != nil {
			return r.assertions.Failf("advance: %v", err)
		}
		w.Advance(d)
		return nil
	case "phase":
		if w.PhaseChanged(stringArg(args, "phase")) {
			r.logf("phase %s opened voting", stringArg(args, "phase"))
		}
		return nil
	case "start":
		view, err := w.StartScenario(stringArg(args, "scenario"), stringList(args["tags"])...)
		if err != nil {
			return err
		}
		run.instances[aliasArg(args)] = view.InstanceID
		return nil
	case "activate":
		scenarioID := stringArg(args, "scenario")
		force, _ := args["force"].(bool)
		if err := w.ActivateScenario(scenarioID, force); err != nil {
			return err
		}
		r.rememberLatest(run, scenarioID, aliasArg(args))
		return nil
	case "deactivate":
		return w.DeactivateScenario(stringArg(args, "scenario"))
	case "mark":
		instanceID, err := r.instanceID(run, args)
		if err != nil {
			return err
		}
		result, err := domain.ParseResult(stringArg(args, "result"))
		if err != nil {
			return r.assertions.Failf("mark: %v", err)
		}
		return w.MarkTracker(instanceID, intArg(args, "index"), result)
	case "label":
		instanceID, err := r.instanceID(run, args)
		if err != nil {
			return err
		}
		return w.AddLabel(instanceID, stringArg(args, "label"), intArg(args, "n"))
	case "cancel":
		instanceID, err := r.instanceID(run, args)
		if err != nil {
			return err
		}
		return w.CancelScenario(instanceID)
	case "rotation":
		return w.SetRotationEntry(storage.RotationEntry{
			ScenarioID:     stringArg(args, "scenario"),
			Weight:         floatArg(args, "weight"),
			MinimumGapDays: intArg(args, "gap"),
		})
	default:
		return r.expect(run, step)
	}
}

func (r *Runner) expect(run *runState, step Step) error {
	w := run.world
	args := step.Args
	status := w.Status()
	switch step.Kind {
	case "expect_phase":
		if want := stringArg(args, "phase"); status.Voting.Phase != want {
			return r.assertions.Assertf("phase = %s, want %s", status.Voting.Phase, want)
		}
	case "expect_winner":
		if want := stringArg(args, "scenario"); status.Voting.LastWinner != want {
			return r.assertions.Assertf("winner = %q, want %q", status.Voting.LastWinner, want)
		}
	case "expect_options":
		if want := intArg(args, "count"); len(status.Voting.Options) != want {
			return r.assertions.Assertf("options = %d, want %d", len(status.Voting.Options), want)
		}
	case "expect_participants":
		if want := intArg(args, "count"); len(status.Participants) != want {
			return r.assertions.Assertf("participants = %d, want %d", len(status.Participants), want)
		}
	case "expect_active":
		want := stringList(args["scenarios"])
		if !slices.Equal(status.ActiveScenarios, want) {
			return r.assertions.Assertf("active = %v, want %v", status.ActiveScenarios, want)
		}
	case "expect_state":
		instanceID, err := r.instanceID(run, args)
		if err != nil {
			return err
		}
		if got, want := instanceState(run, instanceID), stringArg(args, "state"); got != want {
			return r.assertions.Assertf("instance %s state = %s, want %s", stringArg(args, "instance"), got, want)
		}
	case "expect_stage":
		instanceID, err := r.instanceID(run, args)
		if err != nil {
			return err
		}
		view, err := w.Instance(instanceID)
		if err != nil {
			return r.assertions.Assertf("instance %s: %v", stringArg(args, "instance"), err)
		}
		if want := stringArg(args, "stage"); view.Stage != want {
			return r.assertions.Assertf("instance %s stage = %s, want %s", stringArg(args, "instance"), view.Stage, want)
		}
	case "expect_stats":
		return r.expectStats(run, args)
	case "expect_event":
		return r.expectEvent(run, args)
	default:
		return r.assertions.Failf("unknown step kind %q", step.Kind)
	}
	return nil
}

func (r *Runner) expectStats(run *runState, args map[string]any) error {
	scenarioID := stringArg(args, "scenario")
	stats, err := run.world.Stats(scenarioID)
	if err != nil {
		return err
	}
	if v, ok := args["times_played"]; ok && stats.TimesPlayed != toInt(v) {
		return r.assertions.Assertf("%s times_played = %d, want %d", scenarioID, stats.TimesPlayed, toInt(v))
	}
	if v, ok := args["total_votes"]; ok && stats.TotalVotes != toInt(v) {
		return r.assertions.Assertf("%s total_votes = %d, want %d", scenarioID, stats.TotalVotes, toInt(v))
	}
	if v, ok := args["allowed"].(bool); ok && stats.AllowedInRotation != v {
		return r.assertions.Assertf("%s allowed_in_rotation = %t, want %t", scenarioID, stats.AllowedInRotation, v)
	}
	if v, ok := args["average_player_count"]; ok && stats.AveragePlayerCount != toFloat(v) {
		return r.assertions.Assertf("%s average_player_count = %v, want %v", scenarioID, stats.AveragePlayerCount, toFloat(v))
	}
	return nil
}

func (r *Runner) expectEvent(run *runState, args map[string]any) error {
	eventType := events.Type(stringArg(args, "type"))
	scenarioID := stringArg(args, "scenario")
	matched := 0
	for _, evt := range run.recorder.OfType(eventType) {
		if scenarioID == "" || evt.ScenarioID == scenarioID {
			matched++
		}
	}
	if v, ok := args["count"]; ok {
		if matched != toInt(v) {
			return r.assertions.Assertf("event %s count = %d, want %d", eventType, matched, toInt(v))
		}
		return nil
	}
	if matched == 0 {
		return r.assertions.Assertf("expected event %s", eventType)
	}
	return nil
}

// ballotTarget resolves a scenario ID or a 1-based option index.
func (r *Runner) ballotTarget(run *runState, args map[string]any) (string, error) {
	if scenarioID := stringArg(args, "scenario"); scenarioID != "" {
		return scenarioID, nil
	}
	options := run.world.Status().Voting.Options
	index := intArg(args, "option")
	if index < 1 || index > len(options) {
		return "", r.assertions.Failf("option %d is not on the ballot (%d options)", index, len(options))
	}
	return options[index-1].ScenarioID, nil
}

// rememberLatest maps alias to the newest running instance of scenarioID.
func (r *Runner) rememberLatest(run *runState, scenarioID, alias string) {
	instances := run.world.Status().Instances
	for i := len(instances) - 1; i >= 0; i-- {
		if instances[i].ScenarioID == scenarioID {
			run.instances[alias] = instances[i].InstanceID
			return
		}
	}
}

func (r *Runner) instanceID(run *runState, args map[string]any) (string, error) {
	alias := stringArg(args, "instance")
	instanceID, ok := run.instances[alias]
	if !ok {
		return "", r.assertions.Failf("unknown instance %q", alias)
	}
	return instanceID, nil
}

// instanceState reads a running instance's state, falling back to the last
// recorded state change once it has left the registry.
func instanceState(run *runState, instanceID string) string {
	if view, err := run.world.Instance(instanceID); err == nil {
		return view.State
	}
	state := "none"
	for _, evt := range run.recorder.OfType(events.TypeScenarioState) {
		if evt.InstanceID == instanceID {
			state = evt.Attributes["state"]
		}
	}
	return state
}

func aliasArg(args map[string]any) string {
	if alias := stringArg(args, "as"); alias != "" {
		return alias
	}
	return stringArg(args, "scenario")
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

func intArg(args map[string]any, key string) int {
	return toInt(args[key])
}

func floatArg(args map[string]any, key string) float64 {
	return toFloat(args[key])
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

func stringList(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

