package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpcmd "google.golang.org/grpc/metadata"

	grpcmeta "github.com/Impact-Forge/SharedGamemode/internal/platform/grpc/metadata"
	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
)

type fakeHostClient struct {
	err error

	lastCtx     context.Context
	lastBallot  [2]string
	lastPart    string
	lastStart   hostservice.StartScenarioRequest
	lastMark    hostservice.MarkTrackerRequest
	lastLabel   hostservice.LabelRequest
	lastRotate  hostservice.RotationEntryRequest
	statsView   *session.StatsView
	markView    *session.InstanceView
	statusView  *session.StatusView
	startVoting *hostservice.StartVotingResponse
	resolved    *hostservice.ResolveVotingResponse
}

func (f *fakeHostClient) record(ctx context.Context) error {
	f.lastCtx = ctx
	return f.err
}

func (f *fakeHostClient) Status(ctx context.Context, _ ...grpc.CallOption) (*session.StatusView, error) {
	return f.statusView, f.record(ctx)
}

func (f *fakeHostClient) StartVoting(ctx context.Context, _ ...grpc.CallOption) (*hostservice.StartVotingResponse, error) {
	return f.startVoting, f.record(ctx)
}

func (f *fakeHostClient) CancelVoting(ctx context.Context, _ ...grpc.CallOption) error {
	return f.record(ctx)
}

func (f *fakeHostClient) ResolveVoting(ctx context.Context, _ ...grpc.CallOption) (*hostservice.ResolveVotingResponse, error) {
	return f.resolved, f.record(ctx)
}

func (f *fakeHostClient) CastVote(ctx context.Context, participantID, scenarioID string, _ ...grpc.CallOption) error {
	f.lastBallot = [2]string{participantID, scenarioID}
	return f.record(ctx)
}

func (f *fakeHostClient) Veto(ctx context.Context, participantID, scenarioID string, _ ...grpc.CallOption) error {
	f.lastBallot = [2]string{participantID, scenarioID}
	return f.record(ctx)
}

func (f *fakeHostClient) UpdatePerformance(ctx context.Context, participantID string, _ float64, _ ...grpc.CallOption) error {
	f.lastPart = participantID
	return f.record(ctx)
}

func (f *fakeHostClient) JoinParticipant(ctx context.Context, participantID string, _ ...grpc.CallOption) error {
	f.lastPart = participantID
	return f.record(ctx)
}

func (f *fakeHostClient) LeaveParticipant(ctx context.Context, participantID string, _ ...grpc.CallOption) error {
	f.lastPart = participantID
	return f.record(ctx)
}

func (f *fakeHostClient) StartScenario(ctx context.Context, req hostservice.StartScenarioRequest, _ ...grpc.CallOption) (*hostservice.StartScenarioResponse, error) {
	f.lastStart = req
	return &hostservice.StartScenarioResponse{Active: []string{req.ScenarioID}}, f.record(ctx)
}

func (f *fakeHostClient) CancelScenario(ctx context.Context, _ string, _ ...grpc.CallOption) error {
	return f.record(ctx)
}

func (f *fakeHostClient) MarkTracker(ctx context.Context, req hostservice.MarkTrackerRequest, _ ...grpc.CallOption) (*session.InstanceView, error) {
	f.lastMark = req
	return f.markView, f.record(ctx)
}

func (f *fakeHostClient) AddLabel(ctx context.Context, req hostservice.LabelRequest, _ ...grpc.CallOption) error {
	f.lastLabel = req
	return f.record(ctx)
}

func (f *fakeHostClient) GetStats(ctx context.Context, _ string, _ ...grpc.CallOption) (*session.StatsView, error) {
	return f.statsView, f.record(ctx)
}

func (f *fakeHostClient) SetRotationEntry(ctx context.Context, req hostservice.RotationEntryRequest, _ ...grpc.CallOption) error {
	f.lastRotate = req
	return f.record(ctx)
}

func (f *fakeHostClient) PhaseChanged(ctx context.Context, phase string, _ ...grpc.CallOption) (*hostservice.PhaseResponse, error) {
	return &hostservice.PhaseResponse{VotingStarted: phase == "Game.EndGame"}, f.record(ctx)
}

func recordNotifications() (*[]string, ResourceUpdateNotifier) {
	var uris []string
	return &uris, func(_ context.Context, uri string) { uris = append(uris, uri) }
}

func TestVoteCastHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeHostClient{}
		notified, notify := recordNotifications()
		toolResult, result, err := VoteCastHandler(client, notify)(context.Background(), nil, BallotInput{ParticipantID: "p1", ScenarioID: "duel"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.OK || client.lastBallot != [2]string{"p1", "duel"} {
			t.Fatalf("result = %+v, ballot = %v", result, client.lastBallot)
		}
		if toolResult == nil || toolResult.Meta[grpcmeta.RequestIDHeader] == "" {
			t.Fatalf("expected request id in tool metadata, got %+v", toolResult)
		}
		if invocation, _ := toolResult.Meta[grpcmeta.InvocationIDHeader].(string); invocation == "" {
			t.Fatal("expected invocation id in tool metadata")
		}
		md, _ := grpcmd.FromOutgoingContext(client.lastCtx)
		if len(md.Get(grpcmeta.RequestIDHeader)) != 1 {
			t.Fatalf("outgoing metadata = %v", md)
		}
		if len(*notified) != 1 || (*notified)[0] != StatusResourceURI {
			t.Fatalf("notified = %v", *notified)
		}
	})

	t.Run("missing participant", func(t *testing.T) {
		client := &fakeHostClient{}
		_, _, err := VoteCastHandler(client, nil)(context.Background(), nil, BallotInput{ScenarioID: "duel"})
		if err == nil || client.lastCtx != nil {
			t.Fatalf("err = %v, want validation error before any call", err)
		}
	})

	t.Run("host error", func(t *testing.T) {
		client := &fakeHostClient{err: errors.New("voting inactive")}
		notified, notify := recordNotifications()
		_, _, err := VetoCastHandler(client, notify)(context.Background(), nil, BallotInput{ParticipantID: "p1", ScenarioID: "duel"})
		if err == nil {
			t.Fatal("expected error")
		}
		if len(*notified) != 0 {
			t.Fatalf("notified on failure: %v", *notified)
		}
	})
}

func TestVotingStartAndResolveHandlers(t *testing.T) {
	client := &fakeHostClient{
		startVoting: &hostservice.StartVotingResponse{Round: 2, Options: []string{"duel", "hunt"}},
		resolved:    &hostservice.ResolveVotingResponse{Round: 2, Winner: "hunt"},
	}
	notified, notify := recordNotifications()

	_, started, err := VotingStartHandler(client, notify)(context.Background(), nil, VotingStartInput{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Round != 2 || len(started.Options) != 2 {
		t.Fatalf("started = %+v", started)
	}
	_, resolved, err := VotingResolveHandler(client, notify)(context.Background(), nil, VotingResolveInput{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Winner != "hunt" {
		t.Fatalf("resolved = %+v", resolved)
	}
	want := []string{StatusResourceURI, StatusResourceURI, "scenario://hunt/stats"}
	if len(*notified) != len(want) {
		t.Fatalf("notified = %v, want %v", *notified, want)
	}
	for i := range want {
		if (*notified)[i] != want[i] {
			t.Fatalf("notified = %v, want %v", *notified, want)
		}
	}
}

func TestScenarioHandlers(t *testing.T) {
	client := &fakeHostClient{
		markView: &session.InstanceView{InstanceID: "i1", State: "ended"},
	}

	_, started, err := ScenarioStartHandler(client, nil)(context.Background(), nil, ScenarioStartInput{ScenarioID: " duel ", Activate: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if client.lastStart.ScenarioID != "duel" || !client.lastStart.Activate {
		t.Fatalf("request = %+v", client.lastStart)
	}
	if len(started.ActiveScenarios) != 1 || started.Instance != nil {
		t.Fatalf("started = %+v", started)
	}

	_, view, err := TrackerMarkHandler(client, nil)(context.Background(), nil, TrackerMarkInput{InstanceID: "i1", Index: 1, Result: "success"})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if view.State != "ended" || client.lastMark.Index != 1 {
		t.Fatalf("view = %+v, request = %+v", view, client.lastMark)
	}

	if _, _, err := LabelAddHandler(client)(context.Background(), nil, LabelAddInput{InstanceID: "i1", Label: "relics", Delta: -1}); err != nil {
		t.Fatalf("label: %v", err)
	}
	if client.lastLabel.Delta != -1 {
		t.Fatalf("label request = %+v", client.lastLabel)
	}
	if _, _, err := LabelAddHandler(client)(context.Background(), nil, LabelAddInput{InstanceID: "i1"}); err == nil {
		t.Fatal("expected label validation error")
	}
	if _, _, err := ScenarioStartHandler(client, nil)(context.Background(), nil, ScenarioStartInput{}); err == nil {
		t.Fatal("expected scenario validation error")
	}
}

func TestScenarioStatsHandlerFormatsTime(t *testing.T) {
	played := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	weight := 1.5
	client := &fakeHostClient{statsView: &session.StatsView{
		ScenarioID:     "duel",
		TimesPlayed:    3,
		LastPlayed:     &played,
		RotationWeight: &weight,
	}}
	_, result, err := ScenarioStatsHandler(client)(context.Background(), nil, StatsInput{ScenarioID: "duel"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if result.LastPlayed != "2026-03-04T05:06:07Z" || result.TimesPlayed != 3 || *result.RotationWeight != 1.5 {
		t.Fatalf("result = %+v", result)
	}
}

func TestPhaseChangedHandler(t *testing.T) {
	client := &fakeHostClient{}
	notified, notify := recordNotifications()
	_, result, err := PhaseChangedHandler(client, notify)(context.Background(), nil, PhaseInput{Phase: "Game.Warmup"})
	if err != nil || result.VotingStarted || len(*notified) != 0 {
		t.Fatalf("warmup: result = %+v, err = %v, notified = %v", result, err, *notified)
	}
	_, result, err = PhaseChangedHandler(client, notify)(context.Background(), nil, PhaseInput{Phase: "Game.EndGame"})
	if err != nil || !result.VotingStarted || len(*notified) != 1 {
		t.Fatalf("end game: result = %+v, err = %v, notified = %v", result, err, *notified)
	}
}

func TestStatsResourceHandler(t *testing.T) {
	client := &fakeHostClient{statsView: &session.StatsView{ScenarioID: "duel", TimesPlayed: 1}}
	handler := StatsResourceHandler(client)

	res, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "scenario://duel/stats"}})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(res.Contents) != 1 || res.Contents[0].MIMEType != "application/json" {
		t.Fatalf("contents = %+v", res.Contents)
	}

	for _, uri := range []string{"scenario:///stats", "campaign://duel/stats", "scenario://a/b/stats"} {
		if _, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}); err == nil {
			t.Fatalf("expected error for %q", uri)
		}
	}
}

func TestSessionStatusHandlerEncodesEmptyLists(t *testing.T) {
	client := &fakeHostClient{statusView: &session.StatusView{
		Instances:   []session.InstanceView{{InstanceID: "i1", ScenarioID: "duel"}},
		CatalogSize: 2,
	}}
	_, status, err := SessionStatusHandler(client)(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ActiveScenarios == nil || status.Participants == nil || status.Voting.Options == nil {
		t.Fatalf("status = %+v, want empty lists instead of nil", status)
	}
	if len(status.Instances) != 1 || status.Instances[0].Trackers == nil {
		t.Fatalf("instances = %+v, want trackers list", status.Instances)
	}
	if status.CatalogSize != 2 {
		t.Fatalf("catalog size = %d, want 2", status.CatalogSize)
	}

	client.statusView = nil
	if _, status, err = SessionStatusHandler(client)(context.Background(), nil, StatusInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Instances == nil {
		t.Fatal("nil host status produced nil instances")
	}
}
