package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultSubjectPrefix is the NATS subject prefix for host events.
const DefaultSubjectPrefix = "sharedgamemode.events"

// Type names an event kind. It doubles as the subject suffix.
type Type string

const (
	TypeVotingStarted       Type = "voting.started"
	TypeVotingResolved      Type = "voting.resolved"
	TypeVotingNoWinner      Type = "voting.no_winner"
	TypeScenarioActivated   Type = "scenario.activated"
	TypeScenarioDeactivated Type = "scenario.deactivated"
	TypeScenarioState       Type = "scenario.state_changed"
	TypeStageChanged        Type = "scenario.stage_changed"
	TypeParticipantJoined   Type = "participant.joined"
	TypeParticipantLeft     Type = "participant.left"
	TypeCatalogReloaded     Type = "catalog.reloaded"
)

// Event is one domain notification.
type Event struct {
	Type          Type              `json:"type"`
	Timestamp     time.Time         `json:"timestamp"`
	ScenarioID    string            `json:"scenario_id,omitempty"`
	InstanceID    string            `json:"instance_id,omitempty"`
	ParticipantID string            `json:"participant_id,omitempty"`
	Round         uint64            `json:"round,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, typ Type) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + string(typ)
}

// Noop discards events.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements Publisher.
func (r *Recorder) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns recorded events of typ.
func (r *Recorder) OfType(typ Type) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}
