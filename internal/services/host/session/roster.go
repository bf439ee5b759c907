package session

import (
	"slices"
	"strings"
)

// Roster is the set of participants currently in the session.
type Roster struct {
	participants []string
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Join adds a participant and reports whether they were new.
func (r *Roster) Join(participantID string) bool {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" || r.IsParticipant(participantID) {
		return false
	}
	r.participants = append(r.participants, participantID)
	return true
}

// Leave removes a participant and reports whether they were present.
func (r *Roster) Leave(participantID string) bool {
	before := len(r.participants)
	r.participants = slices.DeleteFunc(r.participants, func(id string) bool { return id == participantID })
	return len(r.participants) != before
}

// IsParticipant reports whether participantID may vote.
func (r *Roster) IsParticipant(participantID string) bool {
	return slices.Contains(r.participants, participantID)
}

// Count returns the number of participants.
func (r *Roster) Count() int {
	return len(r.participants)
}

// Participants lists participants in join order.
func (r *Roster) Participants() []string {
	return slices.Clone(r.participants)
}
