package engine

import "slices"

// Ledger tracks who voted for what, who vetoed this round, and the
// session-wide performance multipliers.
type Ledger struct {
	ballots     map[string]string
	voters      []string
	vetoes      map[string]string
	multipliers map[string]float64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		ballots:     make(map[string]string),
		vetoes:      make(map[string]string),
		multipliers: make(map[string]float64),
	}
}

// ResetRound clears ballots and vetoes. Multipliers survive.
func (l *Ledger) ResetRound() {
	clear(l.ballots)
	clear(l.vetoes)
	l.voters = l.voters[:0]
}

// Ballot returns the participant's current choice.
func (l *Ledger) Ballot(participantID string) (string, bool) {
	choice, ok := l.ballots[participantID]
	return choice, ok
}

// Record replaces the participant's choice and returns the previous one.
func (l *Ledger) Record(participantID, scenarioID string) (previous string, hadPrevious bool) {
	previous, hadPrevious = l.ballots[participantID]
	if !hadPrevious {
		l.voters = append(l.voters, participantID)
	}
	l.ballots[participantID] = scenarioID
	return previous, hadPrevious
}

// Voters lists participants in first-vote order.
func (l *Ledger) Voters() []string {
	return slices.Clone(l.voters)
}

// Vetoed reports whether the participant already vetoed this round.
func (l *Ledger) Vetoed(participantID string) bool {
	_, ok := l.vetoes[participantID]
	return ok
}

// Veto returns the option the participant vetoed this round.
func (l *Ledger) Veto(participantID string) (string, bool) {
	scenarioID, ok := l.vetoes[participantID]
	return scenarioID, ok
}

// RecordVeto stores the participant's veto for this round.
func (l *Ledger) RecordVeto(participantID, scenarioID string) {
	l.vetoes[participantID] = scenarioID
}

// SetMultiplier stores a participant's performance multiplier.
func (l *Ledger) SetMultiplier(participantID string, multiplier float64) {
	l.multipliers[participantID] = multiplier
}

// Multiplier returns the participant's multiplier, 1 when never set.
func (l *Ledger) Multiplier(participantID string) float64 {
	if m, ok := l.multipliers[participantID]; ok {
		return m
	}
	return 1.0
}

// Forget drops everything known about a participant.
func (l *Ledger) Forget(participantID string) {
	delete(l.ballots, participantID)
	delete(l.vetoes, participantID)
	delete(l.multipliers, participantID)
	l.voters = slices.DeleteFunc(l.voters, func(id string) bool { return id == participantID })
}
