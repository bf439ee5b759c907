package engine

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AllVetoedPolicy decides the outcome of a round whose every option reached
// the veto threshold.
type AllVetoedPolicy int

const (
	// LeastVetoed ignores the threshold and picks the option with the fewest
	// vetoes; ties go to the higher weighted total, then option order.
	LeastVetoed AllVetoedPolicy = iota
	// KeepCurrent ends the round without a winner so the active scenarios
	// keep running.
	KeepCurrent
)

// String returns the configuration name of the policy.
func (p AllVetoedPolicy) String() string {
	switch p {
	case KeepCurrent:
		return "keep_current"
	default:
		return "least_vetoed"
	}
}

// ParseAllVetoedPolicy parses a configuration value.
func ParseAllVetoedPolicy(value string) (AllVetoedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "least_vetoed":
		return LeastVetoed, nil
	case "keep_current":
		return KeepCurrent, nil
	default:
		return LeastVetoed, fmt.Errorf("unknown all-vetoed policy %q", value)
	}
}

// Config tunes a voting round.
type Config struct {
	Duration    time.Duration
	OptionCount int
	// ScenarioTags restricts ballot candidates of both strategies to
	// scenarios carrying at least one of the tags. Empty means no filter.
	ScenarioTags []string

	BaseWeight       float64
	MinWeight        float64
	MaxWeight        float64
	PerformanceScale float64

	AllowVetoes   bool
	VetoThreshold int
	AllVetoed     AllVetoedPolicy

	// EndPhase names the match phase that starts voting automatically.
	EndPhase string
}

// DefaultConfig returns the stock voting configuration.
func DefaultConfig() Config {
	return Config{
		Duration:         30 * time.Second,
		OptionCount:      3,
		BaseWeight:       1.0,
		MinWeight:        0.5,
		MaxWeight:        2.0,
		PerformanceScale: 0.1,
		AllowVetoes:      true,
		VetoThreshold:    3,
		AllVetoed:        LeastVetoed,
		EndPhase:         "Game.EndGame",
	}
}

// Validate reports configuration that cannot produce a sensible round.
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("voting duration must be positive")
	}
	if c.OptionCount <= 0 {
		return fmt.Errorf("option count must be positive")
	}
	if c.MinWeight < 0 || c.MaxWeight < c.MinWeight {
		return fmt.Errorf("vote weight bounds [%v, %v] are invalid", c.MinWeight, c.MaxWeight)
	}
	if c.BaseWeight <= 0 {
		return fmt.Errorf("base vote weight must be positive")
	}
	if c.AllowVetoes && c.VetoThreshold <= 0 {
		return fmt.Errorf("veto threshold must be positive")
	}
	return nil
}

// Multiplier converts a performance score into a vote multiplier.
// Out-of-range and NaN results saturate at the configured bounds.
func (c Config) Multiplier(score float64) float64 {
	value := score * c.PerformanceScale
	if math.IsNaN(value) {
		return c.MinWeight
	}
	return math.Min(math.Max(value, c.MinWeight), c.MaxWeight)
}
