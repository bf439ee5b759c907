package engine

import (
	"math/rand"
	"slices"
)

// CandidateFilter narrows the eligible candidate set.
type CandidateFilter struct {
	Tags []string
}

// Candidates lists scenarios that may appear on a ballot.
type Candidates interface {
	ListEligibleCandidates(filter CandidateFilter) []string
}

// Ranker supplies popularity-ranked candidates and rotation filtering.
type Ranker interface {
	GetWeightedCandidates(count int) []string
	ApplyRotationFilter(options []string, desiredCount int) []string
}

// Strategy generates the options of a round and picks its winner.
type Strategy interface {
	Name() string
	// Weighted reports whether performance weights and vetoes apply.
	Weighted() bool
	Generate(cfg Config, rng *rand.Rand) []string
	Resolve(options []Option, cfg Config, rng *rand.Rand) (winner string, ok bool)
}

// Uniform draws options uniformly from the eligible candidates and counts
// every ballot once.
type Uniform struct {
	Candidates Candidates
}

// Name implements Strategy.
func (Uniform) Name() string { return "uniform" }

// Weighted implements Strategy.
func (Uniform) Weighted() bool { return false }

// Generate samples up to OptionCount candidates without replacement.
func (u Uniform) Generate(cfg Config, rng *rand.Rand) []string {
	if u.Candidates == nil {
		return nil
	}
	return sample(u.Candidates.ListEligibleCandidates(CandidateFilter{Tags: cfg.ScenarioTags}), cfg.OptionCount, rng)
}

// Resolve picks the first option with the highest tally, or a random option
// when nobody voted.
func (Uniform) Resolve(options []Option, _ Config, rng *rand.Rand) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	best := 0
	for i, opt := range options {
		if opt.Votes > options[best].Votes {
			best = i
		}
	}
	if options[best].Votes == 0 {
		return options[rng.Intn(len(options))].ScenarioID, true
	}
	return options[best].ScenarioID, true
}

// Weighted ranks options by popularity, applies rotation rules, and resolves
// by weighted totals with vetoes.
type Weighted struct {
	Ranker Ranker
	// Candidates, when set, removes ranked scenarios that are no longer
	// eligible and seeds the ballot when ranking yields nothing.
	Candidates Candidates
}

// Name implements Strategy.
func (Weighted) Name() string { return "weighted" }

// Weighted implements Strategy.
func (Weighted) Weighted() bool { return true }

// Generate takes the top ranked candidates and applies the rotation filter.
func (w Weighted) Generate(cfg Config, rng *rand.Rand) []string {
	var eligible []string
	if w.Candidates != nil {
		eligible = w.Candidates.ListEligibleCandidates(CandidateFilter{Tags: cfg.ScenarioTags})
	}
	var options []string
	if w.Ranker != nil {
		ranked := w.Ranker.GetWeightedCandidates(cfg.OptionCount)
		if w.Candidates != nil {
			ranked = slices.DeleteFunc(ranked, func(id string) bool { return !slices.Contains(eligible, id) })
		}
		options = w.Ranker.ApplyRotationFilter(ranked, cfg.OptionCount)
		if w.Candidates != nil {
			options = slices.DeleteFunc(options, func(id string) bool { return !slices.Contains(eligible, id) })
		}
	}
	if len(options) == 0 {
		return sample(eligible, cfg.OptionCount, rng)
	}
	return options
}

// Resolve picks the highest weighted total among options below the veto
// threshold. Without any weighted votes it draws uniformly from those
// options. When every option is vetoed the configured policy decides.
func (Weighted) Resolve(options []Option, cfg Config, rng *rand.Rand) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	var open []Option
	for _, opt := range options {
		if !vetoed(opt, cfg) {
			open = append(open, opt)
		}
	}
	if len(open) == 0 {
		if cfg.AllVetoed == KeepCurrent {
			return "", false
		}
		best := 0
		for i, opt := range options {
			if opt.Vetoes < options[best].Vetoes ||
				(opt.Vetoes == options[best].Vetoes && opt.WeightedVotes > options[best].WeightedVotes) {
				best = i
			}
		}
		return options[best].ScenarioID, true
	}

	best := 0
	for i, opt := range open {
		if opt.WeightedVotes > open[best].WeightedVotes {
			best = i
		}
	}
	if open[best].WeightedVotes <= 0 {
		return open[rng.Intn(len(open))].ScenarioID, true
	}
	return open[best].ScenarioID, true
}

func vetoed(opt Option, cfg Config) bool {
	return cfg.AllowVetoes && cfg.VetoThreshold > 0 && opt.Vetoes >= cfg.VetoThreshold
}

func sample(pool []string, count int, rng *rand.Rand) []string {
	pool = sortedUnique(slices.Clone(pool))
	count = min(count, len(pool))
	picked := make([]string, 0, count)
	for len(picked) < count {
		i := rng.Intn(len(pool))
		picked = append(picked, pool[i])
		pool = slices.Delete(pool, i, i+1)
	}
	return picked
}

func sortedUnique(ids []string) []string {
	slices.Sort(ids)
	return slices.Compact(ids)
}
