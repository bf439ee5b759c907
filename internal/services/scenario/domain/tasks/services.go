package tasks

import (
	"errors"
	"strings"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
)

const (
	KindLabelGrant = "label_grant"
	KindAnnounce   = "announce"
)

// LabelGrant adds labels when it begins and takes them back when it ends,
// unless keep is set.
type LabelGrant struct {
	labels []string
	count  int
	keep   bool
	env    domain.Env
}

// NewLabelGrant reads params labels (comma separated), count (default 1) and
// keep.
func NewLabelGrant(spec domain.TaskSpec) (domain.Service, error) {
	var names []string
	for _, part := range strings.Split(spec.String("labels", ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("label_grant param labels is required")
	}
	count, err := spec.Int("count", 1)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errors.New("label_grant param count must be positive")
	}
	keep, err := spec.Bool("keep", false)
	if err != nil {
		return nil, err
	}
	return &LabelGrant{labels: names, count: count, keep: keep}, nil
}

func (s *LabelGrant) BeginPlay(env domain.Env) {
	s.env = env
	for _, label := range s.labels {
		env.Labels().Add(label, s.count)
	}
}

func (s *LabelGrant) EndPlay(bool) {
	if s.env == nil || s.keep {
		return
	}
	for _, label := range s.labels {
		s.env.Labels().Remove(label, s.count)
	}
	s.env = nil
}

// Announce logs its lifecycle and, as a global service, every stage boundary.
type Announce struct {
	message string
	env     domain.Env
}

// NewAnnounce reads param message.
func NewAnnounce(spec domain.TaskSpec) (domain.Service, error) {
	return &Announce{message: spec.String("message", "")}, nil
}

func (s *Announce) BeginPlay(env domain.Env) {
	s.env = env
	if s.message != "" {
		env.Logf("%s", s.message)
	} else {
		env.Logf("announce begin")
	}
}

func (s *Announce) EndPlay(cancelled bool) {
	if s.env != nil {
		s.env.Logf("announce end cancelled=%v", cancelled)
	}
}

// StageBegun implements domain.StageObserver.
func (s *Announce) StageBegun(prev domain.Result, prevStage domain.StageID) {
	if s.env != nil {
		s.env.Logf("stage begun after stage %d (%s)", prevStage, prev)
	}
}

// StageEnded implements domain.StageObserver.
func (s *Announce) StageEnded(result domain.Result) {
	if s.env != nil {
		s.env.Logf("stage ended: %s", result)
	}
}
