package rotation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

// Saver writes snapshots in the background. Submitting replaces any snapshot
// that has not been written yet, so a burst of mutations costs one write.
type Saver struct {
	store   storage.Store
	logger  *log.Logger
	timeout time.Duration
	onSave  func(error)

	mu      sync.Mutex
	pending *storage.Snapshot
	closed  bool

	writeMu sync.Mutex
	kick    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSaveTimeout bounds each background write.
func WithSaveTimeout(timeout time.Duration) SaverOption {
	return func(s *Saver) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithSaveHook observes the outcome of every write.
func WithSaveHook(fn func(error)) SaverOption {
	return func(s *Saver) {
		s.onSave = fn
	}
}

// WithSaverLogger sets the logger used for failed writes.
func WithSaverLogger(logger *log.Logger) SaverOption {
	return func(s *Saver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSaver starts the background writer for store.
func NewSaver(store storage.Store, opts ...SaverOption) *Saver {
	s := &Saver{
		store:   store,
		logger:  log.Default(),
		timeout: 5 * time.Second,
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Submit queues snap for writing and returns immediately.
func (s *Saver) Submit(snap storage.Snapshot) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	clone := snap.Clone()
	s.pending = &clone
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Flush writes the pending snapshot, if any, before returning.
func (s *Saver) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.write(ctx)
}

// Close flushes and stops the background writer.
func (s *Saver) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return s.write(ctx)
}

func (s *Saver) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			if err := s.write(ctx); err != nil {
				s.logger.Printf("save transition statistics: %v", err)
			}
			cancel()
		}
	}
}

func (s *Saver) write(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	s.mu.Unlock()
	if snap == nil {
		return nil
	}

	err := s.store.Save(ctx, *snap)
	if err != nil {
		// Keep the failed snapshot for Close unless a newer one arrived.
		s.mu.Lock()
		if s.pending == nil {
			s.pending = snap
		}
		s.mu.Unlock()
	}
	if s.onSave != nil {
		s.onSave(err)
	}
	return err
}
