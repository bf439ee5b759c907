package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Impact-Forge/SharedGamemode/internal/platform/timeouts"
)

const tracerName = "github.com/Impact-Forge/SharedGamemode/internal/services/host/session"

// ErrStopped is returned by Do once the host loop has exited.
var ErrStopped = errors.New("session host stopped")

type request struct {
	name   string
	fn     func(*World) error
	result chan error
}

// Host is the authority: one goroutine owns the World and runs every
// mutation, including the periodic clock advance.
type Host struct {
	world    *World
	requests chan request
	done     chan struct{}
	interval time.Duration
	now      func() time.Time
	logger   *log.Logger
	tracer   trace.Tracer
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithTickInterval sets how often virtual time advances.
func WithTickInterval(d time.Duration) HostOption {
	return func(h *Host) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithHostClock replaces the wall clock used to measure elapsed time.
func WithHostClock(now func() time.Time) HostOption {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHostLogger sets the host logger.
func WithHostLogger(logger *log.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHost wraps world. Call Run to start the loop.
func NewHost(world *World, opts ...HostOption) *Host {
	h := &Host{
		world:    world,
		requests: make(chan request),
		done:     make(chan struct{}),
		interval: timeouts.HostTick,
		now:      time.Now,
		logger:   log.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the world until ctx ends, then tears it down.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	last := h.now()
	for {
		select {
		case <-ctx.Done():
			h.world.TearDown()
			return nil
		case <-ticker.C:
			now := h.now()
			h.world.Advance(now.Sub(last))
			last = now
		case req := <-h.requests:
			req.result <- h.call(req)
		}
	}
}

// Do runs fn on the host goroutine and returns its error. name labels the
// trace span.
func (h *Host) Do(ctx context.Context, name string, fn func(*World) error) error {
	ctx, span := h.tracer.Start(ctx, "session."+name, trace.WithAttributes(attribute.String("session.operation", name)))
	defer span.End()

	req := request{name: name, fn: fn, result: make(chan error, 1)}
	select {
	case h.requests <- req:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) call(req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("session %s panicked: %v", req.name, r)
			err = fmt.Errorf("session %s: %v", req.name, r)
		}
	}()
	return req.fn(h.world)
}
