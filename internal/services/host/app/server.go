// Package server wires the session host, its gRPC API, the statistics store
// and the metrics endpoint into one process lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	gogrpc "google.golang.org/grpc"

	platformgrpc "github.com/Impact-Forge/SharedGamemode/internal/platform/grpc"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/grpc/metadata"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/events"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/metrics"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/timeouts"
	"github.com/Impact-Forge/SharedGamemode/internal/random"
	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/catalog"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/tasks"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/rotation"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

// Config describes one host process.
type Config struct {
	GRPCAddr string
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr       string
	CatalogDir        string
	WatchCatalog      bool
	StatsBackend      string
	StatsPath         string
	NATSURL           string
	NATSSubjectPrefix string
	Voting            engine.Config
	Weighted          bool
	// Seed fixes the random source; zero draws a fresh seed.
	Seed         int64
	TickInterval time.Duration
	Logger       *log.Logger
}

// Server hosts the session authority and its endpoints.
type Server struct {
	cfg       Config
	logger    *log.Logger
	grpc      *platformgrpc.Server
	host      *session.Host
	world     *session.World
	metrics   *metrics.Metrics
	store     storage.Store
	saver     *rotation.Saver
	publisher events.Publisher
	watcher   *catalog.Watcher

	metricsListener net.Listener
	metricsServer   *http.Server
}

// New loads the catalog and statistics, builds the world and binds the
// listeners. Call Serve to run it.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if err := cfg.Voting.Validate(); err != nil {
		return nil, fmt.Errorf("voting config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{cfg: cfg, logger: logger, metrics: metrics.New()}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	cfg := s.cfg
	taskRegistry := tasks.Builtin()
	loaded, err := catalog.LoadDir(cfg.CatalogDir, taskRegistry)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	catalogStore := catalog.NewStore(loaded)
	s.logger.Printf("loaded %d scenarios from %s", loaded.Len(), cfg.CatalogDir)

	s.store, err = openStatsStore(ctx, cfg.StatsBackend, cfg.StatsPath)
	if err != nil {
		return err
	}
	var scorerOpts []rotation.Option
	if s.store != nil {
		s.saver = rotation.NewSaver(s.store,
			rotation.WithSaveHook(s.metrics.ObserveSave),
			rotation.WithSaverLogger(s.logger),
		)
		scorerOpts = append(scorerOpts, rotation.WithStore(s.store, s.saver))
	}

	s.publisher, err = openPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
	if err != nil {
		return err
	}

	rng, err := random.NewRand(cfg.Seed)
	if err != nil {
		return err
	}
	s.world, err = session.NewWorld(session.WorldConfig{
		Catalog:       catalogStore,
		Tasks:         taskRegistry,
		ScorerOptions: scorerOpts,
		Voting:        cfg.Voting,
		Weighted:      cfg.Weighted,
		Rand:          rng,
		Publisher:     s.publisher,
		Metrics:       s.metrics,
		Logger:        s.logger,
	})
	if err != nil {
		return err
	}
	// A failed load is logged by the scorer and leaves statistics empty.
	_ = s.world.Scorer().Load(ctx)
	if n := s.world.SeedRotation(); n > 0 {
		s.logger.Printf("seeded %d rotation entries from the catalog", n)
	}

	var hostOpts []session.HostOption
	hostOpts = append(hostOpts, session.WithHostLogger(s.logger))
	if cfg.TickInterval > 0 {
		hostOpts = append(hostOpts, session.WithTickInterval(cfg.TickInterval))
	}
	s.host = session.NewHost(s.world, hostOpts...)

	if cfg.WatchCatalog {
		s.watcher, err = catalog.NewWatcher(cfg.CatalogDir, catalogStore, taskRegistry,
			catalog.WithWatcherLogger(s.logger),
			catalog.WithReloadHook(s.catalogReloaded),
		)
		if err != nil {
			return err
		}
	}

	s.grpc, err = platformgrpc.Listen(cfg.GRPCAddr, s.logger.Printf,
		gogrpc.ChainUnaryInterceptor(
			s.metrics.UnaryServerInterceptor(),
			metadata.UnaryServerInterceptor(nil),
		),
	)
	if err != nil {
		return err
	}
	hostservice.RegisterHostServer(s.grpc.GRPC(), hostservice.NewService(s.host))

	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		s.metricsListener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen metrics on %s: %w", addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}
	}
	return nil
}

func (s *Server) catalogReloaded(c *catalog.Catalog) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.GRPCRequest)
	defer cancel()
	err := s.host.Do(ctx, "catalog_reloaded", func(w *session.World) error {
		w.CatalogReloaded(c)
		return nil
	})
	if err != nil {
		s.logger.Printf("apply catalog reload: %v", err)
	}
}

func openPublisher(url, prefix string) (events.Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return events.Noop{}, nil
	}
	publisher, err := events.ConnectNATS(url, prefix)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return publisher, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.grpc.Addr()
}

// MetricsAddr returns the metrics listener address, empty when disabled.
func (s *Server) MetricsAddr() string {
	if s == nil || s.metricsListener == nil {
		return ""
	}
	return s.metricsListener.Addr().String()
}

// Run creates and serves a host until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the host loop and every endpoint until ctx ends or one of them
// fails, then flushes statistics and releases resources.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.host.Run(groupCtx) })
	group.Go(func() error { return s.grpc.Serve(groupCtx) })
	if s.watcher != nil {
		group.Go(func() error { return s.watcher.Run(groupCtx) })
	}
	if s.metricsServer != nil {
		group.Go(func() error {
			s.logger.Printf("metrics listening at %v", s.metricsListener.Addr())
			if err := s.metricsServer.Serve(s.metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			return s.metricsServer.Shutdown(shutdownCtx)
		})
	}
	s.grpc.SetServing(hostservice.ServiceName)

	return group.Wait()
}

// Close flushes pending statistics and releases resources. It is safe to
// call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.grpc != nil {
		s.grpc.Close()
	}
	if s.metricsServer != nil {
		_ = s.metricsServer.Close()
	}
	if s.metricsListener != nil {
		_ = s.metricsListener.Close()
	}
	if s.saver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		if err := s.saver.Close(ctx); err != nil {
			s.logger.Printf("flush statistics: %v", err)
		}
		cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Printf("close statistics store: %v", err)
		}
		s.store = nil
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Printf("close event publisher: %v", err)
		}
		s.publisher = nil
	}
}
