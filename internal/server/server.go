// Package server assembles the stores, coordinators and transports into a
// runnable HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/voicechat/internal/adapters/http"
	"github.com/dkeye/voicechat/internal/adapters/signal"
	"github.com/dkeye/voicechat/internal/app"
	"github.com/dkeye/voicechat/internal/app/orch"
	"github.com/dkeye/voicechat/internal/config"
	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/metrics"
	"github.com/dkeye/voicechat/internal/preview"
	"github.com/dkeye/voicechat/internal/storage/blob"
	"github.com/dkeye/voicechat/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Orch     *orch.Orchestrator
	Registry *prometheus.Registry

	store *sqlite.Store
	blobs *blob.Store
	srv   *http.Server
}

// OpenStores opens the relational store and the blob store, creating their
// directories when needed.
func OpenStores(ctx context.Context, cfg *config.Config) (*sqlite.Store, *blob.Store, error) {
	for _, p := range []string{cfg.Database.Path, cfg.Blobs.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	blobs, err := blob.Open(cfg.Blobs.Path)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, blobs, nil
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, blobs, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bus := core.NewBus()
	m := metrics.New(reg)
	m.Subscribe(bus)

	registry := core.NewConnectionRegistry()
	sessions := app.NewSessions()
	channels := app.NewChannelDirectory(store, store, core.NewRoomMembership())
	o := &orch.Orchestrator{
		Sessions: sessions,
		Presence: &app.PresenceCoordinator{
			Registry: registry,
			Groups:   core.NewGroupManager(),
			Channels: channels,
			Sessions: sessions,
		},
		Channels:      channels,
		History:       app.NewHistoryPager(store),
		Calls:         app.NewCallCoordinator(store, registry, cfg.Calls.RingTimeout),
		Embeds:        app.NewEmbedPipeline(blobs, preview.NewResizer(blobs), cfg.Preview.MaxWidth, cfg.Preview.MaxHeight),
		Users:         app.NewUserDirectory(store),
		Messages:      store,
		Files:         store,
		Blobs:         blobs,
		Policy:        app.LenientPolicy{},
		Bus:           bus,
		MaxMessageLen: cfg.Chat.MaxMessageLen,
		MaxUpload:     cfg.Upload.MaxSize,
	}
	o.Calls.Deliver = o.DeliverTimeouts
	m.TrackActiveCalls(o.Calls.ActiveCalls)

	ctrl := signal.NewSignalWSController(o,
		signal.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval),
		cfg.ReadLimit, cfg.PingPeriod)

	return &Server{
		Orch:     o,
		Registry: reg,
		store:    store,
		blobs:    blobs,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router.SetupRouter(ctx, cfg, o, ctrl, reg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is canceled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "server").Str("addr", s.srv.Addr).Msg("voicechat server started")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "server").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) Close() error {
	return errors.Join(s.blobs.Close(), s.store.Close())
}
