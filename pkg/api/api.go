// Package api wires the store, auth, media and site into the HTTP server
// and serves the admin JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/imagegen"
	"github.com/healthassoc/bayan/pkg/media"
	"github.com/healthassoc/bayan/pkg/realtime"
	"github.com/healthassoc/bayan/pkg/site"
)

const (
	shutdownTimeout        = 10 * time.Second
	sessionCleanupInterval = 15 * time.Minute
	feedBuffer             = 32
)

// Server exposes the HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	feed       *realtime.Feed
	auth       *auth.Service
	objects    media.ObjectStore
	uploader   *media.Uploader
	images     *imagegen.Client
	site       *site.Site
	metrics    *metrics
	limiters   []*rateLimiterMap
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a new server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start initializes every component and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if err := s.setup(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.startSessionSweeper(ctx)

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("Server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// setup builds the store and every service that depends on it.
func (s *server) setup(ctx context.Context) error {
	s.feed = realtime.NewFeed(s.log, feedBuffer)
	s.metrics = newMetrics(s.feed)

	s.store = store.NewStore(s.log, &s.cfg.Database, s.feed)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	if err := s.store.SeedUsers(ctx, s.cfg.Auth.Users); err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}

	authSvc, err := auth.NewService(s.log, s.store, &s.cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	s.auth = authSvc
	s.metrics.watchAuth(authSvc)

	objects, err := media.NewObjectStore(s.log, &s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}

	s.objects = objects

	maxSize, err := s.cfg.Storage.MaxUploadBytes()
	if err != nil {
		return err
	}

	s.uploader = media.NewUploader(s.log, objects, s.store.Media(), maxSize)

	images, err := imagegen.New(s.log, &s.cfg.ImageGen, s.uploader)
	if err != nil {
		return fmt.Errorf("creating image generator: %w", err)
	}

	s.images = images

	if images.Enabled() {
		s.log.Info("Image generation enabled")
	}

	var opts []site.Option
	if s.cfg.Server.RateLimit.Enabled {
		opts = append(opts, site.WithFormLimiter(s.rateLimitMiddleware(s.cfg.Server.RateLimit.Auth)))
	}

	st, err := site.New(s.log, s.store, s.auth, s.cfg, opts...)
	if err != nil {
		return fmt.Errorf("creating site: %w", err)
	}

	s.site = st

	return nil
}

func (s *server) startSessionSweeper(ctx context.Context) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.auth.SweepExpired(ctx); err != nil {
					s.log.WithError(err).
						Warn("Failed to clean expired sessions")
				}
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	for _, rl := range s.limiters {
		rl.stop()
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("Server stopped")

	return nil
}
