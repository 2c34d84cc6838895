package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/taggerapi/config"
	"github.com/krau/taggerapi/interrogator"
	"github.com/krau/taggerapi/service"
)

type Server struct {
	registry *interrogator.ModelRegistry
	http     *http.Server
	logger   *slog.Logger
}

// Init wires the registry, tagger and router described by cfg. lock is the
// process-wide inference lock.
func Init(cfg *config.Config, lock sync.Locker, logger *slog.Logger) (*Server, error) {
	creds, err := config.ParseCredentials(cfg.APIAuth)
	if err != nil {
		return nil, err
	}

	registry := interrogator.NewRegistry(interrogator.DiscoverDir(cfg.ModelDir, interrogator.PostprocessOptions{
		ReplaceUnderscore: cfg.ReplaceUnderscore,
		EscapeTags:        cfg.EscapeTags,
		ExcludeTags:       cfg.ExcludeTags,
	}))
	if err := registry.EnsureLoaded(); err != nil {
		return nil, fmt.Errorf("failed to load interrogators: %w", err)
	}
	if registry.Len() == 0 {
		logger.Warn("No interrogators found", slog.String("model_dir", cfg.ModelDir))
	}

	tagger := service.NewTagger(registry, lock, logger, service.Options{
		Threshold:         cfg.Threshold,
		BatchThreshold:    cfg.BatchThreshold,
		SkipInvalidImages: cfg.SkipInvalidImages,
	})

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(NewHandler(tagger, logger), cfg.Prefix, creds)
	if creds.Enabled() {
		logger.Info("API authentication enabled", slog.Int("users", len(creds)))
	}

	return &Server{
		registry: registry,
		http:     &http.Server{Addr: cfg.Addr(), Handler: router},
		logger:   logger,
	}, nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on", slog.String("address", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) Close() error {
	return s.registry.Close()
}
