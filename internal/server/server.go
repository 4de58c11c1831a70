package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alde/epaper-relay/pkg/config"
	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/relay"
)

// Kavita is the part of the Kavita client the HTTP layer proxies.
type Kavita interface {
	Connected() bool
	BaseURL() string
	Libraries(ctx context.Context) ([]kavita.Library, error)
	Series(ctx context.Context, libraryID int) ([]kavita.Series, error)
	Chapters(ctx context.Context, seriesID int) ([]kavita.Chapter, error)
	ChapterInfo(ctx context.Context, chapterID int) (kavita.ChapterInfo, error)
	Progress(ctx context.Context, chapterID int) (kavita.Progress, error)
	SaveProgress(ctx context.Context, p kavita.Progress) error
	MarkRead(ctx context.Context, chapterID int) error
}

// Server exposes the relay over HTTP.
type Server struct {
	settings config.Settings
	version  string
	kavita   Kavita
	pipeline *relay.Pipeline
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New wires the routes. A nil logger discards request logs.
func New(settings config.Settings, version string, k Kavita, p *relay.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		settings: settings,
		version:  version,
		kavita:   k,
		pipeline: p,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /libraries", s.handleLibraries)
	s.mux.HandleFunc("GET /series/{library_id}", s.handleSeries)
	s.mux.HandleFunc("GET /chapters/{series_id}", s.handleChapters)

	s.mux.HandleFunc("GET /chapter/info/{chapter_id}", s.handleChapterInfo)
	s.mux.HandleFunc("GET /chapter/text/{chapter_id}", s.handleChapterText)
	s.mux.HandleFunc("GET /chapter/image/{chapter_id}", s.handleChapterImage)

	s.mux.HandleFunc("GET /progress/{chapter_id}", s.handleGetProgress)
	s.mux.HandleFunc("POST /progress/{chapter_id}", s.handleSaveProgress)
	s.mux.HandleFunc("POST /mark-read/{chapter_id}", s.handleMarkRead)
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.logger, s.mux)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Image chapters wait on Kavita for every page.
		WriteTimeout: s.settings.KavitaTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", srv.Addr,
			"display", fmt.Sprintf("%dx%d", s.settings.DisplayWidth, s.settings.DisplayHeight))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}
