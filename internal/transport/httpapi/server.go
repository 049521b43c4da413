// Package httpapi exposes the memory and health services over a local
// HTTP surface. The listener binds loopback by default; this is a
// per-user companion process, not a multi-tenant service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/service/health"
	"github.com/sandevgo/vitalmem/internal/service/memory"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type Server struct {
	srv      *http.Server
	memories *memory.Service
	dailyLog *health.DailyLogService
	profiles *health.ProfileStore
	search   core.SearchIndex
}

func NewServer(
	ctx context.Context,
	cfg *config.AppConfig,
	memories *memory.Service,
	dailyLog *health.DailyLogService,
	profiles *health.ProfileStore,
	search core.SearchIndex,
) *Server {
	s := &Server{
		memories: memories,
		dailyLog: dailyLog,
		profiles: profiles,
		search:   search,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(ctx))
	r.Use(recovery(ctx))

	r.Get("/health", s.healthz)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Route("/logs", func(r chi.Router) {
			r.Put("/{date}", s.recordDailyInput)
			r.Get("/", s.getLogsForRange)
		})

		r.Get("/profile", s.getOrCreateProfile)
		r.Put("/profile/patterns", s.updateProfilePatterns)
		r.Put("/profile/persona", s.updatePersona)

		r.Route("/memory", func(r chi.Router) {
			r.Get("/", s.getMemory)
			r.Delete("/", s.clearMemory)
			r.Get("/stats", s.getMemoryStats)
			r.Post("/conversation-end", s.processConversationEnd)

			r.Route("/facts", func(r chi.Router) {
				r.Post("/", s.addFact)
				r.Get("/", s.getFactsByCategory)
				r.Patch("/{factID}", s.updateFact)
				r.Delete("/{factID}", s.deactivateFact)
			})
		})

		r.Get("/search", s.searchRecords)
	})

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("starting http api")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": core.AppVersion,
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.FromCtx(base).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

func recovery(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.FromCtx(base).Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("handler panicked")
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
