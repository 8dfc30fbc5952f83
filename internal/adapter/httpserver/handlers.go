package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/therealityreport/socializer/internal/config"
	"github.com/therealityreport/socializer/internal/domain"
)

// Server aggregates the dependencies the thin HTTP surface needs: enqueueing
// ingest_thread for bootstrap, and probing readiness of the database.
type Server struct {
	Cfg     config.Config
	Queue   domain.Queue
	Threads domain.ThreadRepository
	DBCheck func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// HealthzHandler reports process liveness unconditionally.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// ReadyzHandler reports readiness by probing the database connection.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 1)
		ok := true
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}

// ingestThreadRequest bootstraps tracking for a Reddit submission that the
// scheduled poll loop has not yet discovered on its own.
type ingestThreadRequest struct {
	RedditID  string `json:"reddit_id" validate:"required"`
	Subreddit string `json:"subreddit" validate:"required"`
}

// IngestThreadHandler enqueues an ingest_thread task for a submission id the
// operator names directly, ahead of the scheduled subreddit poll discovering it.
func (s *Server) IngestThreadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		var req ingestThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument))
			return
		}
		if err := getValidator().Struct(req); err != nil {
			fields := make([]string, 0)
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					fields = append(fields, strings.ToLower(fe.Field()))
				}
			}
			writeError(w, fmt.Errorf("%w: missing fields %v", domain.ErrInvalidArgument, fields))
			return
		}
		taskID, err := s.Queue.EnqueueIngestThread(r.Context(), req.RedditID, req.Subreddit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "reddit_id": req.RedditID})
	}
}

// ThreadStatusHandler reports the tracked state for a single Reddit submission.
func (s *Server) ThreadStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redditID := chi.URLParam(r, "redditID")
		if redditID == "" {
			writeError(w, fmt.Errorf("%w: reddit id required", domain.ErrInvalidArgument))
			return
		}
		thread, err := s.Threads.GetByRedditID(r.Context(), redditID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, thread)
	}
}
