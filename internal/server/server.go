// Package server exposes the worker's HTTP entrypoint: POST / accepts
// indexing and pr_review jobs authenticated by a pre-shared secret, and
// GET /health reports liveness.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/indexing"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/review"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// secretHeader is the request header carrying the pre-shared secret. The
// job body's "secret" field is accepted as an alternative.
const secretHeader = "X-Service-Key"

// Server handles job submissions.
type Server struct {
	secret   string
	indexer  *indexing.Orchestrator
	reviewer *review.Orchestrator
}

// New creates a Server.
func New(secret string, indexer *indexing.Orchestrator, reviewer *review.Orchestrator) *Server {
	return &Server{secret: secret, indexer: indexer, reviewer: reviewer}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/", s.handleJob)
	r.Get("/health", s.handleHealth)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJob authenticates, decodes, and dispatches a job, then reports its
// terminal status.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	var job types.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "Failed", "error": "malformed request body",
		})
		return
	}

	if !s.authorized(r, job.Secret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"status": "Failed", "error": "unauthorized",
		})
		return
	}

	if err := job.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "Failed", "error": err.Error(),
		})
		return
	}

	logging.Server("job received: type=%s repo=%s", job.JobType, job.RepoID)

	switch job.JobType {
	case types.JobIndexing:
		result, err := s.indexer.Process(r.Context(), job)
		if err != nil {
			logging.Get(logging.CategoryServer).Error("indexing job failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "Failed", "error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "Success",
			"filesProcessed": result.FilesProcessed,
			"filesDeleted":   result.FilesDeleted,
			"commitSha":      result.CommitSHA,
		})

	case types.JobPRReview:
		result, err := s.reviewer.Process(r.Context(), job)
		if err != nil {
			logging.Get(logging.CategoryServer).Error("review job failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "Failed", "error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "Success",
			"commentsPosted": result.CommentsPosted,
			"filesReviewed":  result.FilesReviewed,
			"commitSha":      result.CommitSHA,
		})
	}
}

// authorized compares the header or body secret against the configured one
// in constant time.
func (s *Server) authorized(r *http.Request, bodySecret string) bool {
	candidate := r.Header.Get(secretHeader)
	if candidate == "" {
		candidate = bodySecret
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Get(logging.CategoryServer).Warn("write response: %v", err)
	}
}
