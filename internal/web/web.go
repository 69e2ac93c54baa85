package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/deckscope/internal/budget"
	"github.com/local/deckscope/internal/orchestrator"
	"github.com/local/deckscope/internal/storage"
)

// Server exposes the analysis pipeline over JSON HTTP.
type Server struct {
	orch   *orchestrator.Orchestrator
	ledger *budget.Ledger
}

// New creates the HTTP surface.
func New(orch *orchestrator.Orchestrator, ledger *budget.Ledger) *Server {
	return &Server{orch: orch, ledger: ledger}
}

// RegisterRoutes attaches the handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/budget", s.handleBudget)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

type analyzeRequest struct {
	Document string `json:"document"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Document == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty \"document\" field")
		return
	}

	path, cleanup, err := storage.Fetch(r.Context(), req.Document)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	defer cleanup()

	result, err := s.orch.Process(r.Context(), path)
	if err != nil {
		log.Error().Err(err).Str("document", req.Document).Msg("pipeline failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Report the caller's ref, not the temp path.
	result.Document = req.Document

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	daily, weekly, monthly := s.ledger.Status()
	writeJSON(w, http.StatusOK, map[string]budget.WindowStatus{
		"daily":   daily,
		"weekly":  weekly,
		"monthly": monthly,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
