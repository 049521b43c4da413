package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/service/memory"
)

// recordDailyInput handles PUT /users/{userID}/logs/{date}. The body
// is the raw heterogeneous input map; normalization happens in the
// service.
func (s *Server) recordDailyInput(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date, err := time.Parse(core.DateKey, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := s.dailyLog.RecordDailyInput(r.Context(), userID, date, raw)
	if err != nil {
		// A non-nil entry means the write succeeded and only indexing
		// failed; the caller still gets the stored entry.
		if entry != nil {
			writeJSON(w, http.StatusOK, entry)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// getLogsForRange handles GET /users/{userID}/logs?start=...&end=...
func (s *Server) getLogsForRange(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	start, err := time.Parse(core.DateKey, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(core.DateKey, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	entries, err := s.dailyLog.GetLogsForRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) getOrCreateProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.GetOrCreateProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) updateProfilePatterns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Patterns []core.Pattern `json:"patterns"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	profile, err := s.profiles.UpdateProfilePatterns(r.Context(), chi.URLParam(r, "userID"), req.Patterns)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) updatePersona(w http.ResponseWriter, r *http.Request) {
	var persona core.Persona
	if err := decodeJSON(r, &persona); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	profile, err := s.profiles.UpdatePersona(r.Context(), chi.URLParam(r, "userID"), persona)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := s.memories.GetMemory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) clearMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.memories.ClearMemory(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.memories.GetMemoryStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) processConversationEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThreadID       string         `json:"threadId"`
		Messages       []core.Message `json:"messages"`
		SkipExtraction bool           `json:"skipExtraction"`
		ForceSync      bool           `json:"forceSync"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.memories.ProcessConversationEnd(r.Context(), req.Messages, memory.ProcessOptions{
		ThreadID:       req.ThreadID,
		UserID:         chi.URLParam(r, "userID"),
		SkipExtraction: req.SkipExtraction,
		ForceSync:      req.ForceSync,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		// Gated or skipped: nothing was extracted
		writeJSON(w, http.StatusOK, map[string]any{"processed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed":  true,
		"factsAdded": result.FactsAdded,
		"summary":    result.Summary,
	})
}

func (s *Server) addFact(w http.ResponseWriter, r *http.Request) {
	var fact core.CriticalFact
	if err := decodeJSON(r, &fact); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	stored, err := s.memories.AddFact(r.Context(), chi.URLParam(r, "userID"), fact)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) getFactsByCategory(w http.ResponseWriter, r *http.Request) {
	category := core.FactCategory(r.URL.Query().Get("category"))
	if !core.IsValidCategory(category) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	facts, err := s.memories.GetFactsByCategory(r.Context(), chi.URLParam(r, "userID"), category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts, "count": len(facts)})
}

func (s *Server) updateFact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value           *string               `json:"value"`
		Context         *string               `json:"context"`
		Confidence      *float64              `json:"confidence"`
		StorageLocation *core.StorageLocation `json:"storageLocation"`
		ProofRef        *string               `json:"proofRef"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	fact, err := s.memories.UpdateFact(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "factID"), memory.FactUpdate{
		Value:           req.Value,
		Context:         req.Context,
		Confidence:      req.Confidence,
		StorageLocation: req.StorageLocation,
		ProofRef:        req.ProofRef,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fact)
}

func (s *Server) deactivateFact(w http.ResponseWriter, r *http.Request) {
	err := s.memories.DeactivateFact(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "factID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchRecords handles GET /users/{userID}/search?q=...&mode=deep&limit=20
func (s *Server) searchRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	opts := core.SearchOptions{Mode: core.SearchStandard}
	if r.URL.Query().Get("mode") == string(core.SearchDeep) {
		opts.Mode = core.SearchDeep
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	results, err := s.search.Search(r.Context(), chi.URLParam(r, "userID"), query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func statusFor(err error) int {
	if errors.Is(err, core.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
