package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/auth"
	"github.com/ctxthelp/ctxt-api/internal/convert"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
)

// createConversion stores markdown the client already extracted, counting
// against the same quota as server-side conversion.
func (s *Server) createConversion(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "invalid JSON"})
		return
	}

	account, decision, ok := s.gateConversion(w, r)
	if !ok {
		return
	}

	pipelineReq := convert.Request{
		URL:      req.URL,
		Save:     true,
		IsPublic: req.IsPublic,
	}
	if account != nil {
		pipelineReq.AccountID = &account.ID
	}

	start := time.Now()
	conv, err := s.deps.Pipeline.CreateFromClient(r.Context(), pipelineReq, req.Content)
	if err != nil {
		metrics.ObserveConversion(string(decision.Tier), "error", time.Since(start))
		s.writeError(w, err)
		return
	}
	metrics.ObserveConversion(string(decision.Tier), "success", time.Since(start))
	s.writeJSON(w, http.StatusCreated, conv)
}

type conversionList struct {
	Conversions []core.Conversion `json:"conversions"`
	Total       int               `json:"total"`
	Limit       int               `json:"limit"`
	Offset      int               `json:"offset"`
}

func (s *Server) listConversions(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())

	search := r.URL.Query().Get("search")
	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 1<<30)

	items, total, err := s.deps.Conversions.ListByAccount(r.Context(), account.ID, search, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []core.Conversion{}
	}
	s.writeJSON(w, http.StatusOK, conversionList{
		Conversions: items,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

// getConversion fetches a conversion by id. Unowned and public conversions
// are readable by anyone; private ones only by their owner.
func (s *Server) getConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.deps.Conversions.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !conversionReadable(conv, auth.AccountFrom(r.Context())) {
		s.writeError(w, &core.NotFoundError{Resource: "conversion", ID: id})
		return
	}

	if err := s.deps.Conversions.IncrementViews(r.Context(), id); err != nil {
		s.logger.Warn("view count update failed", zap.String("id", id), zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, conv)
}

type saveRequest struct {
	MakePublic bool     `json:"make_public"`
	Topics     []string `json:"topics"`
}

// saveConversion claims a conversion into the caller's library.
func (s *Server) saveConversion(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())
	id := chi.URLParam(r, "id")

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "invalid JSON"})
		return
	}

	if err := s.deps.Conversions.Claim(r.Context(), id, account.ID, req.MakePublic, req.Topics); err != nil {
		s.writeError(w, err)
		return
	}
	conv, err := s.deps.Conversions.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) deleteConversion(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.deps.Conversions.Delete(r.Context(), id, account.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func conversionReadable(c core.Conversion, account *core.Account) bool {
	if c.IsPublic || c.AccountID == nil {
		return true
	}
	return account != nil && *c.AccountID == account.ID
}

func queryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
