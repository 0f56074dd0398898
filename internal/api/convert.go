package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/auth"
	"github.com/ctxthelp/ctxt-api/internal/convert"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
	"github.com/ctxthelp/ctxt-api/internal/policy/ratelimit"
)

type convertRequest struct {
	URL      string `json:"url"`
	Save     *bool  `json:"save"`
	IsPublic bool   `json:"is_public"`
	// Content carries pre-extracted markdown on the create endpoint.
	Content string `json:"content"`
}

// convertURL runs the full pipeline for a URL: quota check, extraction,
// metadata, persistence.
func (s *Server) convertURL(w http.ResponseWriter, r *http.Request) {
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
		Save:     req.Save == nil || *req.Save,
		IsPublic: req.IsPublic,
	}
	if account != nil {
		pipelineReq.AccountID = &account.ID
	}

	start := time.Now()
	conv, err := s.deps.Pipeline.Convert(r.Context(), pipelineReq)
	if err != nil {
		metrics.ObserveConversion(string(decision.Tier), "error", time.Since(start))
		s.writeError(w, err)
		return
	}
	metrics.ObserveConversion(string(decision.Tier), "success", time.Since(start))

	status := http.StatusOK
	if pipelineReq.Save {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, conv)
}

// gateConversion enforces the tier quota and, for anonymous callers, the
// per-IP bucket. It writes the rate limit headers on every outcome.
func (s *Server) gateConversion(w http.ResponseWriter, r *http.Request) (*core.Account, ratelimit.Decision, bool) {
	account := auth.AccountFrom(r.Context())

	decision, err := s.deps.Limiter.Check(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return nil, decision, false
	}
	for k, v := range ratelimit.Headers(decision) {
		w.Header().Set(k, v)
	}

	if !decision.Allowed {
		metrics.ObserveRateLimitDenied(string(decision.Tier))
		s.writeError(w, decision.Err())
		return nil, decision, false
	}

	if account == nil {
		ip := clientIP(r)
		if !s.deps.Anonymous.Allow(ip) {
			// The store cannot attribute anonymous usage, so the headers
			// written above still show the full quota; correct them to
			// match the denial.
			w.Header().Set("X-RateLimit-Remaining", "0")
			metrics.ObserveRateLimitDenied(string(core.TierFree))
			s.logger.Warn("anonymous rate limit exceeded", zap.String("ip", ip))
			s.writeError(w, &core.RateLimitError{
				Tier:       core.TierFree,
				DailyLimit: s.deps.Policy.DailyLimit(core.TierFree),
				ResetAt:    decision.ResetAt,
			})
			return nil, decision, false
		}
	}
	return account, decision, true
}
