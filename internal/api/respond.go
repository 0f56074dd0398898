package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

type errorBody struct {
	Error        string     `json:"error"`
	Field        string     `json:"field,omitempty"`
	Tier         string     `json:"tier,omitempty"`
	DailyLimit   *int       `json:"daily_limit,omitempty"`
	CurrentUsage *int       `json:"current_usage,omitempty"`
	ResetAt      *time.Time `json:"reset_at,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses. Unrecognized errors
// surface as 500; their message is withheld in production.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validation *core.ValidationError
		authn      *core.AuthenticationError
		rateLimit  *core.RateLimitError
		conversion *core.ConversionError
		notFound   *core.NotFoundError
		external   *core.ExternalServiceError
	)

	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: validation.Detail,
			Field: validation.Field,
		})
	case errors.As(err, &authn):
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: authn.Error()})
	case errors.As(err, &rateLimit):
		usage := rateLimit.CurrentUsage
		s.writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:        rateLimit.Error(),
			Tier:         string(rateLimit.Tier),
			DailyLimit:   rateLimit.DailyLimit,
			CurrentUsage: &usage,
			ResetAt:      rateLimit.ResetAt,
		})
	case errors.As(err, &conversion):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: conversion.Error()})
	case errors.As(err, &notFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &external):
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: external.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		detail := "internal server error"
		if !s.cfg.Site.Production {
			detail = err.Error()
		}
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: detail})
	}
}
