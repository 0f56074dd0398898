package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/billing"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
)

// maxWebhookBody bounds webhook payloads; deliveries are small JSON
// envelopes.
const maxWebhookBody = 1 << 20

// billingWebhook verifies and applies one billing delivery. The signature
// covers the raw body, so it is read before any decoding.
func (s *Server) billingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "unreadable body"})
		return
	}

	eventType := peekEventType(body)
	signature := r.Header.Get(billing.SignatureHeader)
	if err := s.deps.Billing.Process(r.Context(), body, signature); err != nil {
		metrics.ObserveBillingEvent(eventType, "error")
		s.logger.Warn("billing webhook rejected", zap.String("type", eventType), zap.Error(err))
		s.writeError(w, err)
		return
	}
	metrics.ObserveBillingEvent(eventType, "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func peekEventType(body []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Type == "" {
		return "unknown"
	}
	return envelope.Type
}
