// Package billing processes payment provider webhook deliveries and maps
// them onto account tier and subscription state.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// SignatureHeader carries the hex HMAC of the raw request body.
const SignatureHeader = "Polar-Webhook-Signature"

// Event is the provider's webhook envelope.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the union of fields used across event types; each handler
// reads only the fields its event carries.
type EventData struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customer_id"`
	CurrentPeriodEnd *time.Time        `json:"current_period_end,omitempty"`
	CancelAt         *time.Time        `json:"cancel_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Processor verifies and applies webhook deliveries. Handlers are
// idempotent: the provider retries deliveries and may reorder them.
type Processor struct {
	accounts core.AccountStore
	secret   []byte
	logger   *zap.Logger
}

// NewProcessor wires a webhook processor.
func NewProcessor(accounts core.AccountStore, secret string, logger *zap.Logger) *Processor {
	return &Processor{accounts: accounts, secret: []byte(secret), logger: logger}
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body in constant
// time.
func (p *Processor) VerifySignature(body []byte, signature string) bool {
	if len(p.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Process verifies and dispatches one delivery. Unknown event types are
// acknowledged so the provider stops retrying them.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) error {
	if !p.VerifySignature(body, signature) {
		p.logger.Warn("webhook signature rejected")
		return &core.AuthenticationError{Detail: "invalid webhook signature"}
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return &core.ValidationError{Field: "body", Detail: "invalid JSON payload"}
	}
	if event.Type == "" {
		return &core.ValidationError{Field: "type", Detail: "missing event type"}
	}

	p.logger.Info("processing billing event", zap.String("type", event.Type), zap.String("event_id", event.Data.ID))

	switch event.Type {
	case "checkout.completed", "order.created":
		return p.handleCheckoutCompleted(ctx, event.Data)
	case "subscription.created":
		return p.handleSubscriptionCreated(ctx, event.Data)
	case "subscription.updated":
		return p.handleSubscriptionUpdated(ctx, event.Data)
	case "subscription.cancelled", "subscription.canceled":
		return p.handleSubscriptionCancelled(ctx, event.Data)
	default:
		p.logger.Warn("unhandled billing event type", zap.String("type", event.Type))
		return nil
	}
}

// handleCheckoutCompleted upgrades the account named in the checkout
// metadata. Deliveries with incomplete metadata are acknowledged; retrying
// them cannot succeed.
func (p *Processor) handleCheckoutCompleted(ctx context.Context, data EventData) error {
	accountID := data.Metadata["user_id"]
	tierName := data.Metadata["tier"]
	if accountID == "" || tierName == "" {
		p.logger.Error("checkout metadata missing user_id or tier", zap.String("checkout_id", data.ID))
		return nil
	}

	tier := core.Tier(tierName)
	update := core.BillingUpdate{Tier: &tier}
	if data.CustomerID != "" {
		update.CustomerID = &data.CustomerID
	}

	if err := p.accounts.ApplyBilling(ctx, accountID, update); err != nil {
		return err
	}
	p.logger.Info("account tier upgraded",
		zap.String("account_id", accountID),
		zap.String("tier", tierName),
	)
	return nil
}

func (p *Processor) handleSubscriptionCreated(ctx context.Context, data EventData) error {
	account, err := p.accounts.GetByCustomerID(ctx, data.CustomerID)
	if err != nil {
		return p.ackUnknownAccount(err, "customer_id", data.CustomerID)
	}

	update := core.BillingUpdate{
		SubscriptionID:     &data.ID,
		SubscriptionEndsAt: data.CurrentPeriodEnd,
	}
	return p.accounts.ApplyBilling(ctx, account.ID, update)
}

func (p *Processor) handleSubscriptionUpdated(ctx context.Context, data EventData) error {
	account, err := p.accounts.GetBySubscriptionID(ctx, data.ID)
	if err != nil {
		return p.ackUnknownAccount(err, "subscription_id", data.ID)
	}

	return p.accounts.ApplyBilling(ctx, account.ID, core.BillingUpdate{
		SubscriptionEndsAt: data.CurrentPeriodEnd,
	})
}

// handleSubscriptionCancelled records the period-end date; access continues
// until then rather than dropping immediately.
func (p *Processor) handleSubscriptionCancelled(ctx context.Context, data EventData) error {
	account, err := p.accounts.GetBySubscriptionID(ctx, data.ID)
	if err != nil {
		return p.ackUnknownAccount(err, "subscription_id", data.ID)
	}

	endsAt := data.CancelAt
	if endsAt == nil {
		endsAt = data.CurrentPeriodEnd
	}
	return p.accounts.ApplyBilling(ctx, account.ID, core.BillingUpdate{
		SubscriptionEndsAt: endsAt,
	})
}

// ackUnknownAccount swallows not-found lookups: the delivery references an
// account this system never saw, so a retry cannot help. Other store errors
// propagate so the provider retries.
func (p *Processor) ackUnknownAccount(err error, key, value string) error {
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		p.logger.Warn("billing event for unknown account", zap.String(key, value))
		return nil
	}
	return err
}
