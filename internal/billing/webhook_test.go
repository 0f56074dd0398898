package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

const testSecret = "whsec_test"

type billingAccounts struct {
	byID             map[string]*core.Account
	byCustomerID     map[string]string
	bySubscriptionID map[string]string
	applied          []core.BillingUpdate
}

func newBillingAccounts(accounts ...core.Account) *billingAccounts {
	s := &billingAccounts{
		byID:             map[string]*core.Account{},
		byCustomerID:     map[string]string{},
		bySubscriptionID: map[string]string{},
	}
	for i := range accounts {
		a := accounts[i]
		s.byID[a.ID] = &a
		if a.BillingCustomerID != "" {
			s.byCustomerID[a.BillingCustomerID] = a.ID
		}
		if a.BillingSubscriptionID != "" {
			s.bySubscriptionID[a.BillingSubscriptionID] = a.ID
		}
	}
	return s
}

func (s *billingAccounts) GetByID(_ context.Context, id string) (core.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: id}
	}
	return *a, nil
}

func (s *billingAccounts) GetByCustomerID(_ context.Context, customerID string) (core.Account, error) {
	id, ok := s.byCustomerID[customerID]
	if !ok {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: customerID}
	}
	return *s.byID[id], nil
}

func (s *billingAccounts) GetBySubscriptionID(_ context.Context, subscriptionID string) (core.Account, error) {
	id, ok := s.bySubscriptionID[subscriptionID]
	if !ok {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: subscriptionID}
	}
	return *s.byID[id], nil
}

func (s *billingAccounts) ApplyBilling(_ context.Context, accountID string, update core.BillingUpdate) error {
	a, ok := s.byID[accountID]
	if !ok {
		return &core.NotFoundError{Resource: "account", ID: accountID}
	}
	if update.Tier != nil {
		a.Tier = *update.Tier
	}
	if update.CustomerID != nil {
		a.BillingCustomerID = *update.CustomerID
		s.byCustomerID[*update.CustomerID] = accountID
	}
	if update.SubscriptionID != nil {
		a.BillingSubscriptionID = *update.SubscriptionID
		s.bySubscriptionID[*update.SubscriptionID] = accountID
	}
	if update.SubscriptionEndsAt != nil {
		a.SubscriptionEndsAt = update.SubscriptionEndsAt
	}
	s.applied = append(s.applied, update)
	return nil
}

func (s *billingAccounts) IncrementUsage(_ context.Context, _ string) error { return nil }

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestProcessRejectsBadSignature(t *testing.T) {
	p := NewProcessor(newBillingAccounts(), testSecret, zap.NewNop())
	body := []byte(`{"type":"checkout.completed","data":{}}`)

	err := p.Process(context.Background(), body, "deadbeef")
	var aerr *core.AuthenticationError
	require.ErrorAs(t, err, &aerr)

	err = p.Process(context.Background(), body, "")
	require.ErrorAs(t, err, &aerr)
}

func TestProcessCheckoutCompleted(t *testing.T) {
	store := newBillingAccounts(core.Account{ID: "acct-1", Tier: core.TierFree})
	p := NewProcessor(store, testSecret, zap.NewNop())

	body := []byte(`{
		"type": "checkout.completed",
		"data": {
			"id": "chk-1",
			"customer_id": "cus-9",
			"metadata": {"user_id": "acct-1", "tier": "power"}
		}
	}`)

	require.NoError(t, p.Process(context.Background(), body, sign(body)))
	acct, _ := store.GetByID(context.Background(), "acct-1")
	assert.Equal(t, core.TierPower, acct.Tier)
	assert.Equal(t, "cus-9", acct.BillingCustomerID)

	t.Run("replay converges", func(t *testing.T) {
		require.NoError(t, p.Process(context.Background(), body, sign(body)))
		again, _ := store.GetByID(context.Background(), "acct-1")
		assert.Equal(t, acct.Tier, again.Tier)
		assert.Equal(t, acct.BillingCustomerID, again.BillingCustomerID)
	})

	t.Run("missing metadata is acknowledged", func(t *testing.T) {
		body := []byte(`{"type":"checkout.completed","data":{"id":"chk-2","metadata":{}}}`)
		assert.NoError(t, p.Process(context.Background(), body, sign(body)))
	})
}

func TestProcessSubscriptionLifecycle(t *testing.T) {
	store := newBillingAccounts(core.Account{
		ID:                "acct-1",
		Tier:              core.TierPower,
		BillingCustomerID: "cus-9",
	})
	p := NewProcessor(store, testSecret, zap.NewNop())
	ctx := context.Background()

	created := []byte(`{
		"type": "subscription.created",
		"data": {"id": "sub-1", "customer_id": "cus-9", "current_period_end": "2026-04-01T00:00:00Z"}
	}`)
	require.NoError(t, p.Process(ctx, created, sign(created)))

	acct, _ := store.GetByID(ctx, "acct-1")
	assert.Equal(t, "sub-1", acct.BillingSubscriptionID)
	require.NotNil(t, acct.SubscriptionEndsAt)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), acct.SubscriptionEndsAt.UTC())

	updated := []byte(`{
		"type": "subscription.updated",
		"data": {"id": "sub-1", "current_period_end": "2026-05-01T00:00:00Z"}
	}`)
	require.NoError(t, p.Process(ctx, updated, sign(updated)))
	acct, _ = store.GetByID(ctx, "acct-1")
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), acct.SubscriptionEndsAt.UTC())

	cancelled := []byte(`{
		"type": "subscription.cancelled",
		"data": {"id": "sub-1", "cancel_at": "2026-05-15T00:00:00Z"}
	}`)
	require.NoError(t, p.Process(ctx, cancelled, sign(cancelled)))
	acct, _ = store.GetByID(ctx, "acct-1")
	assert.Equal(t, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC), acct.SubscriptionEndsAt.UTC())
	// The tier is not dropped immediately; access runs to period end.
	assert.Equal(t, core.TierPower, acct.Tier)
}

func TestProcessUnknownEntitiesAcknowledged(t *testing.T) {
	p := NewProcessor(newBillingAccounts(), testSecret, zap.NewNop())
	ctx := context.Background()

	for _, body := range [][]byte{
		[]byte(`{"type":"subscription.created","data":{"id":"sub-x","customer_id":"cus-x"}}`),
		[]byte(`{"type":"subscription.updated","data":{"id":"sub-x"}}`),
		[]byte(`{"type":"invoice.paid","data":{"id":"inv-1"}}`),
	} {
		assert.NoError(t, p.Process(ctx, body, sign(body)))
	}
}

func TestProcessMalformedPayload(t *testing.T) {
	p := NewProcessor(newBillingAccounts(), testSecret, zap.NewNop())
	ctx := context.Background()

	var verr *core.ValidationError
	body := []byte(`not json`)
	require.ErrorAs(t, p.Process(ctx, body, sign(body)), &verr)

	body = []byte(`{"data":{}}`)
	require.ErrorAs(t, p.Process(ctx, body, sign(body)), &verr)
}
