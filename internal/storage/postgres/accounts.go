package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

const accountColumns = `id, email, tier, is_active, usage_count, subscription_ends_at,
	billing_customer_id, billing_subscription_id, created_at, updated_at`

// AccountStore reads and mutates account rows.
type AccountStore struct {
	pool pool
}

// NewAccountStore constructs a store from an existing pool.
func NewAccountStore(pool pool) (*AccountStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &AccountStore{pool: pool}, nil
}

// GetByID fetches one account.
func (s *AccountStore) GetByID(ctx context.Context, id string) (core.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return s.scanOne(ctx, query, id)
}

// GetByCustomerID resolves an account from its billing customer reference.
func (s *AccountStore) GetByCustomerID(ctx context.Context, customerID string) (core.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE billing_customer_id = $1`, accountColumns)
	return s.scanOne(ctx, query, customerID)
}

// GetBySubscriptionID resolves an account from its subscription reference.
func (s *AccountStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (core.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE billing_subscription_id = $1`, accountColumns)
	return s.scanOne(ctx, query, subscriptionID)
}

// ApplyBilling updates only the fields the webhook supplied. COALESCE keeps
// the write idempotent under redelivery.
func (s *AccountStore) ApplyBilling(ctx context.Context, accountID string, update core.BillingUpdate) error {
	query := `
UPDATE accounts SET
	tier = COALESCE($2, tier),
	billing_customer_id = COALESCE($3, billing_customer_id),
	billing_subscription_id = COALESCE($4, billing_subscription_id),
	subscription_ends_at = COALESCE($5, subscription_ends_at),
	updated_at = now()
WHERE id = $1`

	var tier *string
	if update.Tier != nil {
		t := string(*update.Tier)
		tier = &t
	}

	tag, err := s.pool.Exec(ctx, query, accountID, tier, update.CustomerID, update.SubscriptionID, update.SubscriptionEndsAt)
	if err != nil {
		return fmt.Errorf("apply billing update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "account", ID: accountID}
	}
	return nil
}

// IncrementUsage bumps the lifetime counter in a single statement so
// concurrent conversions never lose increments.
func (s *AccountStore) IncrementUsage(ctx context.Context, id string) error {
	query := `UPDATE accounts SET usage_count = usage_count + 1, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "account", ID: id}
	}
	return nil
}

func (s *AccountStore) scanOne(ctx context.Context, query string, arg any) (core.Account, error) {
	var a core.Account
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.Tier,
		&a.IsActive,
		&a.UsageCount,
		&a.SubscriptionEndsAt,
		&a.BillingCustomerID,
		&a.BillingSubscriptionID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: fmt.Sprint(arg)}
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}
