package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

func accountRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "tier", "is_active", "usage_count", "subscription_ends_at",
		"billing_customer_id", "billing_subscription_id", "created_at", "updated_at",
	})
}

func TestAccountGetByID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAccountStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs("acct-1").
		WillReturnRows(accountRows().AddRow(
			"acct-1", "dev@example.com", core.TierPower, true, 12, (*time.Time)(nil),
			"cus-9", "sub-1", now, now,
		))

	acct, err := store.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, core.TierPower, acct.Tier)
	assert.Equal(t, 12, acct.UsageCount)
	assert.Equal(t, "cus-9", acct.BillingCustomerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountGetByIDNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAccountStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetByID(context.Background(), "missing")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountApplyBilling(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAccountStore(mock)
	require.NoError(t, err)

	tier := core.TierPro
	customer := "cus-9"
	mock.ExpectExec("UPDATE accounts SET").
		WithArgs("acct-1", pgxmock.AnyArg(), &customer, (*string)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.ApplyBilling(context.Background(), "acct-1", core.BillingUpdate{
		Tier:       &tier,
		CustomerID: &customer,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountApplyBillingUnknownAccount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAccountStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE accounts SET").
		WithArgs("missing", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.ApplyBilling(context.Background(), "missing", core.BillingUpdate{})
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountIncrementUsage(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAccountStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE accounts SET usage_count = usage_count \\+ 1").
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.IncrementUsage(context.Background(), "acct-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
