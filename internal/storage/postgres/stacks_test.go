package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

func TestStackCreateMarshalsBlocks(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStackStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	stack := core.ContextStack{
		ID:        "st-1",
		AccountID: "acct-1",
		Name:      "Research",
		Blocks: []core.Block{
			{Type: core.BlockTypeText, Content: "note"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO context_stacks").
		WithArgs(
			"st-1", "acct-1", "Research", "",
			[]byte(`[{"type":"text","content":"note"}]`),
			false, false, 0, now, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), stack))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStackGetByIDUnmarshalsBlocks(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStackStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "account_id", "name", "description", "blocks", "is_template",
		"is_public", "use_count", "last_used_at", "created_at", "updated_at",
	}).AddRow(
		"st-1", "acct-1", "Research", "notes",
		[]byte(`[{"type":"url","url":"https://example.com","content":"body"},{"type":"text","content":"freeform"}]`),
		false, true, 5, (*time.Time)(nil), now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM context_stacks WHERE id").
		WithArgs("st-1").
		WillReturnRows(rows)

	stack, err := store.GetByID(context.Background(), "st-1")
	require.NoError(t, err)
	require.Len(t, stack.Blocks, 2)
	assert.Equal(t, core.BlockTypeURL, stack.Blocks[0].Type)
	assert.Equal(t, "freeform", stack.Blocks[1].Content)
	assert.Equal(t, 5, stack.UseCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStackTouch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStackStore(mock)
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("UPDATE context_stacks SET use_count = use_count \\+ 1").
		WithArgs("st-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Touch(context.Background(), "st-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStackDeleteNotOwned(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStackStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM context_stacks").
		WithArgs("st-1", "stranger").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.Delete(context.Background(), "st-1", "stranger")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}
