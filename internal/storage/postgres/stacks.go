package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

const stackColumns = `id, account_id, name, description, blocks, is_template,
	is_public, use_count, last_used_at, created_at, updated_at`

// StackStore reads and mutates context stack rows. Blocks are stored as a
// JSONB array so their order survives round trips.
type StackStore struct {
	pool pool
}

// NewStackStore constructs a store from an existing pool.
func NewStackStore(pool pool) (*StackStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StackStore{pool: pool}, nil
}

// Create inserts a stack.
func (s *StackStore) Create(ctx context.Context, stack core.ContextStack) error {
	blocks, err := marshalBlocks(stack.Blocks)
	if err != nil {
		return err
	}

	query := `
INSERT INTO context_stacks (
	id, account_id, name, description, blocks, is_template, is_public,
	use_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = s.pool.Exec(ctx, query,
		stack.ID,
		stack.AccountID,
		stack.Name,
		stack.Description,
		blocks,
		stack.IsTemplate,
		stack.IsPublic,
		stack.UseCount,
		stack.CreatedAt,
		stack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stack: %w", err)
	}
	return nil
}

// GetByID fetches one stack.
func (s *StackStore) GetByID(ctx context.Context, id string) (core.ContextStack, error) {
	query := fmt.Sprintf(`SELECT %s FROM context_stacks WHERE id = $1`, stackColumns)
	stack, err := scanStack(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ContextStack{}, &core.NotFoundError{Resource: "context stack", ID: id}
		}
		return core.ContextStack{}, err
	}
	return stack, nil
}

// ListByAccount pages through the account's stacks, newest first.
func (s *StackStore) ListByAccount(ctx context.Context, accountID, search string, isTemplate *bool, limit, offset int) ([]core.ContextStack, error) {
	pattern := "%" + search + "%"
	query := fmt.Sprintf(`
SELECT %s FROM context_stacks
WHERE account_id = $1
  AND ($2 = '' OR name ILIKE $3 OR description ILIKE $3)
  AND ($4::boolean IS NULL OR is_template = $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`, stackColumns)

	rows, err := s.pool.Query(ctx, query, accountID, search, pattern, isTemplate, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	return collectStacks(rows)
}

// ListPublic returns public stacks, most used first.
func (s *StackStore) ListPublic(ctx context.Context, limit, offset int) ([]core.ContextStack, error) {
	query := fmt.Sprintf(`
SELECT %s FROM context_stacks
WHERE is_public = true
ORDER BY use_count DESC, created_at DESC
LIMIT $1 OFFSET $2`, stackColumns)

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list public stacks: %w", err)
	}
	return collectStacks(rows)
}

// Update rewrites the mutable fields of a stack the account owns.
func (s *StackStore) Update(ctx context.Context, stack core.ContextStack) error {
	blocks, err := marshalBlocks(stack.Blocks)
	if err != nil {
		return err
	}

	query := `
UPDATE context_stacks SET
	name = $3,
	description = $4,
	blocks = $5,
	is_template = $6,
	is_public = $7,
	updated_at = $8
WHERE id = $1 AND account_id = $2`

	tag, err := s.pool.Exec(ctx, query,
		stack.ID,
		stack.AccountID,
		stack.Name,
		stack.Description,
		blocks,
		stack.IsTemplate,
		stack.IsPublic,
		stack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update stack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "context stack", ID: stack.ID}
	}
	return nil
}

// Delete removes a stack the account owns.
func (s *StackStore) Delete(ctx context.Context, id, accountID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM context_stacks WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "context stack", ID: id}
	}
	return nil
}

// Touch bumps the use counter in one statement.
func (s *StackStore) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE context_stacks SET use_count = use_count + 1, last_used_at = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("touch stack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "context stack", ID: id}
	}
	return nil
}

func marshalBlocks(blocks []core.Block) ([]byte, error) {
	if blocks == nil {
		blocks = []core.Block{}
	}
	out, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("marshal blocks: %w", err)
	}
	return out, nil
}

func collectStacks(rows pgx.Rows) ([]core.ContextStack, error) {
	defer rows.Close()
	var out []core.ContextStack
	for rows.Next() {
		stack, err := scanStack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	return out, nil
}

func scanStack(row rowScanner) (core.ContextStack, error) {
	var (
		stack  core.ContextStack
		blocks []byte
	)
	err := row.Scan(
		&stack.ID,
		&stack.AccountID,
		&stack.Name,
		&stack.Description,
		&blocks,
		&stack.IsTemplate,
		&stack.IsPublic,
		&stack.UseCount,
		&stack.LastUsedAt,
		&stack.CreatedAt,
		&stack.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ContextStack{}, err
		}
		return core.ContextStack{}, fmt.Errorf("scan stack: %w", err)
	}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &stack.Blocks); err != nil {
			return core.ContextStack{}, fmt.Errorf("unmarshal blocks: %w", err)
		}
	}
	return stack, nil
}
