// Package stack manages ordered context collections and their exports.
package stack

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// maxBlocks bounds how many blocks a single stack may hold.
const maxBlocks = 100

// Service owns context stack lifecycle and access control. Reads allow the
// owner or anyone when the stack is public; writes require ownership.
type Service struct {
	stacks core.StackStore
	idGen  core.IDGenerator
	clock  core.Clock
	logger *zap.Logger
}

// NewService wires a stack service.
func NewService(stacks core.StackStore, idGen core.IDGenerator, clock core.Clock, logger *zap.Logger) *Service {
	return &Service{stacks: stacks, idGen: idGen, clock: clock, logger: logger}
}

// CreateParams describe a new stack.
type CreateParams struct {
	Name        string
	Description string
	Blocks      []core.Block
	IsTemplate  bool
	IsPublic    bool
}

// UpdateParams carry a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
	Blocks      *[]core.Block
	IsTemplate  *bool
	IsPublic    *bool
}

// Create validates and persists a new stack owned by the account.
func (s *Service) Create(ctx context.Context, accountID string, params CreateParams) (core.ContextStack, error) {
	if strings.TrimSpace(params.Name) == "" {
		return core.ContextStack{}, &core.ValidationError{Field: "name", Detail: "name is required"}
	}
	if err := validateBlocks(params.Blocks); err != nil {
		return core.ContextStack{}, err
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return core.ContextStack{}, fmt.Errorf("assign stack id: %w", err)
	}
	now := s.clock.Now()

	stack := core.ContextStack{
		ID:          id,
		AccountID:   accountID,
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		Blocks:      params.Blocks,
		IsTemplate:  params.IsTemplate,
		IsPublic:    params.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stacks.Create(ctx, stack); err != nil {
		return core.ContextStack{}, fmt.Errorf("store stack: %w", err)
	}

	s.logger.Info("context stack created",
		zap.String("id", stack.ID),
		zap.String("account_id", accountID),
		zap.Int("blocks", len(stack.Blocks)),
	)
	return stack, nil
}

// Get returns a stack if the caller may see it, counting the access. A
// private stack owned by someone else reads as not found, never as
// forbidden.
func (s *Service) Get(ctx context.Context, id string, accountID *string) (core.ContextStack, error) {
	stack, err := s.readable(ctx, id, accountID)
	if err != nil {
		return core.ContextStack{}, err
	}
	s.touch(ctx, id)
	return stack, nil
}

// readable loads a stack and applies the visibility check without touching
// the use counter.
func (s *Service) readable(ctx context.Context, id string, accountID *string) (core.ContextStack, error) {
	stack, err := s.stacks.GetByID(ctx, id)
	if err != nil {
		return core.ContextStack{}, err
	}
	if !canRead(stack, accountID) {
		return core.ContextStack{}, &core.NotFoundError{Resource: "context stack", ID: id}
	}
	return stack, nil
}

// touch records one use. Failures are logged, never surfaced: losing a
// counter bump must not fail a read.
func (s *Service) touch(ctx context.Context, id string) {
	if err := s.stacks.Touch(ctx, id, s.clock.Now()); err != nil {
		s.logger.Warn("stack use count update failed", zap.String("id", id), zap.Error(err))
	}
}

// ListMine returns the account's stacks with optional search and template
// filters, newest first.
func (s *Service) ListMine(ctx context.Context, accountID, search string, isTemplate *bool, limit, offset int) ([]core.ContextStack, error) {
	limit, offset = clampPage(limit, offset)
	return s.stacks.ListByAccount(ctx, accountID, search, isTemplate, limit, offset)
}

// ListPublic returns public stacks ordered by popularity.
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]core.ContextStack, error) {
	limit, offset = clampPage(limit, offset)
	return s.stacks.ListPublic(ctx, limit, offset)
}

// Update applies a partial update to a stack the account owns.
func (s *Service) Update(ctx context.Context, id, accountID string, params UpdateParams) (core.ContextStack, error) {
	stack, err := s.stacks.GetByID(ctx, id)
	if err != nil {
		return core.ContextStack{}, err
	}
	if stack.AccountID != accountID {
		return core.ContextStack{}, &core.NotFoundError{Resource: "context stack", ID: id}
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return core.ContextStack{}, &core.ValidationError{Field: "name", Detail: "name is required"}
		}
		stack.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		stack.Description = *params.Description
	}
	if params.Blocks != nil {
		if err := validateBlocks(*params.Blocks); err != nil {
			return core.ContextStack{}, err
		}
		stack.Blocks = *params.Blocks
	}
	if params.IsTemplate != nil {
		stack.IsTemplate = *params.IsTemplate
	}
	if params.IsPublic != nil {
		stack.IsPublic = *params.IsPublic
	}
	stack.UpdatedAt = s.clock.Now()

	if err := s.stacks.Update(ctx, stack); err != nil {
		return core.ContextStack{}, fmt.Errorf("update stack: %w", err)
	}
	return stack, nil
}

// Delete removes a stack the account owns.
func (s *Service) Delete(ctx context.Context, id, accountID string) error {
	return s.stacks.Delete(ctx, id, accountID)
}

// Export renders a readable stack and records the use.
func (s *Service) Export(ctx context.Context, id string, accountID *string, opts ExportOptions) (Export, error) {
	stack, err := s.readable(ctx, id, accountID)
	if err != nil {
		return Export{}, err
	}
	s.touch(ctx, id)
	return Render(stack, opts, s.clock.Now())
}

func canRead(stack core.ContextStack, accountID *string) bool {
	if stack.IsPublic {
		return true
	}
	return accountID != nil && stack.AccountID == *accountID
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateBlocks(blocks []core.Block) error {
	if len(blocks) > maxBlocks {
		return &core.ValidationError{Field: "blocks", Detail: fmt.Sprintf("at most %d blocks allowed", maxBlocks)}
	}
	for i, b := range blocks {
		switch b.Type {
		case core.BlockTypeURL:
			if strings.TrimSpace(b.URL) == "" {
				return &core.ValidationError{Field: fmt.Sprintf("blocks[%d].url", i), Detail: "url blocks require a url"}
			}
		case core.BlockTypeText:
		default:
			return &core.ValidationError{Field: fmt.Sprintf("blocks[%d].type", i), Detail: "type must be one of: url, text"}
		}
	}
	return nil
}
