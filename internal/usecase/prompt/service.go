// Package prompt manages the lifecycle of prompt records: creation,
// lookup, deletion and listing. Ratings and counters are owned by the
// battle engine; this service never touches them.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
)

// Service exposes prompt record operations over an injected store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a prompt service. now defaults to time.Now.
func NewService(st store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now}
}

// Create registers a new prompt record. The composite key must be free.
func (s *Service) Create(ctx context.Context, ref domain.PromptRef, content string) (domain.PromptRecord, error) {
	record, err := domain.NewPromptRecord(ref, content, s.now())
	if err != nil {
		return domain.PromptRecord{}, err
	}

	if _, err := s.store.GetPrompt(ctx, ref); err == nil {
		return domain.PromptRecord{}, domain.NewValidationError("prompt %s already exists", ref)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.PromptRecord{}, fmt.Errorf("check existing prompt: %w", err)
	}

	if err := s.store.PutPrompt(ctx, record); err != nil {
		return domain.PromptRecord{}, fmt.Errorf("persist prompt: %w", err)
	}
	return record, nil
}

// Get returns a record by ref.
func (s *Service) Get(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error) {
	record, err := s.store.GetPrompt(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PromptRecord{}, domain.NewValidationError("unknown prompt: %s", ref)
		}
		return domain.PromptRecord{}, fmt.Errorf("load prompt %s: %w", ref, err)
	}
	return record, nil
}

// Delete removes a record, reporting whether it existed.
func (s *Service) Delete(ctx context.Context, ref domain.PromptRef) (bool, error) {
	return s.store.DeletePrompt(ctx, ref)
}

// List returns records matching the filter in store order.
func (s *Service) List(ctx context.Context, filter store.PromptFilter) ([]domain.PromptRecord, error) {
	return s.store.ListPrompts(ctx, filter)
}

// Leaderboard returns up to limit records of the given kind (or all
// kinds when empty), best rating first. Equal ratings keep store order.
func (s *Service) Leaderboard(ctx context.Context, kind string, limit int) ([]domain.PromptRecord, error) {
	records, err := s.store.ListPrompts(ctx, store.PromptFilter{Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Rating > records[j].Rating
	})
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}
