package rating

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
)

// PromptReader is the subset of the store the matchmaker needs.
type PromptReader interface {
	GetPrompt(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error)
	ListPrompts(ctx context.Context, filter store.PromptFilter) ([]domain.PromptRecord, error)
}

// Matchmaker pairs a record with opponents of the opposite kind,
// closest rating first.
type Matchmaker struct {
	prompts PromptReader
}

// NewMatchmaker creates a matchmaker over the given prompt reader.
func NewMatchmaker(prompts PromptReader) *Matchmaker {
	return &Matchmaker{prompts: prompts}
}

// FindOpponents returns up to count opponent refs ordered by ascending
// absolute rating difference from the querying record. Ties keep the
// store's listing order.
func (m *Matchmaker) FindOpponents(ctx context.Context, ref domain.PromptRef, count int) ([]domain.PromptRef, error) {
	if count <= 0 {
		return nil, domain.NewValidationError("opponent count must be positive, got %d", count)
	}
	record, err := m.prompts.GetPrompt(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve prompt %s: %w", ref, err)
	}

	candidates, err := m.prompts.ListPrompts(ctx, store.PromptFilter{Kind: domain.OppositeKind(record.Ref.Kind)})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, domain.NewValidationError("no %s prompts available for battle", domain.OppositeKind(record.Ref.Kind))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return abs(candidates[i].Rating-record.Rating) < abs(candidates[j].Rating-record.Rating)
	})

	if count > len(candidates) {
		count = len(candidates)
	}
	refs := make([]domain.PromptRef, 0, count)
	for _, candidate := range candidates[:count] {
		refs = append(refs, candidate.Ref)
	}
	return refs, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
