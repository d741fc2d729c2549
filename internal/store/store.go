package store

import (
	"context"

	"github.com/jmorrow/prompt-arena/internal/domain"
)

// Store defines the persistence layer interface for prompt records and
// battles. Puts are upserts: records are mutated in place after every
// battle they participate in.
type Store interface {
	// Prompt records
	PutPrompt(ctx context.Context, record domain.PromptRecord) error
	GetPrompt(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error)
	DeletePrompt(ctx context.Context, ref domain.PromptRef) (bool, error)
	ListPrompts(ctx context.Context, filter PromptFilter) ([]domain.PromptRecord, error)

	// Battles
	PutBattle(ctx context.Context, battle domain.Battle) error
	GetBattle(ctx context.Context, id string) (domain.Battle, error)
	ListBattles(ctx context.Context, limit int) ([]domain.Battle, error)

	// ApplyResult persists a completed battle together with both updated
	// participant records as one logical transaction: all three writes
	// become visible together or not at all.
	ApplyResult(ctx context.Context, battle domain.Battle, attacker, defender domain.PromptRecord) error

	// Utility
	Close() error
}

// PromptFilter narrows ListPrompts. Zero-value fields match everything.
type PromptFilter struct {
	OwnerID string
	Kind    string
}

// Matches reports whether a record passes the filter.
func (f PromptFilter) Matches(record domain.PromptRecord) bool {
	if f.OwnerID != "" && record.Ref.OwnerID != f.OwnerID {
		return false
	}
	if f.Kind != "" && record.Ref.Kind != f.Kind {
		return false
	}
	return true
}
