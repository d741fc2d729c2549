// Package memory provides an in-memory store implementation. It backs
// unit tests and offline runs with deterministic, insertion-ordered
// listings.
package memory

import (
	"context"
	"sync"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
)

// Store implements store.Store with maps guarded by a mutex.
type Store struct {
	mu sync.RWMutex

	prompts     map[string]domain.PromptRecord
	promptOrder []string

	battles     map[string]domain.Battle
	battleOrder []string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		prompts: make(map[string]domain.PromptRecord),
		battles: make(map[string]domain.Battle),
	}
}

// PutPrompt inserts or replaces a prompt record.
func (s *Store) PutPrompt(ctx context.Context, record domain.PromptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putPromptLocked(record)
	return nil
}

func (s *Store) putPromptLocked(record domain.PromptRecord) {
	key := record.Ref.String()
	if _, exists := s.prompts[key]; !exists {
		s.promptOrder = append(s.promptOrder, key)
	}
	s.prompts[key] = record
}

// GetPrompt returns the record for the given ref.
func (s *Store) GetPrompt(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.prompts[ref.String()]
	if !ok {
		return domain.PromptRecord{}, domain.ErrNotFound
	}
	return record, nil
}

// DeletePrompt removes a record, reporting whether it existed.
func (s *Store) DeletePrompt(ctx context.Context, ref domain.PromptRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ref.String()
	if _, ok := s.prompts[key]; !ok {
		return false, nil
	}
	delete(s.prompts, key)
	for i, k := range s.promptOrder {
		if k == key {
			s.promptOrder = append(s.promptOrder[:i], s.promptOrder[i+1:]...)
			break
		}
	}
	return true, nil
}

// ListPrompts returns matching records in insertion order.
func (s *Store) ListPrompts(ctx context.Context, filter store.PromptFilter) ([]domain.PromptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PromptRecord
	for _, key := range s.promptOrder {
		if record := s.prompts[key]; filter.Matches(record) {
			out = append(out, record)
		}
	}
	return out, nil
}

// PutBattle inserts or replaces a battle.
func (s *Store) PutBattle(ctx context.Context, battle domain.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBattleLocked(battle)
	return nil
}

func (s *Store) putBattleLocked(battle domain.Battle) {
	if _, exists := s.battles[battle.ID]; !exists {
		s.battleOrder = append(s.battleOrder, battle.ID)
	}
	s.battles[battle.ID] = copyBattle(battle)
}

// GetBattle returns the battle with the given id.
func (s *Store) GetBattle(ctx context.Context, id string) (domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	battle, ok := s.battles[id]
	if !ok {
		return domain.Battle{}, domain.ErrNotFound
	}
	return copyBattle(battle), nil
}

// ListBattles returns up to limit battles, newest first.
func (s *Store) ListBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.battleOrder) {
		limit = len(s.battleOrder)
	}
	out := make([]domain.Battle, 0, limit)
	for i := len(s.battleOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyBattle(s.battles[s.battleOrder[i]]))
	}
	return out, nil
}

// ApplyResult stores the completed battle and both records under one
// lock acquisition, so readers never observe a partial result.
func (s *Store) ApplyResult(ctx context.Context, battle domain.Battle, attacker, defender domain.PromptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBattleLocked(battle)
	s.putPromptLocked(attacker)
	s.putPromptLocked(defender)
	return nil
}

// Close implements store.Store; nothing to release.
func (s *Store) Close() error {
	return nil
}

// copyBattle detaches the result pointer so callers cannot mutate
// stored state through it.
func copyBattle(b domain.Battle) domain.Battle {
	if b.Result != nil {
		result := *b.Result
		b.Result = &result
	}
	return b
}
