package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	KindAttack  = "attack"
	KindDefense = "defense"
)

// InitialRating is the rating assigned to every new prompt record.
const InitialRating = 1500

// PromptRef is the composite key identifying a prompt record.
// There is no surrogate ID; (owner, kind, code name) is the identity.
type PromptRef struct {
	OwnerID  string
	Kind     string
	CodeName string
}

// String renders the ref in canonical "@owner/kind/name" form.
func (r PromptRef) String() string {
	return fmt.Sprintf("@%s/%s/%s", r.OwnerID, r.Kind, r.CodeName)
}

// ParsePromptRef parses the canonical "@owner/kind/name" form.
func ParsePromptRef(s string) (PromptRef, error) {
	trimmed := strings.TrimPrefix(s, "@")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return PromptRef{}, NewValidationError("malformed prompt ref: %s", s)
	}
	if parts[1] != KindAttack && parts[1] != KindDefense {
		return PromptRef{}, NewValidationError("unknown prompt kind: %s", parts[1])
	}
	return PromptRef{OwnerID: parts[0], Kind: parts[1], CodeName: parts[2]}, nil
}

// PromptRecord is a named, owned prompt text with battle statistics.
type PromptRecord struct {
	Ref       PromptRef
	Content   string
	CreatedAt time.Time
	Wins      int
	Losses    int
	Rating    int
}

// NewPromptRecord constructs a record with the default rating.
func NewPromptRecord(ref PromptRef, content string, createdAt time.Time) (PromptRecord, error) {
	if ref.OwnerID == "" || ref.CodeName == "" {
		return PromptRecord{}, NewValidationError("owner and code name are required")
	}
	if ref.Kind != KindAttack && ref.Kind != KindDefense {
		return PromptRecord{}, NewValidationError("unknown prompt kind: %s", ref.Kind)
	}
	if strings.TrimSpace(content) == "" {
		return PromptRecord{}, NewValidationError("prompt content cannot be empty")
	}
	return PromptRecord{
		Ref:       ref,
		Content:   content,
		CreatedAt: createdAt,
		Rating:    InitialRating,
	}, nil
}

// WinRate returns the win percentage over all completed battles, or 0
// when the record has not battled yet.
func (p PromptRecord) WinRate() float64 {
	total := p.Wins + p.Losses
	if total == 0 {
		return 0
	}
	return float64(p.Wins) / float64(total) * 100
}

// OppositeKind returns the kind a record of this kind battles against.
func OppositeKind(kind string) string {
	if kind == KindAttack {
		return KindDefense
	}
	return KindAttack
}
