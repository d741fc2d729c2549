package domain

import "time"

const (
	BattleStatusSetup     = "setup"
	BattleStatusCompleted = "completed"
)

// Battle is a single attack/defense confrontation. The attacker ref is
// always the attack-kind record and the defender ref the defense-kind
// record, regardless of how the caller ordered them at creation.
type Battle struct {
	ID              string
	AttackerRef     PromptRef
	DefenderRef     PromptRef
	Status          string
	CreatedAt       time.Time
	Secret          string
	CompiledDefense string

	// Result is nil while the battle is in setup and set exactly once
	// when the battle completes.
	Result *BattleResult
}

// BattleResult records the outcome of a completed battle.
type BattleResult struct {
	WinnerRef     PromptRef
	AttackWon     bool
	Response      string
	AttackerDelta float64
	DefenderDelta float64
}

// Completed reports whether the battle has a recorded result.
func (b Battle) Completed() bool {
	return b.Status == BattleStatusCompleted && b.Result != nil
}
