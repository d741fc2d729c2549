package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
	"github.com/jmorrow/prompt-arena/internal/usecase/rating"
)

// Completer is the outbound port for the single battle exchange: the
// compiled defense rides as system-level context, the attack as the
// user turn. Any provider-side failure surfaces as an error.
type Completer interface {
	Complete(ctx context.Context, systemText, userText string) (string, error)
}

// Detector is the outbound port for leak adjudication.
type Detector interface {
	Detect(ctx context.Context, response, secret string) (bool, error)
}

// Matchmaker selects opponents when the caller names only one side.
type Matchmaker interface {
	FindOpponents(ctx context.Context, ref domain.PromptRef, count int) ([]domain.PromptRef, error)
}

// Logger is the optional structured logging port.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// EngineDeps captures the engine's injected collaborators.
type EngineDeps struct {
	Store      store.Store
	Completer  Completer
	Detector   Detector
	Matchmaker Matchmaker // Optional: auto-created over Store when nil
	Logger     Logger     // Optional

	// Now and NewID exist for deterministic tests; they default to
	// time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string

	// SecretLength defaults to domain.SecretLength.
	SecretLength int
}

// Engine owns the battle lifecycle: setup, execution, completion.
type Engine struct {
	deps EngineDeps

	// mu serialises the status-check-then-mutate sequence of
	// ExecuteBattle so two callers cannot both observe setup and both
	// apply rating deltas.
	mu sync.Mutex
}

// NewEngine wires the engine dependencies, auto-creating a matchmaker
// over the store when none is supplied.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Matchmaker == nil && deps.Store != nil {
		deps.Matchmaker = rating.NewMatchmaker(deps.Store)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.SecretLength == 0 {
		deps.SecretLength = domain.SecretLength
	}
	return &Engine{deps: deps}
}

func (e *Engine) validateDependencies() error {
	if e.deps.Store == nil {
		return errors.New("store is required")
	}
	if e.deps.Completer == nil {
		return errors.New("completer is required")
	}
	if e.deps.Detector == nil {
		return errors.New("leak detector is required")
	}
	if e.deps.Matchmaker == nil {
		return errors.New("matchmaker is required")
	}
	return nil
}

// CreateBattle resolves both records, generates a secret, compiles the
// defense and persists the battle in setup state. When defenderRef is
// nil the closest-rated opponent is selected. The contract is symmetric
// about which side the caller names first: if the refs arrive swapped
// relative to their kinds, the engine swaps them back.
func (e *Engine) CreateBattle(ctx context.Context, attackerRef domain.PromptRef, defenderRef *domain.PromptRef) (domain.Battle, error) {
	if err := e.validateDependencies(); err != nil {
		return domain.Battle{}, err
	}

	first, err := e.deps.Store.GetPrompt(ctx, attackerRef)
	if err != nil {
		return domain.Battle{}, resolveErr(attackerRef, err)
	}

	var second domain.PromptRecord
	if defenderRef == nil {
		opponents, err := e.deps.Matchmaker.FindOpponents(ctx, first.Ref, 1)
		if err != nil {
			return domain.Battle{}, fmt.Errorf("auto-select opponent: %w", err)
		}
		if len(opponents) == 0 {
			return domain.Battle{}, domain.NewValidationError("no opponent available for %s", first.Ref)
		}
		ref := opponents[0]
		defenderRef = &ref
	}
	second, err = e.deps.Store.GetPrompt(ctx, *defenderRef)
	if err != nil {
		return domain.Battle{}, resolveErr(*defenderRef, err)
	}

	if first.Ref.Kind == second.Ref.Kind {
		return domain.Battle{}, domain.NewValidationError("prompts must be of different kinds, both are %s", first.Ref.Kind)
	}

	attacker, defender := first, second
	if attacker.Ref.Kind != domain.KindAttack {
		attacker, defender = defender, attacker
	}

	secret, err := domain.GenerateSecret(e.deps.SecretLength)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("generate secret: %w", err)
	}

	battle := domain.Battle{
		ID:              e.deps.NewID(),
		AttackerRef:     attacker.Ref,
		DefenderRef:     defender.Ref,
		Status:          domain.BattleStatusSetup,
		CreatedAt:       e.deps.Now(),
		Secret:          secret,
		CompiledDefense: domain.CompileDefense(defender.Content, secret),
	}

	if err := e.deps.Store.PutBattle(ctx, battle); err != nil {
		return domain.Battle{}, fmt.Errorf("persist battle: %w", err)
	}

	e.logInfo(ctx, "battle created", map[string]interface{}{
		"battleId": battle.ID,
		"attacker": battle.AttackerRef.String(),
		"defender": battle.DefenderRef.String(),
	})
	return battle, nil
}

// ExecuteBattle runs the exchange and adjudicates it. The battle must
// be in setup; a completed battle fails with a state error and no
// rating change. A completion or detection failure aborts the
// execution and leaves the battle in setup so the caller can retry.
func (e *Engine) ExecuteBattle(ctx context.Context, battleID string) (domain.Battle, error) {
	if err := e.validateDependencies(); err != nil {
		return domain.Battle{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	battle, err := e.deps.Store.GetBattle(ctx, battleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Battle{}, domain.NewValidationError("unknown battle: %s", battleID)
		}
		return domain.Battle{}, fmt.Errorf("load battle %s: %w", battleID, err)
	}
	if battle.Status != domain.BattleStatusSetup {
		return domain.Battle{}, &domain.StateError{
			BattleID: battle.ID,
			Status:   battle.Status,
			Expected: domain.BattleStatusSetup,
		}
	}

	attacker, err := e.deps.Store.GetPrompt(ctx, battle.AttackerRef)
	if err != nil {
		return domain.Battle{}, resolveErr(battle.AttackerRef, err)
	}
	defender, err := e.deps.Store.GetPrompt(ctx, battle.DefenderRef)
	if err != nil {
		return domain.Battle{}, resolveErr(battle.DefenderRef, err)
	}

	response, err := e.deps.Completer.Complete(ctx, battle.CompiledDefense, attacker.Content)
	if err != nil {
		e.logWarning(ctx, "completion failed, battle stays in setup", map[string]interface{}{
			"battleId": battle.ID,
			"error":    err.Error(),
		})
		return domain.Battle{}, fmt.Errorf("battle exchange: %w", err)
	}

	attackWon, err := e.deps.Detector.Detect(ctx, response, battle.Secret)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("adjudicate battle %s: %w", battle.ID, err)
	}

	attackerDelta, defenderDelta := rating.EloUpdate(float64(attacker.Rating), float64(defender.Rating), attackWon)

	winner := defender.Ref
	if attackWon {
		winner = attacker.Ref
		attacker.Wins++
		defender.Losses++
	} else {
		defender.Wins++
		attacker.Losses++
	}
	attacker.Rating = rating.ApplyDelta(attacker.Rating, attackerDelta)
	defender.Rating = rating.ApplyDelta(defender.Rating, defenderDelta)

	battle.Status = domain.BattleStatusCompleted
	battle.Result = &domain.BattleResult{
		WinnerRef:     winner,
		AttackWon:     attackWon,
		Response:      response,
		AttackerDelta: attackerDelta,
		DefenderDelta: defenderDelta,
	}

	if err := e.deps.Store.ApplyResult(ctx, battle, attacker, defender); err != nil {
		return domain.Battle{}, fmt.Errorf("persist battle result: %w", err)
	}

	e.logInfo(ctx, "battle completed", map[string]interface{}{
		"battleId":  battle.ID,
		"winner":    winner.String(),
		"attackWon": attackWon,
	})
	return battle, nil
}

// GetStatus returns the battle by id.
func (e *Engine) GetStatus(ctx context.Context, battleID string) (domain.Battle, error) {
	battle, err := e.deps.Store.GetBattle(ctx, battleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Battle{}, domain.NewValidationError("unknown battle: %s", battleID)
		}
		return domain.Battle{}, fmt.Errorf("load battle %s: %w", battleID, err)
	}
	return battle, nil
}

// ListBattles returns the most recent battles, newest first.
func (e *Engine) ListBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	return e.deps.Store.ListBattles(ctx, limit)
}

func resolveErr(ref domain.PromptRef, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError("unknown prompt: %s", ref)
	}
	return fmt.Errorf("resolve prompt %s: %w", ref, err)
}

func (e *Engine) logInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.LogInfo(ctx, message, fields)
	}
}

func (e *Engine) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.LogWarning(ctx, message, fields)
	}
}
