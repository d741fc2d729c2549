package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- Prompt records, one row per (owner, kind, code name)
	CREATE TABLE IF NOT EXISTS prompts (
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK(kind IN ('attack', 'defense')),
		code_name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL,
		PRIMARY KEY (owner_id, kind, code_name)
	);

	-- Battles; result_json is NULL while the battle is in setup
	CREATE TABLE IF NOT EXISTS battles (
		battle_id TEXT PRIMARY KEY,
		attacker_ref TEXT NOT NULL,
		defender_ref TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('setup', 'completed')),
		created_at INTEGER NOT NULL,
		secret TEXT NOT NULL,
		compiled_defense TEXT NOT NULL,
		result_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_prompts_kind_rating ON prompts(kind, rating DESC);
	CREATE INDEX IF NOT EXISTS idx_battles_created ON battles(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// PutPrompt inserts or replaces a prompt record.
func (s *Store) PutPrompt(ctx context.Context, record domain.PromptRecord) error {
	query := `
		INSERT INTO prompts (owner_id, kind, code_name, content, created_at, wins, losses, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, kind, code_name) DO UPDATE SET
			content = excluded.content,
			wins = excluded.wins,
			losses = excluded.losses,
			rating = excluded.rating
	`

	_, err := s.db.ExecContext(ctx, query,
		record.Ref.OwnerID,
		record.Ref.Kind,
		record.Ref.CodeName,
		record.Content,
		record.CreatedAt.Unix(),
		record.Wins,
		record.Losses,
		record.Rating,
	)

	if err != nil {
		return fmt.Errorf("failed to put prompt: %w", err)
	}

	return nil
}

// GetPrompt retrieves a prompt record by ref.
func (s *Store) GetPrompt(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error) {
	query := `
		SELECT owner_id, kind, code_name, content, created_at, wins, losses, rating
		FROM prompts
		WHERE owner_id = ? AND kind = ? AND code_name = ?
	`

	record, err := scanPrompt(s.db.QueryRowContext(ctx, query, ref.OwnerID, ref.Kind, ref.CodeName))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PromptRecord{}, domain.ErrNotFound
		}
		return domain.PromptRecord{}, fmt.Errorf("failed to get prompt: %w", err)
	}

	return record, nil
}

// DeletePrompt removes a prompt record, reporting whether it existed.
func (s *Store) DeletePrompt(ctx context.Context, ref domain.PromptRef) (bool, error) {
	query := `DELETE FROM prompts WHERE owner_id = ? AND kind = ? AND code_name = ?`

	result, err := s.db.ExecContext(ctx, query, ref.OwnerID, ref.Kind, ref.CodeName)
	if err != nil {
		return false, fmt.Errorf("failed to delete prompt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// ListPrompts retrieves prompt records matching the filter in insertion
// order.
func (s *Store) ListPrompts(ctx context.Context, filter store.PromptFilter) ([]domain.PromptRecord, error) {
	query := `
		SELECT owner_id, kind, code_name, content, created_at, wins, losses, rating
		FROM prompts
		WHERE (? = '' OR owner_id = ?) AND (? = '' OR kind = ?)
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, filter.OwnerID, filter.OwnerID, filter.Kind, filter.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var records []domain.PromptRecord
	for rows.Next() {
		record, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompts: %w", err)
	}

	return records, nil
}

// PutBattle inserts or replaces a battle.
func (s *Store) PutBattle(ctx context.Context, battle domain.Battle) error {
	if err := execPutBattle(ctx, s.db, battle); err != nil {
		return err
	}
	return nil
}

// GetBattle retrieves a battle by ID.
func (s *Store) GetBattle(ctx context.Context, id string) (domain.Battle, error) {
	query := `
		SELECT battle_id, attacker_ref, defender_ref, status, created_at, secret, compiled_defense, result_json
		FROM battles
		WHERE battle_id = ?
	`

	battle, err := scanBattle(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Battle{}, domain.ErrNotFound
		}
		return domain.Battle{}, fmt.Errorf("failed to get battle: %w", err)
	}

	return battle, nil
}

// ListBattles retrieves the most recent battles, limited by the given count.
func (s *Store) ListBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	query := `
		SELECT battle_id, attacker_ref, defender_ref, status, created_at, secret, compiled_defense, result_json
		FROM battles
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer rows.Close()

	var battles []domain.Battle
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battle: %w", err)
		}
		battles = append(battles, battle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating battles: %w", err)
	}

	return battles, nil
}

// ApplyResult persists the completed battle and both updated records in
// a single transaction.
func (s *Store) ApplyResult(ctx context.Context, battle domain.Battle, attacker, defender domain.PromptRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execPutBattle(ctx, tx, battle); err != nil {
		return err
	}

	updateQuery := `
		UPDATE prompts SET wins = ?, losses = ?, rating = ?
		WHERE owner_id = ? AND kind = ? AND code_name = ?
	`
	for _, record := range []domain.PromptRecord{attacker, defender} {
		result, err := tx.ExecContext(ctx, updateQuery,
			record.Wins, record.Losses, record.Rating,
			record.Ref.OwnerID, record.Ref.Kind, record.Ref.CodeName,
		)
		if err != nil {
			return fmt.Errorf("failed to update prompt: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("prompt not found: %s", record.Ref.String())
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execPutBattle(ctx context.Context, db execer, battle domain.Battle) error {
	var resultJSON sql.NullString
	if battle.Result != nil {
		data, err := json.Marshal(battle.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO battles (battle_id, attacker_ref, defender_ref, status, created_at, secret, compiled_defense, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(battle_id) DO UPDATE SET
			status = excluded.status,
			result_json = excluded.result_json
	`

	_, err := db.ExecContext(ctx, query,
		battle.ID,
		battle.AttackerRef.String(),
		battle.DefenderRef.String(),
		battle.Status,
		battle.CreatedAt.Unix(),
		battle.Secret,
		battle.CompiledDefense,
		resultJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to put battle: %w", err)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row scanner) (domain.PromptRecord, error) {
	var record domain.PromptRecord
	var createdAt int64

	if err := row.Scan(
		&record.Ref.OwnerID,
		&record.Ref.Kind,
		&record.Ref.CodeName,
		&record.Content,
		&createdAt,
		&record.Wins,
		&record.Losses,
		&record.Rating,
	); err != nil {
		return domain.PromptRecord{}, err
	}

	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	return record, nil
}

func scanBattle(row scanner) (domain.Battle, error) {
	var battle domain.Battle
	var attackerRef, defenderRef string
	var createdAt int64
	var resultJSON sql.NullString

	if err := row.Scan(
		&battle.ID,
		&attackerRef,
		&defenderRef,
		&battle.Status,
		&createdAt,
		&battle.Secret,
		&battle.CompiledDefense,
		&resultJSON,
	); err != nil {
		return domain.Battle{}, err
	}

	ref, err := domain.ParsePromptRef(attackerRef)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("corrupt attacker ref: %w", err)
	}
	battle.AttackerRef = ref

	ref, err = domain.ParsePromptRef(defenderRef)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("corrupt defender ref: %w", err)
	}
	battle.DefenderRef = ref

	battle.CreatedAt = time.Unix(createdAt, 0).UTC()

	if resultJSON.Valid {
		var result domain.BattleResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return domain.Battle{}, fmt.Errorf("corrupt battle result: %w", err)
		}
		battle.Result = &result
	}

	return battle, nil
}
