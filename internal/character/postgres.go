package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the characters table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS characters (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    personality    TEXT NOT NULL DEFAULT '',
    speaking_style TEXT NOT NULL DEFAULT '',
    voice          JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists characters in PostgreSQL. The voice configuration is
// stored as JSONB.
type PostgresStore struct {
	db DB
}

// NewPostgresStore returns a store over db. Call [PostgresStore.Migrate]
// before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("character: migrate: %w", err)
	}
	return nil
}

// Get returns the character with the given id, or [ErrNotFound].
func (s *PostgresStore) Get(ctx context.Context, id string) (Character, error) {
	const query = `
		SELECT id, name, description, personality, speaking_style, voice
		FROM characters
		WHERE id = $1`

	var ch Character
	var voiceJSON []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.Personality, &ch.SpeakingStyle, &voiceJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Character{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return Character{}, fmt.Errorf("character: get %q: %w", id, err)
	}
	if err := json.Unmarshal(voiceJSON, &ch.Voice); err != nil {
		return Character{}, fmt.Errorf("character: unmarshal voice for %q: %w", id, err)
	}
	return ch, nil
}

// List returns every stored character ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]Character, error) {
	const query = `
		SELECT id, name, description, personality, speaking_style, voice
		FROM characters
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("character: list: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var ch Character
		var voiceJSON []byte
		if err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Description, &ch.Personality, &ch.SpeakingStyle, &voiceJSON,
		); err != nil {
			return nil, fmt.Errorf("character: list scan: %w", err)
		}
		if err := json.Unmarshal(voiceJSON, &ch.Voice); err != nil {
			return nil, fmt.Errorf("character: unmarshal voice for %q: %w", ch.ID, err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("character: list rows: %w", err)
	}
	return out, nil
}

// Upsert inserts ch or replaces the stored row with the same id.
func (s *PostgresStore) Upsert(ctx context.Context, ch Character) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	voiceJSON, err := json.Marshal(ch.Voice)
	if err != nil {
		return fmt.Errorf("character: marshal voice: %w", err)
	}

	const query = `
		INSERT INTO characters (id, name, description, personality, speaking_style, voice)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			personality = EXCLUDED.personality,
			speaking_style = EXCLUDED.speaking_style,
			voice = EXCLUDED.voice,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query,
		ch.ID, ch.Name, ch.Description, ch.Personality, ch.SpeakingStyle, voiceJSON,
	); err != nil {
		return fmt.Errorf("character: upsert %q: %w", ch.ID, err)
	}
	return nil
}

// Delete removes the character with the given id. Deleting a missing id is
// not an error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("character: delete %q: %w", id, err)
	}
	return nil
}

// Ping reports whether the database answers a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("character: ping: %w", err)
	}
	return nil
}
