// Package sqlite is a single-file SQLite store for player state and
// conversations, for deployments without Postgres. It uses the pure-Go
// modernc driver, so no cgo is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
	"github.com/ashita-ai/wyrmgate/internal/storage/sqlite/migrations"
)

// createTimeout bounds the shared lookup-or-insert behind LoadOrCreate.
const createTimeout = 10 * time.Second

// Store persists player state and conversations in SQLite.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	creating singleflight.Group
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; this also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Name identifies the backend in health output.
func (s *Store) Name() string { return "sqlite" }

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("sqlite: ensure migration table: %w", err)
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("sqlite: list migrations: %w", err)
	}
	slices.Sort(names)

	for _, name := range names {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: check migration %s: %w", name, err)
		}
		if exists > 0 {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("sqlite: read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, nowMillis(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit migration %s: %w", name, err)
		}
		s.logger.Info("sqlite: applied migration", "file", name)
	}
	return nil
}

func nowMillis() int64 { return time.Now().UTC().UnixMilli() }

// isBusy reports a lock contention error worth retrying.
func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
		return true
	}
	return false
}

// withBusyRetry retries fn a few times while the database is locked.
func withBusyRetry(ctx context.Context, fn func() error) error {
	delay := 10 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt == 3 || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// GetState returns the stored state or storage.ErrNotFound.
func (s *Store) GetState(ctx context.Context, userID string) (model.PlayerState, error) {
	var (
		data    string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM player_states WHERE user_id = ?`, userID,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlayerState{}, storage.ErrNotFound
	}
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: get state: %w", err)
	}
	var st model.PlayerState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: decode state: %w", err)
	}
	st.Version = version
	return st, nil
}

// LoadOrCreate returns the user's state, creating the default character on
// first access. Concurrent callers share one detached lookup-or-insert.
func (s *Store) LoadOrCreate(ctx context.Context, userID string) (model.PlayerState, error) {
	ch := s.creating.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()

		st, err := s.GetState(ctx, userID)
		if err == nil || !errors.Is(err, storage.ErrNotFound) {
			return st, err
		}
		data, err := json.Marshal(game.NewPlayer(userID, "", ""))
		if err != nil {
			return nil, fmt.Errorf("sqlite: encode state: %w", err)
		}
		now := nowMillis()
		err = withBusyRetry(ctx, func() error {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO player_states (user_id, state, version, created_at, updated_at)
				 VALUES (?, ?, 1, ?, ?) ON CONFLICT (user_id) DO NOTHING`,
				userID, string(data), now, now)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite: create state: %w", err)
		}
		return s.GetState(ctx, userID)
	})
	select {
	case <-ctx.Done():
		return model.PlayerState{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return model.PlayerState{}, r.Err
		}
		return r.Val.(model.PlayerState).Clone(), nil
	}
}

// Save writes state if the stored version still matches, otherwise it
// returns storage.ErrConflict.
func (s *Store) Save(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: encode state: %w", err)
	}
	var res sql.Result
	err = withBusyRetry(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx,
			`UPDATE player_states SET state = ?, version = version + 1, updated_at = ?
			 WHERE user_id = ? AND version = ?`,
			string(data), nowMillis(), userID, state.Version)
		return err
	})
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: save state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: save state: %w", err)
	}
	if n == 0 {
		return model.PlayerState{}, storage.ErrConflict
	}
	out := state.Clone()
	out.Version = state.Version + 1
	return out, nil
}

// Replace overwrites the user's state unconditionally.
func (s *Store) Replace(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: encode state: %w", err)
	}
	var version int64
	now := nowMillis()
	err = withBusyRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO player_states (user_id, state, version, created_at, updated_at)
			 VALUES (?, ?, 1, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE
			 SET state = excluded.state, version = player_states.version + 1, updated_at = excluded.updated_at
			 RETURNING version`,
			userID, string(data), now, now,
		).Scan(&version)
	})
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("sqlite: replace state: %w", err)
	}
	out := state.Clone()
	out.Version = version
	return out, nil
}

// CreateSession starts a conversation owned by userID.
func (s *Store) CreateSession(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, created_at) VALUES (?, ?, ?)`, id, userID, nowMillis(),
	); err != nil {
		return "", fmt.Errorf("sqlite: create session: %w", err)
	}
	return id, nil
}

// GetOwner returns the session's owner or storage.ErrNotFound.
func (s *Store) GetOwner(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM chat_sessions WHERE id = ?`, sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: get session owner: %w", err)
	}
	return owner, nil
}

// AppendMessages appends msgs to the session transcript.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		exists int
		last   int
	)
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM chat_sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: check session: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE session_id = ?`, sessionID,
	).Scan(&last); err != nil {
		return fmt.Errorf("sqlite: last message seq: %w", err)
	}

	now := nowMillis()
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("sqlite: encode message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, seq, message, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, last+i+1, string(data), now,
		); err != nil {
			return fmt.Errorf("sqlite: insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit append: %w", err)
	}
	return nil
}

// Messages returns the session transcript in order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]model.Message, error) {
	if _, err := s.GetOwner(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM chat_messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		var m model.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("sqlite: decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordEvents appends game events to the audit trail.
func (s *Store) RecordEvents(ctx context.Context, userID, sessionID string, events []model.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin events: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var session any
	if sessionID != "" {
		session = sessionID
	}
	now := nowMillis()
	for _, e := range events {
		data := string(e.Data)
		if data == "" {
			data = "null"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO game_events (id, user_id, session_id, event_type, data, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), userID, session, e.Type, data, now,
		); err != nil {
			return fmt.Errorf("sqlite: insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit events: %w", err)
	}
	return nil
}

// CountEvents returns how many events are recorded for userID.
func (s *Store) CountEvents(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM game_events WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count events: %w", err)
	}
	return n, nil
}
