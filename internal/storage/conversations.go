package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// copyTimeout bounds COPY batches so a hung Postgres cannot stall a request.
const copyTimeout = 30 * time.Second

// CreateSession starts a conversation owned by userID and returns its id.
func (db *DB) CreateSession(ctx context.Context, userID string) (string, error) {
	id := uuid.New()
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id) VALUES ($1, $2)`, id, userID,
	); err != nil {
		return "", fmt.Errorf("storage: create session: %w", err)
	}
	return id.String(), nil
}

// GetOwner returns the user that owns sessionID, or ErrNotFound.
func (db *DB) GetOwner(ctx context.Context, sessionID string) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", ErrNotFound
	}
	var owner string
	err = db.pool.QueryRow(ctx, `SELECT user_id FROM chat_sessions WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: get session owner: %w", err)
	}
	return owner, nil
}

// AppendMessages appends msgs to the session transcript. The session row is
// locked so concurrent appends get consecutive sequence numbers.
func (db *DB) AppendMessages(ctx context.Context, sessionID string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrNotFound
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM chat_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: lock session: %w", err)
		}

		var last int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE session_id = $1`, id,
		).Scan(&last); err != nil {
			return fmt.Errorf("storage: last message seq: %w", err)
		}

		rows := make([][]any, len(msgs))
		for i, m := range msgs {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("storage: encode message: %w", err)
			}
			rows[i] = []any{id, last + i + 1, data}
		}

		copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
		defer cancel()
		if _, err := tx.CopyFrom(copyCtx,
			pgx.Identifier{"chat_messages"},
			[]string{"session_id", "seq", "message"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("storage: copy messages: %w", err)
		}
		return nil
	})
}

// Messages returns the session transcript in order.
func (db *DB) Messages(ctx context.Context, sessionID string) ([]model.Message, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := db.pool.Query(ctx,
		`SELECT message FROM chat_messages WHERE session_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("storage: scan messages: %w", err)
	}

	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		var m model.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("storage: decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// RecordEvents appends game events to the audit trail using COPY.
// sessionID may be empty.
func (db *DB) RecordEvents(ctx context.Context, userID, sessionID string, events []model.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	var session *uuid.UUID
	if id, err := uuid.Parse(sessionID); err == nil {
		session = &id
	}

	now := time.Now().UTC()
	rows := make([][]any, len(events))
	for i, e := range events {
		data := []byte(e.Data)
		if len(data) == 0 {
			data = []byte("null")
		}
		rows[i] = []any{uuid.New(), userID, session, e.Type, data, now}
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()
	if _, err := db.pool.CopyFrom(copyCtx,
		pgx.Identifier{"game_events"},
		[]string{"id", "user_id", "session_id", "event_type", "data", "occurred_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("storage: copy events: %w", err)
	}
	return nil
}
