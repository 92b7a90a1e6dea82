package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

// GetState returns the stored state for userID, or ErrNotFound.
func (db *DB) GetState(ctx context.Context, userID string) (model.PlayerState, error) {
	var (
		data    []byte
		version int64
	)
	err := db.pool.QueryRow(ctx,
		`SELECT state, version FROM player_states WHERE user_id = $1`, userID,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlayerState{}, ErrNotFound
	}
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: get state: %w", err)
	}
	var st model.PlayerState
	if err := json.Unmarshal(data, &st); err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: decode state: %w", err)
	}
	st.Version = version
	return st, nil
}

// createTimeout bounds the shared lookup-or-insert behind LoadOrCreate.
const createTimeout = 10 * time.Second

// LoadOrCreate returns the user's state, creating the default character on
// first access. Concurrent first accesses for one user share a single
// insert. The shared work runs detached from any one caller, so a caller
// that gives up does not fail the others.
func (db *DB) LoadOrCreate(ctx context.Context, userID string) (model.PlayerState, error) {
	ch := db.creating.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()

		st, err := db.GetState(ctx, userID)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return st, err
		}

		data, err := json.Marshal(game.NewPlayer(userID, "", ""))
		if err != nil {
			return nil, fmt.Errorf("storage: encode state: %w", err)
		}
		if _, err := db.pool.Exec(ctx,
			`INSERT INTO player_states (user_id, state, version) VALUES ($1, $2, 1)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, data,
		); err != nil {
			return nil, fmt.Errorf("storage: create state: %w", err)
		}
		return db.GetState(ctx, userID)
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

// Save writes state if the stored version still equals state.Version and
// returns the state with its new version. A moved version yields
// ErrConflict.
func (db *DB) Save(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: encode state: %w", err)
	}

	var version int64
	err = WithRetry(ctx, retryAttempts, retryBaseDelay, func() error {
		return db.pool.QueryRow(ctx,
			`UPDATE player_states
			 SET state = $3, version = version + 1, updated_at = now()
			 WHERE user_id = $1 AND version = $2
			 RETURNING version`,
			userID, state.Version, data,
		).Scan(&version)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlayerState{}, ErrConflict
	}
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: save state: %w", err)
	}

	out := state.Clone()
	out.Version = version
	return out, nil
}

// Replace overwrites the user's state unconditionally, as on a new game.
func (db *DB) Replace(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: encode state: %w", err)
	}

	var version int64
	err = WithRetry(ctx, retryAttempts, retryBaseDelay, func() error {
		return db.pool.QueryRow(ctx,
			`INSERT INTO player_states (user_id, state, version) VALUES ($1, $2, 1)
			 ON CONFLICT (user_id) DO UPDATE
			 SET state = EXCLUDED.state, version = player_states.version + 1, updated_at = now()
			 RETURNING version`,
			userID, data,
		).Scan(&version)
	})
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("storage: replace state: %w", err)
	}

	out := state.Clone()
	out.Version = version
	return out, nil
}
