package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
)

func TestLoadOrCreate(t *testing.T) {
	s := New()
	st, err := s.LoadOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, "u1", st.ID)

	st.Gold = 999
	again, err := s.LoadOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, game.StartingGold, again.Gold, "returned states are copies")
}

func TestSaveConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.LoadOrCreate(ctx, "u1")
	b, _ := s.LoadOrCreate(ctx, "u1")

	a.Gold = 50
	saved, err := s.Save(ctx, "u1", a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	b.Gold = 1
	_, err = s.Save(ctx, "u1", b)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Gold)
}

func TestSaveUnknownUserConflicts(t *testing.T) {
	_, err := New().Save(context.Background(), "ghost", model.PlayerState{Version: 1})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestConcurrentSavesExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	base, _ := s.LoadOrCreate(ctx, "u1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, "u1", base)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, conflicts)
}

func TestReplaceBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.LoadOrCreate(ctx, "u1")
	st, err := s.Replace(ctx, "u1", game.NewPlayer("u1", "Nyx", "rogue"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Version)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateSession(ctx, "u1")
	require.NoError(t, err)

	owner, err := s.GetOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	_, err = s.GetOwner(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.AppendMessages(ctx, id, []model.Message{model.TextMessage(model.RoleUser, "hi")}))
	msgs, err := s.Messages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	assert.ErrorIs(t, s.AppendMessages(ctx, "missing", nil), storage.ErrNotFound)
}
