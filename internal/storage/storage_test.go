//go:build integration

package storage_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
	"github.com/ashita-ai/wyrmgate/internal/testutil"
	"github.com/ashita-ai/wyrmgate/migrations"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	ctx := context.Background()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}

	code := m.Run()
	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

func newUser() string { return "user-" + uuid.NewString() }

func TestRunMigrationsIdempotent(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}

func TestLoadOrCreate_Default(t *testing.T) {
	ctx := context.Background()
	user := newUser()

	st, err := testDB.LoadOrCreate(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, user, st.ID)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, game.StartingLocation, st.Location)
	assert.True(t, st.VisitedLocations.Has(game.StartingLocation))
}

func TestLoadOrCreate_ConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	user := newUser()

	var wg sync.WaitGroup
	results := make([]model.PlayerState, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = testDB.LoadOrCreate(ctx, user)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(1), results[i].Version)
	}
}

func TestSave_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	user := newUser()

	st, err := testDB.LoadOrCreate(ctx, user)
	require.NoError(t, err)

	st.Gold = 77
	saved, err := testDB.Save(ctx, user, st)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	// A second writer still holding version 1 loses.
	st.Gold = 1
	_, err = testDB.Save(ctx, user, st)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := testDB.GetState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 77, got.Gold)
	assert.Equal(t, int64(2), got.Version)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	user := newUser()

	_, err := testDB.LoadOrCreate(ctx, user)
	require.NoError(t, err)

	replaced, err := testDB.Replace(ctx, user, game.NewPlayer(user, "Nyx", "rogue"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), replaced.Version)

	got, err := testDB.GetState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Nyx", got.Name)
	assert.Equal(t, "rogue", got.Class)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	user := newUser()

	id, err := testDB.CreateSession(ctx, user)
	require.NoError(t, err)

	owner, err := testDB.GetOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, owner)

	_, err = testDB.GetOwner(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = testDB.GetOwner(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, testDB.AppendMessages(ctx, id, []model.Message{
		model.TextMessage(model.RoleUser, "hello"),
		model.TextMessage(model.RoleAssistant, "well met"),
	}))
	require.NoError(t, testDB.AppendMessages(ctx, id, []model.Message{
		model.TextMessage(model.RoleUser, "again"),
	}))

	msgs, err := testDB.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "again", msgs[2].Text())

	err = testDB.AppendMessages(ctx, uuid.NewString(), []model.Message{model.TextMessage(model.RoleUser, "x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordEvents(t *testing.T) {
	ctx := context.Background()
	err := testDB.RecordEvents(ctx, newUser(), "", []model.GameEvent{
		game.NewEvent(game.EventGold, game.GoldDelta{Amount: 5}),
		{Type: game.EventLevelUp},
	})
	require.NoError(t, err)
}

func TestNotifyRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, testDB.Listen(ctx, storage.ChannelGameEvents))
	require.NoError(t, testDB.Notify(ctx, storage.ChannelGameEvents, `{"hello":"world"}`))

	payload, err := testDB.WaitForNotification(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, payload)
}
