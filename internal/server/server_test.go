package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/psantanna/webchat/internal/database"
	"github.com/psantanna/webchat/internal/stats"
	"github.com/psantanna/webchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewChatServer(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(6)
	su.On("Incr", stats.ActiveRooms).Times(2)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su, []string{"Geral", "Jogos"})
	require.NoError(t, err, "expected no error creating ChatServer")
	require.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, db, cs.db, "expected database repository to be set")
	assert.NotNil(t, cs.connections, "expected connection registry to be initialized")
	assert.NotNil(t, cs.rooms, "expected room registry to be initialized")
	assert.NotNil(t, cs.limiter, "expected message limiter to be initialized")
	assert.NotNil(t, cs.writer, "expected store writer to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.Equal(t, 2, cs.rooms.Count(), "expected default rooms to be seeded")
}

func TestChatServerShutdown_Integration(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, permissiveRepo(), permissiveStats())
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("shutdown closes live connections", func(t *testing.T) {
		cs := newTestChatServer(t, permissiveRepo(), permissiveStats())
		c := newTestClient(t, cs, alice)
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")

		select {
		case <-c.stop:
		default:
			t.Error("expected the client to be stopped during shutdown")
		}
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, permissiveRepo(), permissiveStats())
		// Run never started, so nothing closes cs.done.

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLoadPersistedRooms(t *testing.T) {
	t.Run("restores rooms with their stable ids", func(t *testing.T) {
		db := permissiveRepo()
		db.On("ListRooms").Return([]database.Room{
			{Id: "room_1", Name: "retro", CreatedBy: alice.ID, CreatedAt: time.Now()},
			{Id: "room_2", Name: "Geral", CreatedBy: systemUserId, CreatedAt: time.Now()},
		}, nil)

		cs := newTestChatServer(t, db, permissiveStats(), "Geral")
		cs.LoadPersistedRooms()

		st, ok := cs.rooms.Get("retro")
		require.True(t, ok, "expected the persisted room to be restored")
		assert.Equal(t, "room_1", st.Id)
		assert.Zero(t, st.MemberCount, "expected restored rooms to start empty")

		// The seeded default keeps its in-memory identity.
		st, ok = cs.rooms.Get("Geral")
		require.True(t, ok)
		assert.NotEqual(t, "room_2", st.Id)
	})

	t.Run("store failure is not fatal", func(t *testing.T) {
		db := permissiveRepo()
		db.On("ListRooms").Return(nil, errors.New("connection refused"))

		cs := newTestChatServer(t, db, permissiveStats(), "Geral")
		cs.LoadPersistedRooms()

		assert.Equal(t, 1, cs.rooms.Count(), "expected only the default room")
	})
}
