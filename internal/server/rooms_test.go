package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/psantanna/webchat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomRegistry_SeedsDefaults(t *testing.T) {
	rr := NewRoomRegistry([]string{"Geral", "Tecnologia", "Jogos"})

	assert.Equal(t, 3, rr.Count(), "expected default rooms to be seeded")
	for _, name := range []string{"Geral", "Tecnologia", "Jogos"} {
		st, ok := rr.Get(name)
		require.Truef(t, ok, "expected default room %q to exist", name)
		assert.True(t, st.IsDefault, "expected room to be marked default")
		assert.Equal(t, systemUserId, st.CreatedBy, "expected default room to be system-created")
		assert.NotEmpty(t, st.Id, "expected default room to have an id")
		assert.Zero(t, st.MemberCount, "expected default room to start empty")
	}
}

func TestRoomRegistry_Create(t *testing.T) {
	rr := NewRoomRegistry(nil)

	st, err := rr.Create("minharoom", "user-1", false, "")
	require.NoError(t, err, "expected creation to succeed")
	assert.Equal(t, "minharoom", st.Name)
	assert.Equal(t, "user-1", st.CreatedBy)
	assert.False(t, st.IsPrivate)
	assert.Zero(t, st.MemberCount, "expected new room to have empty membership")
	assert.NotEmpty(t, st.Id, "expected an opaque room id")

	t.Run("duplicate name fails regardless of privacy", func(t *testing.T) {
		_, err := rr.Create("minharoom", "user-2", true, "secret")
		assert.ErrorIs(t, err, ErrDuplicateRoom)
	})

	t.Run("name length bounds", func(t *testing.T) {
		_, err := rr.Create("a", "user-1", false, "")
		assert.ErrorIs(t, err, ErrInvalidRoomName, "expected single-character name to be rejected")

		_, err = rr.Create(strings.Repeat("a", maxRoomNameLen+1), "user-1", false, "")
		assert.ErrorIs(t, err, ErrInvalidRoomName, "expected over-long name to be rejected")

		_, err = rr.Create(strings.Repeat("a", maxRoomNameLen), "user-1", false, "")
		assert.NoError(t, err, "expected name at the upper bound to be accepted")
	})

	t.Run("name length counts runes, not bytes", func(t *testing.T) {
		_, err := rr.Create(strings.Repeat("ã", maxRoomNameLen), "user-1", false, "")
		assert.NoError(t, err, "expected accented name at the upper bound to be accepted")

		_, err = rr.Create(strings.Repeat("ã", maxRoomNameLen+1), "user-1", false, "")
		assert.ErrorIs(t, err, ErrInvalidRoomName)
	})

	t.Run("room count cap", func(t *testing.T) {
		rr := NewRoomRegistry(nil)
		for i := 0; i < maxActiveRooms; i++ {
			_, err := rr.Create(fmt.Sprintf("room-%d", i), "user-1", false, "")
			require.NoError(t, err)
		}

		_, err := rr.Create("one-too-many", "user-1", false, "")
		assert.ErrorIs(t, err, ErrRoomCapacity)
	})
}

func TestRoomRegistry_JoinLeave(t *testing.T) {
	rr := NewRoomRegistry(nil)
	_, err := rr.Create("sala", "user-1", false, "")
	require.NoError(t, err)

	st, err := rr.Join("sala", "conn-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.MemberCount, "expected member count to track membership")
	assert.True(t, rr.IsMember("sala", "conn-1"))

	st, err = rr.Join("sala", "conn-2", "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.MemberCount)

	members, ok := rr.Members("sala")
	require.True(t, ok)
	assert.Len(t, members, st.MemberCount, "member count must equal the member set size")

	st, err = rr.Leave("sala", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.MemberCount)
	assert.False(t, rr.IsMember("sala", "conn-1"))

	t.Run("join unknown room", func(t *testing.T) {
		_, err := rr.Join("nope", "conn-1", "")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("leave while not a member", func(t *testing.T) {
		_, err := rr.Leave("sala", "conn-99")
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("leave unknown room", func(t *testing.T) {
		_, err := rr.Leave("nope", "conn-1")
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("rejoining is idempotent", func(t *testing.T) {
		before, _ := rr.Get("sala")
		st, err := rr.Join("sala", "conn-2", "")
		assert.NoError(t, err)
		assert.Equal(t, before.MemberCount, st.MemberCount, "expected joining twice not to duplicate membership")
	})
}

func TestRoomRegistry_PrivateRoomPassword(t *testing.T) {
	rr := NewRoomRegistry(nil)
	_, err := rr.Create("Secret", "user-1", true, "xyz")
	require.NoError(t, err)

	_, err = rr.Join("Secret", "conn-1", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword, "expected wrong password to be rejected")

	st, err := rr.Join("Secret", "conn-1", "xyz")
	require.NoError(t, err, "expected matching password to be accepted")
	assert.Equal(t, 1, st.MemberCount)
}

func TestRoomRegistry_RoomFull(t *testing.T) {
	rr := NewRoomRegistry(nil)
	_, err := rr.Create("lotada", "user-1", false, "")
	require.NoError(t, err)

	for i := 0; i < maxRoomMembers; i++ {
		_, err := rr.Join("lotada", fmt.Sprintf("conn-%d", i), "")
		require.NoError(t, err)
	}

	_, err = rr.Join("lotada", "conn-overflow", "")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestRoomRegistry_ListPublic(t *testing.T) {
	rr := NewRoomRegistry([]string{"Geral"})
	_, err := rr.Create("Privada", "user-1", true, "pw")
	require.NoError(t, err)

	infos := rr.ListPublic()
	assert.Len(t, infos, 2, "expected private rooms to be listed, flagged")

	byName := make(map[string]bool)
	for _, info := range infos {
		byName[info.Name] = info.IsPrivate
	}
	assert.False(t, byName["Geral"])
	assert.True(t, byName["Privada"])
}

func TestRoomRegistry_RemoveSparesDefaults(t *testing.T) {
	rr := NewRoomRegistry([]string{"Geral"})
	_, err := rr.Create("temporaria", "user-1", false, "")
	require.NoError(t, err)

	assert.False(t, rr.Remove("Geral"), "expected default room removal to be refused")
	assert.True(t, rr.Remove("temporaria"), "expected non-default room removal to succeed")
	assert.False(t, rr.Remove("temporaria"), "expected removing twice to report absence")

	_, ok := rr.Get("Geral")
	assert.True(t, ok, "expected default room to survive")
}

func TestRoomRegistry_SweepEmpty(t *testing.T) {
	rr := NewRoomRegistry([]string{"Geral"})
	base := time.Now()
	rr.now = func() time.Time { return base }

	_, err := rr.Create("abandonada", "user-1", false, "")
	require.NoError(t, err)
	_, err = rr.Create("ocupada", "user-1", false, "")
	require.NoError(t, err)
	_, err = rr.Join("ocupada", "conn-1", "")
	require.NoError(t, err)

	removed := rr.SweepEmpty(base.Add(5 * time.Minute))
	assert.Equal(t, []string{"abandonada"}, removed, "expected only the idle empty non-default room to be removed")

	_, ok := rr.Get("Geral")
	assert.True(t, ok, "expected default room to survive the sweep even while empty")
	_, ok = rr.Get("ocupada")
	assert.True(t, ok, "expected occupied room to survive the sweep")
}

func TestRoomRegistry_RecordMessage(t *testing.T) {
	rr := NewRoomRegistry(nil)
	_, err := rr.Create("sala", "user-1", false, "")
	require.NoError(t, err)

	st, ok := rr.RecordMessage("sala")
	assert.True(t, ok)
	assert.Equal(t, 1, st.MessageCount)

	st, ok = rr.RecordMessage("sala")
	assert.True(t, ok)
	assert.Equal(t, 2, st.MessageCount, "expected message counter to be monotonic")

	_, ok = rr.RecordMessage("nope")
	assert.False(t, ok)
}

func TestRoomRegistry_Restore(t *testing.T) {
	rr := NewRoomRegistry([]string{"Geral"})

	ok := rr.Restore(database.Room{
		Id:           "room_123_abc",
		Name:         "persistida",
		CreatedBy:    "user-1",
		IsPrivate:    false,
		CreatedAt:    time.Now().Add(-time.Hour),
		MessageCount: 7,
	})
	assert.True(t, ok, "expected persisted room to be restored")

	st, found := rr.Get("persistida")
	require.True(t, found)
	assert.Equal(t, "room_123_abc", st.Id, "expected the stable id to survive reload")
	assert.Equal(t, 7, st.MessageCount)
	assert.Zero(t, st.MemberCount, "expected restored room to start with empty membership")

	assert.False(t, rr.Restore(database.Room{Id: "x", Name: "Geral"}), "expected default room name not to be overwritten")
	assert.False(t, rr.Restore(database.Room{Id: "y", Name: "persistida"}), "expected duplicate restore to be refused")
}
