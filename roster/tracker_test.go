package roster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicemesh/database/memory"
	"voicemesh/participant"
	"voicemesh/roster"
	"voicemesh/types/message"
)

const testChannel = "channel-1"

func member(num uint64, handle string) message.Member {
	return message.Member{ID: participant.ID{Num: num, Handle: handle}}
}

func TestTracker_ApplySnapshot(t *testing.T) {
	t.Run("given empty store when snapshot arrives then every member is added", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())

		added, removed, err := tracker.ApplySnapshot(testChannel, []message.Member{
			member(5, "bree"), member(9, "cory"),
		})

		assert.NoError(t, err)
		assert.Len(t, added, 2)
		assert.Empty(t, removed)

		stored, err := tracker.Members(testChannel)
		assert.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("given stored roster when snapshot differs then diff is reported", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		_, _, err := tracker.ApplySnapshot(testChannel, []message.Member{
			member(5, "bree"), member(9, "cory"),
		})
		assert.NoError(t, err)

		added, removed, err := tracker.ApplySnapshot(testChannel, []message.Member{
			member(9, "cory"), member(12, "drew"),
		})

		assert.NoError(t, err)
		assert.Len(t, added, 1)
		assert.Equal(t, uint64(12), added[0].ID.Num)
		assert.Len(t, removed, 1)
		assert.Equal(t, uint64(5), removed[0].Num)
	})

	t.Run("given duplicate entries when snapshot arrives then one member is stored", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())

		added, removed, err := tracker.ApplySnapshot(testChannel, []message.Member{
			member(5, "bree"), member(5, "bree"),
		})

		assert.NoError(t, err)
		assert.Len(t, added, 1)
		assert.Empty(t, removed)

		stored, err := tracker.Members(testChannel)
		assert.NoError(t, err)
		assert.Len(t, stored, 1)
	})

	t.Run("given identical snapshot when applied again then no diff is reported", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		snapshot := []message.Member{member(5, "bree"), member(9, "cory")}
		_, _, err := tracker.ApplySnapshot(testChannel, snapshot)
		assert.NoError(t, err)

		added, removed, err := tracker.ApplySnapshot(testChannel, snapshot)

		assert.NoError(t, err)
		assert.Empty(t, added)
		assert.Empty(t, removed)
	})
}

func TestTracker_Add(t *testing.T) {
	t.Run("given empty store when member joins then member is created", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())

		created, err := tracker.Add(testChannel, member(5, "bree"))

		assert.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("given known member when join replays then create is absorbed", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		_, err := tracker.Add(testChannel, member(5, "bree"))
		assert.NoError(t, err)

		created, err := tracker.Add(testChannel, member(5, "bree"))

		assert.NoError(t, err)
		assert.False(t, created)
	})
}

func TestTracker_Remove(t *testing.T) {
	t.Run("given known member when it leaves then member is deleted", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		_, err := tracker.Add(testChannel, member(5, "bree"))
		assert.NoError(t, err)

		assert.NoError(t, tracker.Remove(testChannel, 5))

		stored, err := tracker.Members(testChannel)
		assert.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("given unknown member when it leaves then removal is absorbed", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())

		assert.NoError(t, tracker.Remove(testChannel, 42))
	})
}

func TestTracker_UpdateFlags(t *testing.T) {
	t.Run("given known member when flags change then store reflects them", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		_, err := tracker.Add(testChannel, member(5, "bree"))
		assert.NoError(t, err)

		assert.NoError(t, tracker.UpdateFlags(testChannel, 5, true, false))
		assert.NoError(t, tracker.UpdateSpeaking(testChannel, 5, true))

		stored, err := tracker.Members(testChannel)
		assert.NoError(t, err)
		assert.Len(t, stored, 1)
		assert.True(t, stored[0].Muted)
		assert.False(t, stored[0].Deafened)
		assert.True(t, stored[0].Speaking)
	})
}

func TestTracker_Clear(t *testing.T) {
	t.Run("given stored roster when cleared then store is empty", func(t *testing.T) {
		tracker := roster.NewTracker(memory.New())
		_, _, err := tracker.ApplySnapshot(testChannel, []message.Member{
			member(5, "bree"), member(9, "cory"),
		})
		assert.NoError(t, err)

		assert.NoError(t, tracker.Clear(testChannel))

		stored, err := tracker.Members(testChannel)
		assert.NoError(t, err)
		assert.Empty(t, stored)
	})
}
