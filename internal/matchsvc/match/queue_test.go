package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRejectsNonPositiveStake(t *testing.T) {
	q := NewQueue(1)

	for _, stake := range []int64{0, -50} {
		pairing, err := q.Enqueue(session(1, "alice", "s1"), stake)
		assert.ErrorIs(t, err, ErrInvalidStake)
		assert.Nil(t, pairing)
	}
	assert.Equal(t, 0, q.Waiting())
}

func TestEnqueuePairsEqualStake(t *testing.T) {
	q := NewQueue(1)

	pairing, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)
	assert.Nil(t, pairing, "first player should wait")
	assert.Equal(t, 1, q.Waiting())

	pairing, err = q.Enqueue(session(2, "bob", "s2"), 100)
	require.NoError(t, err)
	require.NotNil(t, pairing, "second player at the same stake should pair")

	assert.Equal(t, int64(100), pairing.Stake)
	assert.Equal(t, int64(1), pairing.Players[0].UserId, "earliest waiter first")
	assert.Equal(t, int64(2), pairing.Players[1].UserId)
	assert.Contains(t, []int{0, 1}, pairing.CreatorIdx)
	assert.Equal(t, 0, q.Waiting())
}

func TestEnqueueIgnoresDifferentStake(t *testing.T) {
	q := NewQueue(1)

	_, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)

	pairing, err := q.Enqueue(session(2, "bob", "s2"), 250)
	require.NoError(t, err)
	assert.Nil(t, pairing)
	assert.Equal(t, 2, q.Waiting())
}

func TestEnqueueMatchesCorrectWaiter(t *testing.T) {
	q := NewQueue(1)

	_, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)
	_, err = q.Enqueue(session(2, "bob", "s2"), 200)
	require.NoError(t, err)

	pairing, err := q.Enqueue(session(3, "carol", "s3"), 200)
	require.NoError(t, err)
	require.NotNil(t, pairing)
	assert.Equal(t, int64(2), pairing.Players[0].UserId)
	assert.Equal(t, 1, q.Waiting(), "only the stake-100 waiter remains")
}

func TestEnqueueNeverSelfMatches(t *testing.T) {
	q := NewQueue(1)

	_, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)

	pairing, err := q.Enqueue(session(1, "alice", "s1b"), 100)
	require.NoError(t, err)
	assert.Nil(t, pairing)
	assert.Equal(t, 1, q.Waiting(), "re-enqueue replaces, never duplicates")
}

func TestEnqueueReplacesExistingEntry(t *testing.T) {
	q := NewQueue(1)

	_, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)
	_, err = q.Enqueue(session(1, "alice", "s1"), 300)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Waiting())

	// the old stake-100 entry must be gone
	pairing, err := q.Enqueue(session(2, "bob", "s2"), 100)
	require.NoError(t, err)
	assert.Nil(t, pairing)

	pairing, err = q.Enqueue(session(3, "carol", "s3"), 300)
	require.NoError(t, err)
	require.NotNil(t, pairing)
	assert.Equal(t, int64(1), pairing.Players[0].UserId)
}

func TestCancelIsIdempotent(t *testing.T) {
	q := NewQueue(1)

	_, err := q.Enqueue(session(1, "alice", "s1"), 100)
	require.NoError(t, err)

	q.Cancel(1)
	assert.Equal(t, 0, q.Waiting())

	q.Cancel(1)
	q.Cancel(1)
	assert.Equal(t, 0, q.Waiting())

	q.Cancel(99) // never enqueued
}

func TestPairingAssignsExactlyOneCreator(t *testing.T) {
	// over many pairings both role outcomes occur, and each pairing has
	// exactly one creator by construction of CreatorIdx
	q := NewQueue(7)
	seen := map[int]bool{}

	for i := 0; i < 50; i++ {
		_, err := q.Enqueue(session(int64(1000+i), "a", "sa"), 100)
		require.NoError(t, err)
		pairing, err := q.Enqueue(session(int64(2000+i), "b", "sb"), 100)
		require.NoError(t, err)
		require.NotNil(t, pairing)
		seen[pairing.CreatorIdx] = true
	}

	assert.True(t, seen[0], "waiter side should sometimes create the room")
	assert.True(t, seen[1], "joiner side should sometimes create the room")
}
