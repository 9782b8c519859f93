package txnbuffer

import (
	"testing"

	"github.com/neverchanje/chgcap-mysql/change"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(tableID uint64) *change.Record {
	return &change.Record{TableID: tableID}
}

func TestBuffer_CommitDrainsInInsertionOrder(t *testing.T) {
	b := New(10)
	b.Open()
	b.Add(rec(1), change.Position{Offset: 1})
	b.Add(rec(2), change.Position{Offset: 2})
	b.Add(rec(3), change.Position{Offset: 3})

	drained := b.Commit()
	require.Len(t, drained, 3)
	assert.Equal(t, uint64(1), drained[0].TableID)
	assert.Equal(t, uint64(2), drained[1].TableID)
	assert.Equal(t, uint64(3), drained[2].TableID)
	assert.False(t, b.IsOpen())
}

func TestBuffer_RollbackDiscards(t *testing.T) {
	b := New(10)
	b.Open()
	b.Add(rec(1), change.Position{Offset: 1})
	b.Rollback()

	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_OverflowRecordsFirstUnfitPosition(t *testing.T) {
	b := New(2)
	b.Open()
	b.Add(rec(1), change.Position{Offset: 1})
	b.Add(rec(2), change.Position{Offset: 2})
	assert.False(t, b.Overflowed())

	overflowPos := change.Position{Offset: 3}
	b.Add(rec(3), overflowPos)
	require.True(t, b.Overflowed())
	assert.Equal(t, overflowPos, b.FirstUnfitPosition())

	// further adds don't move firstUnfit once set.
	b.Add(rec(4), change.Position{Offset: 4})
	assert.Equal(t, overflowPos, b.FirstUnfitPosition())

	// Overflowed() is the signal a caller must check before Commit();
	// this connector's pipeline refuses to emit an overflowed
	// transaction at all rather than draining the in-memory prefix
	// (see TestTransactionAtomicity_OverflowedCommitFailsRatherThanEmitsPartial
	// in the mysqlcdc package), so Commit()'s partial result here is
	// not itself treated as a usable transaction.
	require.True(t, b.Overflowed())
}

func TestBuffer_ZeroCapacityOverflowsImmediately(t *testing.T) {
	b := New(0)
	b.Open()
	b.Add(rec(1), change.Position{Offset: 1})
	assert.True(t, b.Overflowed())
	assert.Equal(t, 0, b.Len())
}
