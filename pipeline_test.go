package mysqlcdc

import (
	"testing"

	"github.com/neverchanje/chgcap-mysql/cdcerrors"
	"github.com/neverchanje/chgcap-mysql/change"
	protocol "github.com/neverchanje/chgcap-mysql/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg Config) (*pipeline, chan change.Envelope) {
	t.Helper()
	out := make(chan change.Envelope, 64)
	pl, err := newPipeline(nil, cfg, out)
	require.NoError(t, err)
	return pl, out
}

func TestFilterSet_EmptyMatchesEverything(t *testing.T) {
	fs, err := newFilterSet(nil)
	require.NoError(t, err)
	assert.True(t, fs.matches("anything"))
}

func TestFilterSet_RegexFiltering(t *testing.T) {
	fs, err := newFilterSet([]string{"^inventory_.*$"})
	require.NoError(t, err)
	assert.True(t, fs.matches("inventory_products"))
	assert.False(t, fs.matches("other_db"))
}

func TestHandleDDL_CreateTableUpdatesRegistryAndEmits(t *testing.T) {
	pl, out := newTestPipeline(t, Config{IncludeSchemaChanges: true, TxnBufferCapacity: 10})

	err := pl.handleDDL("mydb", `CREATE TABLE t1 (id INT PRIMARY KEY, v VARCHAR(10));`)
	require.NoError(t, err)

	tbl := pl.registry.Lookup("mydb", "t1")
	require.NotNil(t, tbl)
	assert.Equal(t, "t1", tbl.Name)

	select {
	case env := <-out:
		require.NotNil(t, env.Record)
		assert.True(t, env.Record.Data.IsSchema)
		assert.Equal(t, change.SchemaCreate, env.Record.Data.SchemaKind)
		assert.Equal(t, "t1", env.Record.TableName)
	default:
		t.Fatal("expected a schema-change record")
	}
}

func TestHandleDDL_SchemaChangesSuppressedWhenDisabled(t *testing.T) {
	pl, out := newTestPipeline(t, Config{IncludeSchemaChanges: false, TxnBufferCapacity: 10})

	err := pl.handleDDL("mydb", `CREATE TABLE t1 (id INT);`)
	require.NoError(t, err)

	// registry is still updated even though no record is emitted.
	assert.NotNil(t, pl.registry.Lookup("mydb", "t1"))
	select {
	case env := <-out:
		t.Fatalf("expected no record, got %+v", env)
	default:
	}
}

func TestHandleDDL_DropRemovesFromRegistry(t *testing.T) {
	pl, _ := newTestPipeline(t, Config{IncludeSchemaChanges: false, TxnBufferCapacity: 10})

	require.NoError(t, pl.handleDDL("mydb", `CREATE TABLE t1 (id INT);`))
	require.NotNil(t, pl.registry.Lookup("mydb", "t1"))

	require.NoError(t, pl.handleDDL("mydb", `DROP TABLE t1;`))
	assert.Nil(t, pl.registry.Lookup("mydb", "t1"))
}

func TestHandleDDL_UnrecognisedDDLIsNonFatal(t *testing.T) {
	pl, _ := newTestPipeline(t, Config{TxnBufferCapacity: 10})
	err := pl.handleDDL("mydb", `WEIRD STATEMENT HERE;`)
	assert.NoError(t, err)
}

func TestHandleQueryEvent_StatementBasedDMLIsIgnored(t *testing.T) {
	pl, out := newTestPipeline(t, Config{TxnBufferCapacity: 10})
	err := pl.handleQueryEvent(protocol.QueryEvent{Query: "INSERT INTO t1 VALUES (1)"})
	require.NoError(t, err)
	select {
	case env := <-out:
		t.Fatalf("expected no record, got %+v", env)
	default:
	}
}

func TestHandleQueryEvent_XAIsIgnored(t *testing.T) {
	pl, _ := newTestPipeline(t, Config{TxnBufferCapacity: 10})
	err := pl.handleQueryEvent(protocol.QueryEvent{Query: "XA START 'x'"})
	assert.NoError(t, err)
}

func TestTransactionAtomicity_CommitFlushesAllBufferedRecords(t *testing.T) {
	pl, out := newTestPipeline(t, Config{TxnBufferCapacity: 10})

	pl.beginTransaction()
	require.True(t, pl.txn.IsOpen())
	pl.txn.Add(&change.Record{TableName: "t1"}, change.Position{Offset: 1})
	pl.txn.Add(&change.Record{TableName: "t1"}, change.Position{Offset: 2})

	require.NoError(t, pl.commitTransaction())
	assert.False(t, pl.txn.IsOpen())

	close(out)
	var got []change.Envelope
	for env := range out {
		got = append(got, env)
	}
	assert.Len(t, got, 2)
}

func TestTransactionAtomicity_OverflowedCommitFailsRatherThanEmitsPartial(t *testing.T) {
	pl, out := newTestPipeline(t, Config{TxnBufferCapacity: 1})

	pl.beginTransaction()
	pl.txn.Add(&change.Record{TableName: "t1"}, change.Position{Offset: 1})
	pl.txn.Add(&change.Record{TableName: "t1"}, change.Position{Offset: 2}) // overflows capacity 1

	err := pl.commitTransaction()
	require.Error(t, err)
	var ce *cdcerrors.Error
	require.True(t, asCdcError(err, &ce))
	assert.Equal(t, cdcerrors.BufferOverflow, ce.Kind)
	assert.False(t, pl.txn.IsOpen())

	close(out)
	var got []change.Envelope
	for env := range out {
		got = append(got, env)
	}
	assert.Empty(t, got, "an overflowed transaction must never emit a partial record set")
}

func TestTransactionAtomicity_RollbackEmitsNothing(t *testing.T) {
	pl, out := newTestPipeline(t, Config{TxnBufferCapacity: 10})

	pl.beginTransaction()
	pl.txn.Add(&change.Record{TableName: "t1"}, change.Position{Offset: 1})
	pl.rollbackTransaction()

	close(out)
	var got []change.Envelope
	for env := range out {
		got = append(got, env)
	}
	assert.Empty(t, got)
}
