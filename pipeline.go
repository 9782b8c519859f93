package mysqlcdc

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/neverchanje/chgcap-mysql/cdcerrors"
	"github.com/neverchanje/chgcap-mysql/change"
	"github.com/neverchanje/chgcap-mysql/ddl"
	"github.com/neverchanje/chgcap-mysql/ddl/ast"
	protocol "github.com/neverchanje/chgcap-mysql/protocol"
	"github.com/neverchanje/chgcap-mysql/schema"
	"github.com/neverchanje/chgcap-mysql/txnbuffer"
	"github.com/pingcap/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// sourceContext is the single mutable state owned by the pipeline
// goroutine (spec §3's SourceContext / §5's ownership model).
type sourceContext struct {
	currentGtid           *change.Gtid
	currentBinlogFilename string
	currentBinlogOffset   uint64
	currentQuery          string
	serverID              uint32
	threadID              *uint32
}

func (sc *sourceContext) position() change.Position {
	return change.Position{
		File:     sc.currentBinlogFilename,
		Offset:   sc.currentBinlogOffset,
		ServerID: sc.serverID,
		Gtid:     sc.currentGtid,
	}
}

// pipeline is the central state machine of component F: it pulls
// decoded events from the connection facade, maintains sourceContext,
// routes data changes through the transaction buffer, and resolves
// table schemas via the registry.
type pipeline struct {
	conn     *protocol.Remote
	cfg      Config
	registry *schema.Registry
	txn      *txnbuffer.Buffer
	ctx      sourceContext

	dbFilter    *filterSet
	tableFilter *filterSet

	out chan<- change.Envelope
}

func newPipeline(conn *protocol.Remote, cfg Config, out chan<- change.Envelope) (*pipeline, error) {
	dbFilter, err := newFilterSet(cfg.DatabaseList)
	if err != nil {
		return nil, cdcerrors.Wrap(cdcerrors.ConfigInvalid, err, "compiling database_list")
	}
	tableFilter, err := newFilterSet(cfg.TableList)
	if err != nil {
		return nil, cdcerrors.Wrap(cdcerrors.ConfigInvalid, err, "compiling table_list")
	}
	return &pipeline{
		conn:        conn,
		cfg:         cfg,
		registry:    schema.New(),
		txn:         txnbuffer.New(cfg.TxnBufferCapacity),
		dbFilter:    dbFilter,
		tableFilter: tableFilter,
		out:         out,
	}, nil
}

// filterSet implements spec §6's database_list/table_list: a list of
// regexes, empty meaning "match everything".
type filterSet struct {
	patterns []*regexp.Regexp
}

func newFilterSet(patterns []string) (*filterSet, error) {
	fs := &filterSet{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
		fs.patterns = append(fs.patterns, re)
	}
	return fs, nil
}

func (fs *filterSet) matches(name string) bool {
	if len(fs.patterns) == 0 {
		return true
	}
	for _, re := range fs.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// run pulls events until the connection closes or ctx is cancelled by
// the caller closing the connection (spec §5's cancellation model:
// closing the connection is how a caller cancels the pull loop).
func (p *pipeline) run() error {
	for {
		ev, err := p.conn.NextEvent()
		if err != nil {
			if err == io.EOF {
				return err
			}
			wrapped := cdcerrors.Wrap(cdcerrors.DecodeFailure, err, "reading next binlog event")
			if p.handleFailure(wrapped) {
				return wrapped
			}
			continue
		}
		if err := p.dispatch(ev); err != nil {
			if p.handleFailure(err) {
				return err
			}
		}
	}
}

// handleFailure applies cfg.FailureHandlingMode to a non-fatal error,
// returning true if the pipeline must stop.
func (p *pipeline) handleFailure(err error) bool {
	kind := cdcerrors.Connection
	var ce *cdcerrors.Error
	if asCdcError(err, &ce) {
		kind = ce.Kind
	}
	if kind == cdcerrors.UnsupportedEvent || kind == cdcerrors.PrerequisiteUnmet || kind == cdcerrors.BufferOverflow {
		return true // always fatal, spec §7
	}
	switch p.cfg.FailureHandlingMode {
	case FailureHandlingIgnore:
		return false
	case FailureHandlingWarn:
		log.Warn("dropping event after error", zap.Error(err))
		return false
	case FailureHandlingSkip:
		return false
	default: // FailureHandlingFail
		p.emit(change.Envelope{Err: err})
		return true
	}
}

func asCdcError(err error, target **cdcerrors.Error) bool {
	if ce, ok := err.(*cdcerrors.Error); ok {
		*target = ce
		return true
	}
	return false
}

// dispatch implements spec §4.F's per-event dispatch table.
func (p *pipeline) dispatch(ev protocol.Event) error {
	// position is updated before any emission so records carry the
	// position of the event that produced them (spec §3 invariant).
	p.ctx.currentBinlogOffset = uint64(ev.Header.NextPos)
	p.ctx.serverID = ev.Header.ServerID

	switch data := ev.Data.(type) {
	case protocol.RotateEvent:
		p.ctx.currentBinlogFilename = data.NextBinlog
		p.ctx.currentBinlogOffset = data.Position
		p.registry.OnRotate()
		return nil

	case protocol.HeartbeatEvent:
		log.Debug("heartbeat")
		return nil

	case protocol.GtidEvent:
		g := change.Gtid{SID: data.SID, Seq: data.GNO}
		p.ctx.currentGtid = &g
		return nil

	case protocol.AnonymousGtidEvent:
		g := change.Gtid{SID: data.SID, Seq: data.GNO}
		p.ctx.currentGtid = &g
		return nil

	case protocol.RowsQueryEvent:
		p.ctx.currentQuery = data.Query
		return nil

	case protocol.QueryEvent:
		return p.handleQueryEvent(data)

	case *protocol.TableMapEvent:
		// absorbed into the connection's own table-map cache already.
		return nil

	case protocol.RowsEvent:
		return p.handleRowsEvent(ev.Header.EventType, data)

	case protocol.PartialUpdateRowsEvent:
		return cdcerrors.New(cdcerrors.UnsupportedEvent,
			"partial update rows events are not supported")

	case protocol.XidEvent:
		return p.commitTransaction()

	case protocol.TransactionPayloadEvent:
		return p.handleTransactionPayload(data)

	case protocol.IncidentEvent:
		log.Error("binlog incident", zap.String("message", data.Message))
		return nil

	default:
		return nil // all others: ignore, spec §4.F
	}
}

// handleTransactionPayload decompresses a TransactionPayloadEvent and
// replays the events it carries through the same dispatch path as the
// outer stream (spec §4.F): the compressed transaction's rows, GTIDs
// and XID still flow through the transaction buffer and schema
// registry exactly as if binlog_transaction_compression were off.
func (p *pipeline) handleTransactionPayload(e protocol.TransactionPayloadEvent) error {
	events, err := p.conn.DecodeTransactionPayload(e)
	if err != nil {
		return cdcerrors.Wrap(cdcerrors.DecodeFailure, err, "decompressing transaction payload")
	}
	for _, inner := range events {
		if err := p.dispatch(inner); err != nil {
			return err
		}
	}
	return nil
}

// handleQueryEvent implements spec §4.F's QueryEvent routing.
func (p *pipeline) handleQueryEvent(e protocol.QueryEvent) error {
	text := strings.TrimSpace(e.Query)
	upper := strings.ToUpper(text)

	switch {
	case upper == "BEGIN":
		p.beginTransaction()
		return nil
	case upper == "COMMIT":
		return p.commitTransaction()
	case upper == "ROLLBACK":
		p.rollbackTransaction()
		return nil
	case strings.HasPrefix(upper, "XA "):
		log.Info("ignoring XA transaction statement", zap.String("query", text))
		return nil
	case strings.HasPrefix(upper, "INSERT "), strings.HasPrefix(upper, "UPDATE "), strings.HasPrefix(upper, "DELETE "):
		log.Warn("statement-based replication leaked a DML statement into a QueryEvent; ignoring", zap.String("query", text))
		return nil
	default:
		return p.handleDDL(e.Schema, text)
	}
}

// handleDDL parses text as DDL and, for CREATE TABLE, updates the
// schema registry and emits SchemaChange(Create). ALTER/DROP update
// no finer structure than the SchemaChangeKind itself (spec §4.F).
func (p *pipeline) handleDDL(database, text string) error {
	stmt, err := ddl.Parse(text)
	if err != nil {
		// DDLParse is non-fatal: skip the statement, transaction
		// continues (spec §7).
		log.Warn("unrecognised DDL, skipping", zap.String("query", text), zap.Error(err))
		return nil
	}

	switch s := stmt.(type) {
	case ast.CreateTable:
		tableName := s.Name[len(s.Name)-1].Value
		tbl := schema.FromCreateTable(database, s)
		p.registry.Upsert(database, tableName, tbl)
		return p.emitSchemaChange(database, tableName, change.SchemaCreate)
	case ast.AlterTable:
		tableName := s.Name[len(s.Name)-1].Value
		return p.emitSchemaChange(database, tableName, change.SchemaAlter)
	case ast.DropTable:
		tableName := s.Name[len(s.Name)-1].Value
		p.registry.Drop(database, tableName)
		return p.emitSchemaChange(database, tableName, change.SchemaDrop)
	default:
		return nil
	}
}

func (p *pipeline) emitSchemaChange(database, table string, kind change.SchemaChangeKind) error {
	if !p.cfg.IncludeSchemaChanges {
		return nil
	}
	if !p.dbFilter.matches(database) || !p.tableFilter.matches(table) {
		return nil
	}
	rec := &change.Record{
		TableName:    table,
		DatabaseName: database,
		Position:     p.ctx.position(),
		Data:         change.Data{IsSchema: true, SchemaKind: kind},
	}
	p.emitRecord(rec)
	return nil
}

func (p *pipeline) beginTransaction() {
	tid := p.ctx.serverID // placeholder thread-id source; real value comes from the connection status vars, not modelled here
	p.ctx.threadID = &tid
	p.txn.Open()
}

func (p *pipeline) commitTransaction() error {
	if !p.txn.IsOpen() {
		return nil
	}
	if p.txn.Overflowed() {
		firstUnfit := p.txn.FirstUnfitPosition()
		p.txn.Rollback()
		p.ctx.threadID = nil
		return cdcerrors.New(cdcerrors.BufferOverflow,
			"transaction buffer capacity exceeded at %s:%d; rewind-and-replay is not implemented by this connector build, refusing to emit a partial transaction",
			firstUnfit.File, firstUnfit.Offset)
	}
	drained := p.txn.Commit()
	for _, rec := range drained {
		p.emitRecord(rec)
	}
	p.ctx.threadID = nil
	return nil
}

func (p *pipeline) rollbackTransaction() {
	p.txn.Rollback()
	p.ctx.threadID = nil
}

// handleRowsEvent implements spec §4.F's row decoding contract.
func (p *pipeline) handleRowsEvent(eventType protocol.EventType, e protocol.RowsEvent) error {
	if eventType.IsLegacyV1() {
		return cdcerrors.New(cdcerrors.UnsupportedEvent,
			"Received a V1 rows event, but V1 events are not supported. You are perhaps using an unsupported MySQL version (5.1.15-5.6.x).")
	}

	tme := e.TableMap
	if tme == nil {
		return nil // dummy rows event, nothing to decode
	}
	tbl := p.registry.Lookup(tme.SchemaName, tme.TableName)
	if tbl == nil {
		return cdcerrors.New(cdcerrors.MissingTableMap,
			"no schema registered for table %s.%s", tme.SchemaName, tme.TableName)
	}
	if !p.dbFilter.matches(tme.SchemaName) || !p.tableFilter.matches(tme.TableName) {
		return p.drainRows()
	}

	var rowChanges []change.RowChange
	for {
		values, valuesBeforeUpdate, err := p.conn.NextRow()
		if err != nil {
			break // io.EOF: rows exhausted
		}
		switch {
		case eventType.IsWriteRows():
			if valuesBeforeUpdate != nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "unexpected 'before' in the UpdateRowsEvent")
			}
			if values == nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "'after' is missing in the UpdateRowsEvent")
			}
			rowChanges = append(rowChanges, change.RowChange{Kind: change.Insert, Row: buildRow(e.Columns(), values)})
		case eventType.IsDeleteRows():
			if valuesBeforeUpdate != nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "unexpected 'after' in the UpdateRowsEvent")
			}
			if values == nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "'before' is missing in the UpdateRowsEvent")
			}
			rowChanges = append(rowChanges, change.RowChange{Kind: change.Delete, Row: buildRow(e.Columns(), values)})
		case eventType.IsUpdateRows():
			if valuesBeforeUpdate == nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "'before' is missing in the UpdateRowsEvent")
			}
			if values == nil {
				return cdcerrors.New(cdcerrors.DecodeFailure, "'after' is missing in the UpdateRowsEvent")
			}
			rowChanges = append(rowChanges,
				change.RowChange{Kind: change.Delete, Row: buildRow(e.ColumnsBeforeUpdate(), valuesBeforeUpdate)},
				change.RowChange{Kind: change.Insert, Row: buildRow(e.Columns(), values)})
		default:
			return cdcerrors.New(cdcerrors.UnsupportedEvent,
				"row event is neither a write, update nor delete variant")
		}
	}

	rec := &change.Record{
		TableID:      tme.TableID(),
		TableName:    tme.TableName,
		DatabaseName: tme.SchemaName,
		Position:     p.ctx.position(),
		Data:         change.Data{Rows: rowChanges},
	}

	if p.txn.IsOpen() {
		p.txn.Add(rec, p.ctx.position())
		return nil
	}
	// a row-event outside a transaction is an implicit single-event
	// transaction that commits immediately (spec §4.F state machine).
	p.emitRecord(rec)
	return nil
}

// drainRows consumes and discards the rows of a filtered-out table, so
// the connection's row cursor stays in sync with the wire stream.
func (p *pipeline) drainRows() error {
	for {
		if _, _, err := p.conn.NextRow(); err != nil {
			return nil
		}
	}
}

func buildRow(cols []protocol.Column, values []interface{}) change.Row {
	row := make(change.Row, len(values))
	for i, v := range values {
		colType := "unknown"
		if i < len(cols) {
			colType = cols[i].Type.String()
		}
		row[i] = change.Value{ColumnType: change.FmtColumnType(colType), Val: normalizeValue(v)}
	}
	return row
}

// normalizeValue converts protocol-level value representations into
// the forms change.Value.String() knows how to render, notably the
// protocol's own string-backed Decimal into shopspring/decimal for
// exact, unquoted rendering.
func normalizeValue(v interface{}) interface{} {
	if d, ok := v.(protocol.Decimal); ok {
		if dec, err := decimal.NewFromString(d.String()); err == nil {
			return dec
		}
		return d.String()
	}
	return v
}

func (p *pipeline) emitRecord(rec *change.Record) {
	p.emit(change.Envelope{Record: rec})
}

func (p *pipeline) emit(env change.Envelope) {
	p.out <- env
}
