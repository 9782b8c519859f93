// Package schema tracks the current column schema of every table the
// connector has observed, keyed by (database, table) name — not by
// the server-assigned TableId, which is only valid for the lifetime of
// a single binlog file (spec §4.C).
package schema

import "sync"

// Registry maps (database, table) to the table's current schema. A
// Registry is written only by the pipeline goroutine; its map is
// guarded by a mutex, so Lookup may also be called from other
// goroutines (test helpers, say) while the pipeline runs.
type Registry struct {
	mu     sync.RWMutex
	tables map[key]*Table
}

type key struct {
	db    string
	table string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tables: make(map[key]*Table)}
}

// Upsert installs or replaces the schema for (db, table).
func (r *Registry) Upsert(db, table string, schema *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[key{db, table}] = schema
}

// Drop removes the schema for (db, table), if present.
func (r *Registry) Drop(db, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, key{db, table})
}

// Lookup returns the schema for (db, table), or nil if unknown.
func (r *Registry) Lookup(db, table string) *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[key{db, table}]
}

// OnRotate is called when a RotateEvent is processed. The registry
// keys by (db, table) name, not by the server-assigned table id that a
// rotate invalidates, so this is a no-op.
func (r *Registry) OnRotate() {}
