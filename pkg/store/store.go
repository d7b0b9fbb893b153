package store

import (
	"fmt"
	"sync"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
)

// Predicate tests whether a row matches a compiled filter set.
type Predicate func(Row) bool

// Table is an ordered sequence of rows, insertion order preserved.
type Table struct {
	Rows []Row
}

// Store maps qualified "schema.table" names to tables. Tables are created
// lazily on first write and never auto-deleted. A single coarse mutex guards
// all mutation; operations run to completion before the next begins, so a
// reader always observes fully-applied prior writes.
//
// A Store is owned by one mock backend instance: create it with New, clear it
// with Reset between test cases, and drop it at teardown. It is deliberately
// not a package-level singleton so independent mock instances can coexist.
type Store struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// Qualify builds the qualified table name used as the store key.
func Qualify(schema, table string) string {
	return fmt.Sprintf("%s.%s", schema, table)
}

func (s *Store) table(schema, table string) *Table {
	key := Qualify(schema, table)
	t, ok := s.tables[key]
	if !ok {
		t = &Table{}
		s.tables[key] = t
	}
	return t
}

// Insert appends one or more rows to schema.table, creating the table if
// absent, and returns the inserted rows.
func (s *Store) Insert(schema, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, httputil.Validation("insert requires at least one row")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(schema, table)
	t.Rows = append(t.Rows, rows...)
	return rows, nil
}

// Update merges patch fields into every row matching pred, in place, so any
// caller holding a prior reference to a row observes the mutation. Zero
// matching rows is reported as not found; this mirrors the emulated backend,
// where delete on zero matches is an empty success but update is not.
func (s *Store) Update(schema, table string, pred Predicate, patch Row) ([]Row, error) {
	if len(patch) == 0 {
		return nil, httputil.Validation("update requires a patch payload")
	}
	if pred == nil {
		return nil, httputil.Validation("update requires at least one filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(schema, table)
	var updated []Row
	for _, row := range t.Rows {
		if !pred(row) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		updated = append(updated, row)
	}
	if len(updated) == 0 {
		return nil, httputil.NotFound("no rows matched update on %s", Qualify(schema, table))
	}
	return updated, nil
}

// Upsert inserts rows, except that a row whose "id" matches an existing row
// is merged onto that row instead of appended. The identity key is fixed.
func (s *Store) Upsert(schema, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, httputil.Validation("upsert requires at least one row")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(schema, table)
	var affected []Row
	for _, row := range rows {
		existing := findByID(t, row["id"])
		if existing == nil {
			t.Rows = append(t.Rows, row)
			affected = append(affected, row)
			continue
		}
		for k, v := range row {
			existing[k] = v
		}
		affected = append(affected, existing)
	}
	return affected, nil
}

// Delete removes and returns every row matching pred. A predicate is
// required: deleting a whole table must be expressed as an explicit filter,
// never as an omitted one.
func (s *Store) Delete(schema, table string, pred Predicate) ([]Row, error) {
	if pred == nil {
		return nil, httputil.Validation("delete requires at least one filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(schema, table)
	var deleted, kept []Row
	for _, row := range t.Rows {
		if pred(row) {
			deleted = append(deleted, row)
		} else {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return deleted, nil
}

// Snapshot returns a deep copy of schema.table for read pipelines, so that
// projection and relation narrowing never corrupt stored rows.
func (s *Store) Snapshot(schema, table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[Qualify(schema, table)]
	if !ok {
		return nil
	}
	rows := make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = CloneRow(row)
	}
	return rows
}

// Len returns the number of rows currently in schema.table.
func (s *Store) Len(schema, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[Qualify(schema, table)]
	if !ok {
		return 0
	}
	return len(t.Rows)
}

// Tables returns the qualified names of all tables in the store.
func (s *Store) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// Reset drops all tables. Used between test cases.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*Table)
}

func findByID(t *Table, id any) Row {
	if id == nil {
		return nil
	}
	want := Stringify(id)
	for _, row := range t.Rows {
		if existing, ok := row["id"]; ok && Stringify(existing) == want {
			return row
		}
	}
	return nil
}
