package store

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is the reference Store implementation: an in-memory map of
// tables, guarded by a single RWMutex so that committed writes are
// visible to readers atomically and a reader can never observe a
// half-applied merge cascade (spec.md §5).
type MemStore struct {
	mu     sync.RWMutex
	writer sync.Mutex // serializes Begin(): single-writer model
	tables map[string]map[int64]Value
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{tables: make(map[string]map[int64]Value)}
}

func (s *MemStore) Get(table string, row int64) (Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tables[table]
	if !ok {
		return Value{}, false, nil
	}
	v, ok := rows[row]
	return v, ok, nil
}

func (s *MemStore) Range(table string, lo, hi int64) ([]RowValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rangeLocked(s.tables, table, lo, hi), nil
}

func rangeLocked(tables map[string]map[int64]Value, table string, lo, hi int64) []RowValue {
	rows, ok := tables[table]
	if !ok {
		return nil
	}
	out := make([]RowValue, 0, len(rows))
	for row, v := range rows {
		if row >= lo && row <= hi {
			out = append(out, RowValue{Row: row, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// Begin acquires the single writer slot and returns a staging Txn. It
// blocks if another Txn is already open, which is exactly the exclusive
// lock spec.md §5 requires around Reg.
func (s *MemStore) Begin() (Txn, error) {
	s.writer.Lock()
	return &memTxn{store: s, pending: make(map[string]map[int64]*pendingWrite)}, nil
}

type pendingWrite struct {
	deleted bool
	value   Value
}

type memTxn struct {
	store     *MemStore
	pending   map[string]map[int64]*pendingWrite
	done      bool
	closeOnce sync.Once
}

func (t *memTxn) ensureTable(table string) map[int64]*pendingWrite {
	m, ok := t.pending[table]
	if !ok {
		m = make(map[int64]*pendingWrite)
		t.pending[table] = m
	}
	return m
}

func (t *memTxn) Get(table string, row int64) (Value, bool, error) {
	if t.done {
		return Value{}, false, fmt.Errorf("store: txn already closed")
	}
	if rows, ok := t.pending[table]; ok {
		if w, ok := rows[row]; ok {
			if w.deleted {
				return Value{}, false, nil
			}
			return w.value, true, nil
		}
	}
	return t.store.Get(table, row)
}

func (t *memTxn) Range(table string, lo, hi int64) ([]RowValue, error) {
	if t.done {
		return nil, fmt.Errorf("store: txn already closed")
	}
	base, err := t.store.Range(table, lo, hi)
	if err != nil {
		return nil, err
	}
	merged := make(map[int64]Value, len(base))
	for _, rv := range base {
		merged[rv.Row] = rv.Value
	}
	for row, w := range t.pending[table] {
		if row < lo || row > hi {
			continue
		}
		if w.deleted {
			delete(merged, row)
			continue
		}
		merged[row] = w.value
	}
	out := make([]RowValue, 0, len(merged))
	for row, v := range merged {
		out = append(out, RowValue{Row: row, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out, nil
}

func (t *memTxn) Put(table string, row int64, v Value) error {
	if t.done {
		return fmt.Errorf("store: txn already closed")
	}
	t.ensureTable(table)[row] = &pendingWrite{value: v}
	return nil
}

func (t *memTxn) Delete(table string, row int64) error {
	if t.done {
		return fmt.Errorf("store: txn already closed")
	}
	t.ensureTable(table)[row] = &pendingWrite{deleted: true}
	return nil
}

func (t *memTxn) Commit() error {
	if t.done {
		return fmt.Errorf("store: txn already closed")
	}
	t.store.mu.Lock()
	for table, rows := range t.pending {
		dst, ok := t.store.tables[table]
		if !ok {
			dst = make(map[int64]Value)
			t.store.tables[table] = dst
		}
		for row, w := range rows {
			if w.deleted {
				delete(dst, row)
				continue
			}
			dst[row] = w.value
		}
	}
	t.store.mu.Unlock()
	t.close()
	return nil
}

func (t *memTxn) Rollback() error {
	if t.done {
		return fmt.Errorf("store: txn already closed")
	}
	t.pending = nil
	t.close()
	return nil
}

func (t *memTxn) close() {
	t.closeOnce.Do(func() {
		t.done = true
		t.store.writer.Unlock()
	})
}
