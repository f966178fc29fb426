// Package store abstracts the indexed tables of group elements and small
// integers the RBE core reads and writes. It is the only storage contract
// the core depends on — spec.md explicitly keeps persistence out of scope
// ("any durable key-value store is acceptable"); this package defines the
// shape every concrete backend must satisfy and ships one reference
// implementation, MemStore, sufficient to exercise every testable property.
package store

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind tags what a Value holds, so one envelope covers both the group
// elements and the small integers/booleans the store-shape table in
// spec.md §6 calls for.
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindBytes // canonically-encoded G1/G2/GT element
)

// Value is the tagged union stored at a single (table, row).
type Value struct {
	Kind  Kind
	Int   int64
	Bool  bool
	Bytes []byte
}

func IntValue(v int64) Value    { return Value{Kind: KindInt, Int: v} }
func BoolValue(v bool) Value    { return Value{Kind: KindBool, Bool: v} }
func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Marshal/Unmarshal give Value a canonical byte encoding, for backends that
// only know how to store bytes. MemStore keeps Values as they are and does
// not call them.
func (v Value) Marshal() ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode value: %w", err)
	}
	return b, nil
}

func UnmarshalValue(b []byte) (Value, error) {
	var v Value
	if err := cbor.Unmarshal(b, &v); err != nil {
		return Value{}, fmt.Errorf("store: decode value: %w", err)
	}
	return v, nil
}

// RowValue pairs a row id with its value, as returned by Range.
type RowValue struct {
	Row   int64
	Value Value
}

// ErrNotFound names the absent-row condition. Get does not return it: an
// absent row is reported through Get's ok result with a nil error.
var ErrNotFound = errors.New("store: row not found")

// Store is the read side of the abstract storage contract: snapshot reads
// of committed state, safe to call concurrently with an in-flight Txn.
type Store interface {
	// Get fetches the value at (table, row). ok is false if absent.
	Get(table string, row int64) (v Value, ok bool, err error)
	// Range returns every row in [lo, hi] (inclusive) present in table,
	// ordered by row id.
	Range(table string, lo, hi int64) ([]RowValue, error)
	// Begin opens a new write transaction. Only one Txn may be open at a
	// time (single-writer model, spec.md §5); Begin blocks until any
	// prior Txn has committed or rolled back.
	Begin() (Txn, error)
}

// Txn stages a batch of writes (the whole of one Reg call, including its
// merge cascade) for atomic application. Reads through Txn observe the
// writer's own uncommitted writes layered over committed state.
type Txn interface {
	Get(table string, row int64) (v Value, ok bool, err error)
	Range(table string, lo, hi int64) ([]RowValue, error)
	Put(table string, row int64, v Value) error
	Delete(table string, row int64) error
	// Commit applies every staged write atomically and releases the
	// writer lock. Commit never partially applies: either every write in
	// the transaction lands, or (on error) none does.
	Commit() error
	// Rollback discards every staged write and releases the writer lock.
	Rollback() error
}
