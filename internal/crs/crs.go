// Package crs builds and loads the RBE common reference string: the
// system parameters N, n, t, the two generators, and the h-vector with its
// deliberate hole at index n (spec.md §3/§4.B).
package crs

import (
	"fmt"
	"math"

	"github.com/blang/semver/v4"

	"rbe/internal/group"
	"rbe/internal/store"
)

// SchemaVersion is written once by Setup and checked by Load, so a store
// built by an incompatible core version is rejected rather than silently
// misread.
var SchemaVersion = semver.MustParse("1.0.0")

const crsTable = "crs"

// Row ids within the crs table. rowVersion is negative so it can never
// collide with the h-vector rows, which are all >= 3.
const (
	rowN       int64 = 0
	rowG1      int64 = 1
	rowG2      int64 = 2
	rowVersion int64 = -1
)

func h1Row(i int) int64 { return int64(2*i + 3) }
func h2Row(i int) int64 { return int64(2*i + 4) }

// CRS is immutable after Setup. H1[i]/H2[i] are nil exactly at i == n — the
// deliberate hole described in spec.md §3; H1At/H2At panic via emptySlot
// on it, since dereferencing it is a programmer error, not a recoverable
// condition.
type CRS struct {
	N int // maximum number of users
	n int // block size, ceil(sqrt(N))
	t int // ceil(log2(n))
	B int // number of blocks, ceil(N/n)

	G1 group.G1
	G2 group.G2

	H1 []*group.G1 // length 2n, H1[n] == nil
	H2 []*group.G2 // length 2n, H2[n] == nil
}

func (c *CRS) N_() int        { return c.N }
func (c *CRS) BlockSize() int { return c.n }
func (c *CRS) Levels() int    { return c.t }
func (c *CRS) Blocks() int    { return c.B }

// Block returns the block index and in-block slot for an identity.
func (c *CRS) Block(id int) (k, idx int) { return id / c.n, id % c.n }

// emptySlot is the panic raised by H1At/H2At on the hole at index n. It is
// a programmer error (spec.md §9): every caller either knows it cannot
// land on n, or must check H1[i] == nil itself first.
func emptySlot(which string, i int) {
	panic(fmt.Sprintf("crs: %s[%d] is the deliberate empty hole", which, i))
}

// H1At returns h1_i, panicking if i is the hole or out of range.
func (c *CRS) H1At(i int) group.G1 {
	if i < 0 || i >= len(c.H1) || c.H1[i] == nil {
		emptySlot("h1", i)
	}
	return *c.H1[i]
}

// H2At returns h2_i, panicking if i is the hole or out of range.
func (c *CRS) H2At(i int) group.G2 {
	if i < 0 || i >= len(c.H2) || c.H2[i] == nil {
		emptySlot("h2", i)
	}
	return *c.H2[i]
}

// H1Get returns h1_i and whether it exists (false at the hole or out of
// range), for callers that must tolerate the hole.
func (c *CRS) H1Get(i int) (group.G1, bool) {
	if i < 0 || i >= len(c.H1) || c.H1[i] == nil {
		return group.G1{}, false
	}
	return *c.H1[i], true
}

func (c *CRS) H2Get(i int) (group.G2, bool) {
	if i < 0 || i >= len(c.H2) || c.H2[i] == nil {
		return group.G2{}, false
	}
	return *c.H2[i], true
}

func dims(n int) (t int, b2 int) {
	t = int(math.Ceil(math.Log2(float64(n))))
	return t, 2 * n
}

// ErrAlreadyInitialized is returned by Setup when the store already holds a
// CRS; Setup is refuse-on-reuse, never a silent reset (spec.md §4.B).
var ErrAlreadyInitialized = fmt.Errorf("crs: store already initialized")

// Setup samples a fresh trapdoor z, derives the h-vector, and persists the
// CRS to st. The trapdoor is a local variable that goes out of scope at
// the end of this call and is never written to the store or returned.
func Setup(st store.Store, n int) (*CRS, error) {
	if _, ok, err := st.Get(crsTable, rowN); err != nil {
		return nil, fmt.Errorf("crs: probe existing store: %w", err)
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if n <= 0 {
		return nil, fmt.Errorf("crs: N must be positive, got %d", n)
	}

	blockSize := int(math.Ceil(math.Sqrt(float64(n))))
	t, span := dims(blockSize)
	blocks := int(math.Ceil(float64(n) / float64(blockSize)))

	g1, g2 := group.Generators()
	z, err := group.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("crs: sample trapdoor: %w", err)
	}

	h1 := make([]*group.G1, span)
	h2 := make([]*group.G2, span)
	zPow := z
	for i := 0; i < span; i++ {
		// zPow == z^(i+1) on entry to iteration i.
		if i != blockSize {
			v1 := group.ScalarMulG1(g1, zPow)
			v2 := group.ScalarMulG2(g2, zPow)
			h1[i] = &v1
			h2[i] = &v2
		}
		zPow.Mul(&zPow, &z)
	}
	// z (and zPow) fall out of scope here; nothing above retains them.

	c := &CRS{N: n, n: blockSize, t: t, B: blocks, G1: g1, G2: g2, H1: h1, H2: h2}

	txn, err := st.Begin()
	if err != nil {
		return nil, fmt.Errorf("crs: %w", err)
	}
	if err := writeCRS(txn, c); err != nil {
		txn.Rollback()
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("crs: commit: %w", err)
	}
	return c, nil
}

func writeCRS(txn store.Txn, c *CRS) error {
	if err := txn.Put(crsTable, rowVersion, store.BytesValue([]byte(SchemaVersion.String()))); err != nil {
		return err
	}
	if err := txn.Put(crsTable, rowN, store.IntValue(int64(c.N))); err != nil {
		return err
	}
	if err := txn.Put(crsTable, rowG1, store.BytesValue(group.SerializeG1(c.G1))); err != nil {
		return err
	}
	if err := txn.Put(crsTable, rowG2, store.BytesValue(group.SerializeG2(c.G2))); err != nil {
		return err
	}
	for i := range c.H1 {
		if c.H1[i] != nil {
			if err := txn.Put(crsTable, h1Row(i), store.BytesValue(group.SerializeG1(*c.H1[i]))); err != nil {
				return err
			}
		}
		if c.H2[i] != nil {
			if err := txn.Put(crsTable, h2Row(i), store.BytesValue(group.SerializeG2(*c.H2[i]))); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads back a CRS previously written by Setup, rejecting a store
// written by an incompatible schema version.
func Load(st store.Store) (*CRS, error) {
	verRow, ok, err := st.Get(crsTable, rowVersion)
	if err != nil {
		return nil, fmt.Errorf("crs: read version: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("crs: store has no CRS")
	}
	ver, err := semver.Parse(string(verRow.Bytes))
	if err != nil {
		return nil, fmt.Errorf("crs: unreadable schema version: %w", err)
	}
	if !ver.EQ(SchemaVersion) {
		return nil, fmt.Errorf("crs: schema version mismatch: store has %s, core is %s", ver, SchemaVersion)
	}

	nRow, ok, err := st.Get(crsTable, rowN)
	if err != nil || !ok {
		return nil, fmt.Errorf("crs: read N: %w", err)
	}
	n := int(nRow.Int)
	blockSize := int(math.Ceil(math.Sqrt(float64(n))))
	t, span := dims(blockSize)
	blocks := int(math.Ceil(float64(n) / float64(blockSize)))

	g1Row, ok, err := st.Get(crsTable, rowG1)
	if err != nil || !ok {
		return nil, fmt.Errorf("crs: read g1: %w", err)
	}
	g1, err := group.DeserializeG1(g1Row.Bytes)
	if err != nil {
		return nil, err
	}
	g2Row, ok, err := st.Get(crsTable, rowG2)
	if err != nil || !ok {
		return nil, fmt.Errorf("crs: read g2: %w", err)
	}
	g2, err := group.DeserializeG2(g2Row.Bytes)
	if err != nil {
		return nil, err
	}

	h1 := make([]*group.G1, span)
	h2 := make([]*group.G2, span)
	for i := 0; i < span; i++ {
		if i == blockSize {
			continue
		}
		r1, ok, err := st.Get(crsTable, h1Row(i))
		if err != nil {
			return nil, err
		}
		if ok {
			v, err := group.DeserializeG1(r1.Bytes)
			if err != nil {
				return nil, err
			}
			h1[i] = &v
		}
		r2, ok, err := st.Get(crsTable, h2Row(i))
		if err != nil {
			return nil, err
		}
		if ok {
			v, err := group.DeserializeG2(r2.Bytes)
			if err != nil {
				return nil, err
			}
			h2[i] = &v
		}
	}

	return &CRS{N: n, n: blockSize, t: t, B: blocks, G1: g1, G2: g2, H1: h1, H2: h2}, nil
}

// ParamSizes reports n, t, B and the serialized size (bytes) of the h
// vector for this CRS — the Go-native equivalent of
// original_source/bench/param_sizes.py, without its CSV output.
func (c *CRS) ParamSizes() (n, t, blocks, hVectorBytes int) {
	g1Size := len(group.SerializeG1(c.G1))
	g2Size := len(group.SerializeG2(c.G2))
	count := 0
	for i := range c.H1 {
		if c.H1[i] != nil {
			count++
		}
	}
	return c.n, c.t, c.B, count * (g1Size + g2Size)
}
