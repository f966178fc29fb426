package crs

import (
	"testing"

	"rbe/internal/group"
	"rbe/internal/store"
)

func TestSetupProducesConsistentDimensions(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 100)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if c.n*c.n < c.N {
		t.Fatalf("block size %d too small for N %d", c.n, c.N)
	}
	if 1<<uint(c.t) < c.n {
		t.Fatalf("t=%d does not cover block size %d", c.t, c.n)
	}
	if c.B*c.n < c.N {
		t.Fatalf("B=%d blocks of size %d do not cover N=%d", c.B, c.n, c.N)
	}
}

func TestSetupRefusesReuse(t *testing.T) {
	st := store.NewMemStore()
	if _, err := Setup(st, 64); err != nil {
		t.Fatalf("first Setup: %v", err)
	}
	if _, err := Setup(st, 64); err != ErrAlreadyInitialized {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestHoleAtBlockSizeIsEmpty(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 64)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if _, ok := c.H1Get(c.n); ok {
		t.Fatalf("H1[n] should be the empty hole")
	}
	if _, ok := c.H2Get(c.n); ok {
		t.Fatalf("H2[n] should be the empty hole")
	}
}

func TestH1AtPanicsOnHole(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 64)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected H1At to panic on the hole")
		}
	}()
	_ = c.H1At(c.n)
}

// TestCrossPairingInvariant checks e(h1_i, h2_j) == e(h1_j, h2_i) for i != j,
// which holds because both sides equal e(g1,g2)^{z^(i+j+2)} — the algebraic
// invariant from spec.md §3, verifiable without ever learning the trapdoor.
func TestCrossPairingInvariant(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 64)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	i, j := 0, 2
	if i == c.n || j == c.n {
		t.Fatalf("test indices collide with the hole")
	}

	lhs, err := group.Pair(c.H1At(i), c.H2At(j))
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	rhs, err := group.Pair(c.H1At(j), c.H2At(i))
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if !group.EqualGT(lhs, rhs) {
		t.Fatalf("e(h1_i,h2_j) != e(h1_j,h2_i)")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 64)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	loaded, err := Load(st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.N != c.N || loaded.n != c.n || loaded.t != c.t || loaded.B != c.B {
		t.Fatalf("dimensions mismatch after Load: got %+v, want N=%d n=%d t=%d B=%d", loaded, c.N, c.n, c.t, c.B)
	}
	if !group.EqualG1(loaded.G1, c.G1) || !group.EqualG2(loaded.G2, c.G2) {
		t.Fatalf("generators mismatch after Load")
	}
	for i := 0; i < len(c.H1); i++ {
		v1, ok1 := c.H1Get(i)
		lv1, lok1 := loaded.H1Get(i)
		if ok1 != lok1 {
			t.Fatalf("H1[%d] presence mismatch", i)
		}
		if ok1 && !group.EqualG1(v1, lv1) {
			t.Fatalf("H1[%d] value mismatch after Load", i)
		}
	}
}

func TestLoadRejectsEmptyStore(t *testing.T) {
	st := store.NewMemStore()
	if _, err := Load(st); err == nil {
		t.Fatalf("expected error loading CRS from empty store")
	}
}

func TestParamSizesReportsNonZero(t *testing.T) {
	st := store.NewMemStore()
	c, err := Setup(st, 64)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	n, t2, b, bytes := c.ParamSizes()
	if n != c.n || t2 != c.t || b != c.B {
		t.Fatalf("ParamSizes dims mismatch")
	}
	if bytes <= 0 {
		t.Fatalf("expected positive h-vector byte size, got %d", bytes)
	}
}
