// Package registry implements the Key Curator's bookkeeping engine: the
// regular and efficient Reg variants, Merge, Enc, Upd and Dec, all built
// against the abstract store and the immutable CRS.
package registry

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rbe/internal/crs"
	"rbe/internal/group"
	"rbe/internal/store"
)

// Sentinel errors, comparable with errors.Is, for the taxonomy described
// in spec.md §7.
var (
	ErrInconsistentHelpingValues = fmt.Errorf("registry: inconsistent helping values")
	ErrBlockFull                 = fmt.Errorf("registry: block is full")
	ErrDuplicateID               = fmt.Errorf("registry: id already registered")
	ErrMalformedCiphertext       = fmt.Errorf("registry: malformed ciphertext")
	// ErrStorageError tags every error that originates from the Store
	// rather than from validation, so callers can errors.Is against it
	// regardless of which operation triggered it (spec.md §7).
	ErrStorageError = fmt.Errorf("registry: storage error")
)

// Ciphertext is the RBE ciphertext tuple of spec.md §3.
type Ciphertext struct {
	CT0 group.G1
	CT1 group.GT
	CT2 group.G2
	CT3 group.GT
}

// UpdateStatus distinguishes a successful decryption from the GET_UPD
// sentinel path of spec.md §4.G — an ordinary return value, not an error.
type UpdateStatus int

const (
	Decrypted UpdateStatus = iota
	NeedUpdate
)

// Gen produces a fresh (pk, sk, χ) triple for id, per spec.md §4.C. chi[i]
// is nil exactly where the corresponding h1 slot is the CRS hole or out of
// range — the ⊥ sentinel.
func Gen(c *crs.CRS, id int) (pk group.G1, sk group.Scalar, chi []*group.G1, err error) {
	_, idx := c.Block(id)

	sk, err = group.RandomScalar()
	if err != nil {
		return group.G1{}, group.Scalar{}, nil, fmt.Errorf("registry: gen: %w", err)
	}

	h1idx, ok := c.H1Get(idx)
	if !ok {
		return group.G1{}, group.Scalar{}, nil, fmt.Errorf("registry: gen: h1[%d] unexpectedly empty", idx)
	}
	pk = group.ScalarMulG1(h1idx, sk)

	n := c.BlockSize()
	chi = make([]*group.G1, n)
	for j := 0; j < n; j++ {
		i := n - 1 - j
		q := idx + j + 1
		h1q, ok := c.H1Get(q)
		if !ok {
			continue // chi[i] stays ⊥
		}
		v := group.ScalarMulG1(h1q, sk)
		chi[i] = &v
	}
	return pk, sk, chi, nil
}

// CheckConsistency verifies χ against pk via the pairing test of spec.md
// §4.D, running the per-index checks concurrently since each is an
// independent pairing evaluation.
func CheckConsistency(c *crs.CRS, pk group.G1, chi []*group.G1) error {
	n := c.BlockSize()
	h2Last, ok := c.H2Get(n - 1)
	if !ok {
		return fmt.Errorf("registry: h2[n-1] unexpectedly empty")
	}
	e, err := group.Pair(pk, h2Last)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < n-1; i++ {
		i := i
		if i+1 >= len(chi) || chi[i+1] == nil {
			continue
		}
		h2i, ok := c.H2Get(i)
		if !ok {
			continue
		}
		g.Go(func() error {
			lhs, err := group.Pair(*chi[i+1], h2i)
			if err != nil {
				return fmt.Errorf("registry: %w", err)
			}
			if !group.EqualGT(e, lhs) {
				return ErrInconsistentHelpingValues
			}
			return nil
		})
	}
	return g.Wait()
}

// Dec implements spec.md §4.G: it is variant-agnostic, trying every
// (ciphertext, update) pair until the pairing equation holds. A shape that
// can never satisfy the pairing equation — no ciphertexts, no update
// values, or an updIdx below -1 — is ErrMalformedCiphertext. An updIdx at
// or past len(upds) returns NeedUpdate with a nil error, the same as the
// ordinary path where candidates exist but none matched.
func Dec(c *crs.CRS, id int, sk group.Scalar, upds []group.G1, cts []Ciphertext, updIdx int) (group.GT, UpdateStatus, error) {
	if len(cts) == 0 || len(upds) == 0 || updIdx < -1 {
		return group.GT{}, NeedUpdate, ErrMalformedCiphertext
	}

	_, idx := c.Block(id)
	n := c.BlockSize()

	h2, ok := c.H2Get(n - 1 - idx)
	if !ok {
		return group.GT{}, NeedUpdate, fmt.Errorf("registry: h2[n-1-idx] unexpectedly empty")
	}
	h1idx, ok := c.H1Get(idx)
	if !ok {
		return group.GT{}, NeedUpdate, fmt.Errorf("registry: h1[idx] unexpectedly empty")
	}

	candidates := upds
	if updIdx >= 0 {
		if updIdx >= len(upds) {
			return group.GT{}, NeedUpdate, nil
		}
		candidates = []group.G1{upds[updIdx]}
	}

	rhsBase, err := group.Pair(h1idx, h2)
	if err != nil {
		return group.GT{}, NeedUpdate, fmt.Errorf("registry: %w", err)
	}
	rhsFactor := group.ExpGT(rhsBase, sk)
	skInv := group.InverseScalar(sk)

	for _, ct := range cts {
		lhs, err := group.Pair(ct.CT0, h2)
		if err != nil {
			return group.GT{}, NeedUpdate, fmt.Errorf("registry: %w", err)
		}
		for _, u := range candidates {
			uPairG2, err := group.Pair(u, c.G2)
			if err != nil {
				return group.GT{}, NeedUpdate, fmt.Errorf("registry: %w", err)
			}
			rhs := group.MulGT(uPairG2, rhsFactor)
			if !group.EqualGT(lhs, rhs) {
				continue
			}
			uPairCT2, err := group.Pair(u, ct.CT2)
			if err != nil {
				return group.GT{}, NeedUpdate, fmt.Errorf("registry: %w", err)
			}
			x := group.DivGT(ct.CT1, uPairCT2)
			m := group.MulGT(ct.CT3, group.ExpGT(x, skInv))
			return m, Decrypted, nil
		}
	}
	return group.GT{}, NeedUpdate, nil
}

func readInt(r interface {
	Get(table string, row int64) (store.Value, bool, error)
}, table string, row int64, def int64) (int64, error) {
	v, ok, err := r.Get(table, row)
	if err != nil {
		return 0, fmt.Errorf("registry: read %s[%d]: %w: %w", table, row, ErrStorageError, err)
	}
	if !ok {
		return def, nil
	}
	return v.Int, nil
}

func readBool(r interface {
	Get(table string, row int64) (store.Value, bool, error)
}, table string, row int64) (bool, error) {
	v, ok, err := r.Get(table, row)
	if err != nil {
		return false, fmt.Errorf("registry: read %s[%d]: %w: %w", table, row, ErrStorageError, err)
	}
	if !ok {
		return false, nil
	}
	return v.Bool, nil
}

func readG1(r interface {
	Get(table string, row int64) (store.Value, bool, error)
}, table string, row int64) (group.G1, bool, error) {
	v, ok, err := r.Get(table, row)
	if err != nil {
		return group.G1{}, false, fmt.Errorf("registry: read %s[%d]: %w: %w", table, row, ErrStorageError, err)
	}
	if !ok {
		return group.G1{}, false, nil
	}
	p, err := group.DeserializeG1(v.Bytes)
	if err != nil {
		return group.G1{}, false, fmt.Errorf("registry: decode %s[%d]: %w", table, row, err)
	}
	return p, true, nil
}

func putG1(w interface {
	Put(table string, row int64, v store.Value) error
}, table string, row int64, p group.G1) error {
	if err := w.Put(table, row, store.BytesValue(group.SerializeG1(p))); err != nil {
		return fmt.Errorf("registry: write %s[%d]: %w: %w", table, row, ErrStorageError, err)
	}
	return nil
}
