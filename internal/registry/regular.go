package registry

import (
	"fmt"

	"rbe/internal/crs"
	"rbe/internal/group"
	"rbe/internal/store"
)

const (
	tableKeys      = "keys"
	tablePPRegular = "pp"
	tableAux       = "aux"
	tableAuxCount  = "auxCount"
)

func auxRegularBase(n, k, i int) int64 {
	return int64(k)*int64(n)*int64(n) + int64(i)*int64(n)
}

// latestAuxPredecessor implements the row-finding rule of spec.md §4.D.1
// step 3: prefer row base+cnt-1, fall back to base+cnt-2, else the slot is
// fresh. The fallback is taken whenever row base+cnt-1 is empty, which
// happens on every later registration once the slot's own user has
// registered, since that registration writes no row for its own slot.
func latestAuxPredecessor(txn store.Txn, base, cnt int64) (group.G1, int64, error) {
	if cnt >= 1 {
		if v, ok, err := readG1(txn, tableAux, base+cnt-1); err != nil {
			return group.G1{}, 0, err
		} else if ok {
			return v, base + cnt, nil
		}
	}
	if cnt >= 2 {
		if v, ok, err := readG1(txn, tableAux, base+cnt-2); err != nil {
			return group.G1{}, 0, err
		} else if ok {
			return v, base + cnt - 1, nil
		}
	}
	return group.IdentityG1(), base, nil
}

// RegRegular implements spec.md §4.D.1. The consistency check runs before
// any store access; everything after it happens inside a single
// transaction so a storage failure never leaves a partial registration.
func RegRegular(st store.Store, c *crs.CRS, id int, pk group.G1, chi []*group.G1) error {
	if err := CheckConsistency(c, pk, chi); err != nil {
		return err
	}

	k, idx := c.Block(id)
	n := c.BlockSize()

	txn, err := st.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin: %w: %w", ErrStorageError, err)
	}
	if err := regRegularTxn(txn, c, k, idx, n, id, pk, chi); err != nil {
		txn.Rollback()
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("registry: commit: %w: %w", ErrStorageError, err)
	}
	return nil
}

func regRegularTxn(txn store.Txn, c *crs.CRS, k, idx, n, id int, pk group.G1, chi []*group.G1) error {
	if _, ok, err := txn.Get(tableKeys, int64(id)); err != nil {
		return fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	} else if ok {
		return ErrDuplicateID
	}
	if err := putG1(txn, tableKeys, int64(id), pk); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	com, ok, err := readG1(txn, tablePPRegular, int64(k))
	if err != nil {
		return err
	}
	if !ok {
		com = group.IdentityG1()
	}
	newCom := group.MulG1(com, pk)
	if err := putG1(txn, tablePPRegular, int64(k), newCom); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	cnt, err := readInt(txn, tableAuxCount, int64(k), 0)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		if int64(i) == int64(idx) {
			continue
		}
		base := auxRegularBase(n, k, i)

		prev, newRow, err := latestAuxPredecessor(txn, base, cnt)
		if err != nil {
			return err
		}

		chiVal := group.IdentityG1()
		if chi[i] != nil {
			chiVal = *chi[i]
		}
		newVal := group.MulG1(prev, chiVal)
		if err := putG1(txn, tableAux, newRow, newVal); err != nil {
			return fmt.Errorf("registry: %w", err)
		}
	}

	if err := txn.Put(tableAuxCount, int64(k), store.IntValue(cnt+1)); err != nil {
		return fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	return nil
}

// EncRegular implements spec.md §4.E for the regular variant: a single
// ciphertext against pp[k].
func EncRegular(st store.Store, c *crs.CRS, id int, m group.GT) (Ciphertext, error) {
	k, idx := c.Block(id)
	n := c.BlockSize()

	com, ok, err := readG1(st, tablePPRegular, int64(k))
	if err != nil {
		return Ciphertext{}, err
	}
	if !ok {
		com = group.IdentityG1()
	}

	r, err := group.RandomScalar()
	if err != nil {
		return Ciphertext{}, fmt.Errorf("registry: %w", err)
	}

	h2, ok := c.H2Get(n - 1 - idx)
	if !ok {
		return Ciphertext{}, fmt.Errorf("registry: h2[n-1-idx] unexpectedly empty")
	}
	h1idx, ok := c.H1Get(idx)
	if !ok {
		return Ciphertext{}, fmt.Errorf("registry: h1[idx] unexpectedly empty")
	}

	comPairH2, err := group.Pair(com, h2)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("registry: %w", err)
	}
	h1PairH2, err := group.Pair(h1idx, h2)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("registry: %w", err)
	}

	ct0 := com
	ct1 := group.ExpGT(comPairH2, r)
	ct2 := group.ScalarMulG2(c.G2, r)
	ct3 := group.MulGT(m, group.ExpGT(h1PairH2, r))

	return Ciphertext{CT0: ct0, CT1: ct1, CT2: ct2, CT3: ct3}, nil
}

// UpdRegular implements spec.md §4.F for the regular variant: the identity
// prepended to the auxCount[k] consecutive rows starting at the slot's
// base row.
func UpdRegular(st store.Store, c *crs.CRS, id int) ([]group.G1, error) {
	k, idx := c.Block(id)
	n := c.BlockSize()

	cnt, err := readInt(st, tableAuxCount, int64(k), 0)
	if err != nil {
		return nil, err
	}

	base := auxRegularBase(n, k, idx)
	upds := make([]group.G1, 0, cnt+1)
	upds = append(upds, group.IdentityG1())

	if cnt > 0 {
		rows, err := st.Range(tableAux, base, base+cnt-1)
		if err != nil {
			return nil, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
		byRow := make(map[int64]group.G1, len(rows))
		for _, rv := range rows {
			p, err := group.DeserializeG1(rv.Value.Bytes)
			if err != nil {
				return nil, err
			}
			byRow[rv.Row] = p
		}
		for j := int64(0); j < cnt; j++ {
			if v, ok := byRow[base+j]; ok {
				upds = append(upds, v)
			} else {
				upds = append(upds, group.IdentityG1())
			}
		}
	}
	return upds, nil
}
