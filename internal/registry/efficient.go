package registry

import (
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	"rbe/internal/crs"
	"rbe/internal/group"
	"rbe/internal/store"
)

const (
	tablePPBlockCount = "pp_block_count"
	tablePPComCount   = "pp_com_count"
	tableLLog         = "L"
	tableLUpdNum      = "L_upd_num"
)

func ppTable(level int) string          { return fmt.Sprintf("pp_%d", level) }
func auxTable(level int) string         { return fmt.Sprintf("aux_%d", level) }
func auxRegCountTable(level int) string { return fmt.Sprintf("aux_reg_count_%d", level) }

// occupiedLevels renders count's binary representation as a bitset; popcount
// uses its Count() to find the next level a registration ranks into (the
// level index equals the number of set bits below it, spec.md §4.D.2 step
// 1). It is NOT a map of which pp_ℓ levels currently hold a commitment —
// Merge always folds a level's commitment down into level-1 and deletes the
// level above (see Merge below), so occupancy packs into the contiguous
// range {0, ..., popcount(count)-1}, not count's individual set-bit
// positions. See DESIGN.md's Open Questions for the spec.md §3/§8
// discrepancy this causes.
func occupiedLevels(count int) *bitset.BitSet {
	bs := bitset.New(uint(bits.Len(uint(count)) + 1))
	for l := 0; count > 0; l++ {
		if count&1 == 1 {
			bs.Set(uint(l))
		}
		count >>= 1
	}
	return bs
}

func popcount(count int) int {
	return int(occupiedLevels(count).Count())
}

// RegEfficient implements spec.md §4.D.2: writes the commitment at the
// target level, initialises that level's aux slots, then cascades Merge
// while adjacent levels hold equal-sized groups. It returns the depth of
// the merge cascade triggered by this registration (0 if none ran).
func RegEfficient(st store.Store, c *crs.CRS, id int, pk group.G1, chi []*group.G1) (int, error) {
	if err := CheckConsistency(c, pk, chi); err != nil {
		return 0, err
	}

	k, _ := c.Block(id)
	n := c.BlockSize()

	txn, err := st.Begin()
	if err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	depth, err := regEfficientTxn(txn, c, k, n, id, pk, chi)
	if err != nil {
		txn.Rollback()
		return 0, err
	}
	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("registry: commit: %w: %w", ErrStorageError, err)
	}
	return depth, nil
}

func regEfficientTxn(txn store.Txn, c *crs.CRS, k, n, id int, pk group.G1, chi []*group.G1) (int, error) {
	if _, ok, err := txn.Get(tableKeys, int64(id)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	} else if ok {
		return 0, ErrDuplicateID
	}

	b, err := readInt(txn, tablePPBlockCount, int64(k), 0)
	if err != nil {
		return 0, err
	}
	if int(b) >= n {
		return 0, ErrBlockFull
	}

	if err := putG1(txn, tableKeys, int64(id), pk); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}

	level := popcount(int(b))
	if err := putG1(txn, ppTable(level), int64(k), pk); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	if err := txn.Put(tablePPBlockCount, int64(k), store.IntValue(b+1)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	comCountRow := int64(k*n + level)
	if err := txn.Put(tablePPComCount, comCountRow, store.IntValue(1)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}

	for i := 0; i < n; i++ {
		row := int64(k*n + i)
		val := group.IdentityG1()
		if row != int64(id) && chi[i] != nil {
			val = *chi[i]
		}
		if err := putG1(txn, auxTable(level), row, val); err != nil {
			return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
	}
	if err := txn.Put(auxRegCountTable(level), int64(id), store.BoolValue(true)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}

	if level > 0 {
		prevCount, err := readInt(txn, tablePPComCount, int64(k*n+level-1), 0)
		if err != nil {
			return 0, err
		}
		if prevCount == 1 {
			depth, err := Merge(txn, c, k, level)
			if err != nil {
				return 0, err
			}
			return depth, nil
		}
	}
	return 0, nil
}

// Merge implements spec.md §4.D.3, recursing down while the cascade
// condition keeps holding. It returns the number of levels actually
// folded together, so callers can report how deep a cascade ran.
func Merge(txn store.Txn, c *crs.CRS, k, level int) (int, error) {
	if level == 0 {
		return 0, nil
	}
	n := c.BlockSize()

	countLast, err := readInt(txn, tablePPComCount, int64(k*n+level), 0)
	if err != nil {
		return 0, err
	}
	countPrev, err := readInt(txn, tablePPComCount, int64(k*n+level-1), 0)
	if err != nil {
		return 0, err
	}
	if countLast != countPrev {
		return 0, nil
	}

	comLast, okLast, err := readG1(txn, ppTable(level), int64(k))
	if err != nil {
		return 0, err
	}
	comPrev, okPrev, err := readG1(txn, ppTable(level-1), int64(k))
	if err != nil {
		return 0, err
	}
	merged := group.IdentityG1()
	switch {
	case okPrev && okLast:
		merged = group.MulG1(comPrev, comLast)
	case okPrev:
		merged = comPrev
	case okLast:
		merged = comLast
	}
	if err := putG1(txn, ppTable(level-1), int64(k), merged); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	if err := txn.Delete(ppTable(level), int64(k)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	if err := txn.Put(tablePPComCount, int64(k*n+level-1), store.IntValue(countLast+countPrev)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}
	if err := txn.Put(tablePPComCount, int64(k*n+level), store.IntValue(0)); err != nil {
		return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
	}

	for i := 0; i < n; i++ {
		row := int64(k*n + i)

		a, okA, err := readG1(txn, auxTable(level-1), row)
		if err != nil {
			return 0, err
		}
		if !okA {
			a = group.IdentityG1()
		}
		b, okB, err := readG1(txn, auxTable(level), row)
		if err != nil {
			return 0, err
		}
		if !okB {
			b = group.IdentityG1()
		}
		p, err := readBool(txn, auxRegCountTable(level-1), row)
		if err != nil {
			return 0, err
		}
		q, err := readBool(txn, auxRegCountTable(level), row)
		if err != nil {
			return 0, err
		}

		if p {
			updIdx, err := readInt(txn, tableLUpdNum, row, 0)
			if err != nil {
				return 0, err
			}
			lRow := updIdx*int64(c.N) + row
			if err := putG1(txn, tableLLog, lRow, a); err != nil {
				return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
			}
			if err := txn.Put(tableLUpdNum, row, store.IntValue(updIdx+1)); err != nil {
				return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
			}
		}

		if err := putG1(txn, auxTable(level-1), row, group.MulG1(a, b)); err != nil {
			return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
		if err := txn.Put(auxRegCountTable(level-1), row, store.BoolValue(p || q)); err != nil {
			return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
		if err := txn.Delete(auxTable(level), row); err != nil {
			return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
		if err := txn.Put(auxRegCountTable(level), row, store.BoolValue(false)); err != nil {
			return 0, fmt.Errorf("registry: %w: %w", ErrStorageError, err)
		}
	}

	rest, err := Merge(txn, c, k, level-1)
	if err != nil {
		return 0, err
	}
	return rest + 1, nil
}

// EncEfficient implements spec.md §4.E for the efficient variant: one
// ciphertext per merge level, empty levels treated as the identity.
func EncEfficient(st store.Store, c *crs.CRS, id int, m group.GT) ([]Ciphertext, error) {
	k, idx := c.Block(id)
	n := c.BlockSize()
	t := c.Levels()

	h2, ok := c.H2Get(n - 1 - idx)
	if !ok {
		return nil, fmt.Errorf("registry: h2[n-1-idx] unexpectedly empty")
	}
	h1idx, ok := c.H1Get(idx)
	if !ok {
		return nil, fmt.Errorf("registry: h1[idx] unexpectedly empty")
	}
	h1PairH2, err := group.Pair(h1idx, h2)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r, err := group.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	h1PairH2Exp := group.ExpGT(h1PairH2, r)

	cts := make([]Ciphertext, 0, t)
	for level := 0; level < t; level++ {
		com, ok, err := readG1(st, ppTable(level), int64(k))
		if err != nil {
			return nil, err
		}
		if !ok {
			com = group.IdentityG1()
		}
		comPairH2, err := group.Pair(com, h2)
		if err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}

		cts = append(cts, Ciphertext{
			CT0: com,
			CT1: group.ExpGT(comPairH2, r),
			CT2: group.ScalarMulG2(c.G2, r),
			CT3: group.MulGT(m, h1PairH2Exp),
		})
	}
	return cts, nil
}

// UpdEfficient implements spec.md §4.F for the efficient variant: a
// length-2t vector, the L-log half followed by the still-live level half.
func UpdEfficient(st store.Store, c *crs.CRS, id int) ([]group.G1, error) {
	k, idx := c.Block(id)
	n := c.BlockSize()
	t := c.Levels()
	row := int64(k*n + idx)

	upds := make([]group.G1, 2*t)
	for i := range upds {
		upds[i] = group.IdentityG1()
	}

	for i := 0; i < t; i++ {
		lRow := int64(i)*int64(c.N) + row
		if v, ok, err := readG1(st, tableLLog, lRow); err != nil {
			return nil, err
		} else if ok {
			upds[i] = v
		}
	}
	for i := 0; i < t; i++ {
		if v, ok, err := readG1(st, auxTable(i), int64(id)); err != nil {
			return nil, err
		} else if ok {
			upds[t+i] = v
		}
	}
	return upds, nil
}
