// Package rbe implements an efficient Registration-Based Encryption Key
// Curator: Setup, Gen, Reg, Enc, Upd and Dec over a Type-3 pairing on
// BLS12-381, backed by a pluggable Store and a logarithmic-merge registry
// for the efficient variant (spec.md).
package rbe

import (
	"fmt"

	"rbe/internal/crs"
	"rbe/internal/group"
	"rbe/internal/registry"
	"rbe/internal/store"
)

// Ciphertext is the public alias of the registry's wire ciphertext. Under
// the efficient variant, Enc returns one per merge level (t in all, an
// empty level contributing an identity commitment); Dec tries them in order.
type Ciphertext = registry.Ciphertext

// UpdateStatus reports whether Dec recovered the message or needs a fresher
// update vector (the GET_UPD path of spec.md §4.G).
type UpdateStatus = registry.UpdateStatus

const (
	Decrypted  = registry.Decrypted
	NeedUpdate = registry.NeedUpdate
)

// Curator is the Key Curator's bookkeeping engine: an immutable CRS over a
// mutable Store, operated through either the regular or the efficient
// registration variant.
type Curator struct {
	st        store.Store
	crs       *crs.CRS
	efficient bool

	log     *Logger
	metrics *Metrics
}

// Setup samples a fresh CRS for up to n identities and persists it to st.
// It fails with ErrAlreadyInitialized if st already holds one. efficient
// selects the logarithmic-merge registry variant over the regular,
// single-commitment-per-block one.
func Setup(st store.Store, n int, efficient bool, log *Logger, metrics *Metrics) (*Curator, error) {
	if log == nil {
		log = NewDiscardLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	c, err := crs.Setup(st, n)
	if err != nil {
		return nil, err
	}
	log.Info("crs setup complete", map[string]interface{}{
		"n": c.N_(), "block_size": c.BlockSize(), "levels": c.Levels(), "blocks": c.Blocks(),
		"efficient": efficient,
	})
	return &Curator{st: st, crs: c, efficient: efficient, log: log, metrics: metrics}, nil
}

// Open reconstructs a Curator from a Store that already holds a CRS written
// by a prior Setup.
func Open(st store.Store, efficient bool, log *Logger, metrics *Metrics) (*Curator, error) {
	if log == nil {
		log = NewDiscardLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	c, err := crs.Load(st)
	if err != nil {
		return nil, err
	}
	return &Curator{st: st, crs: c, efficient: efficient, log: log, metrics: metrics}, nil
}

// N reports the CRS's identity-space size.
func (cu *Curator) N() int { return cu.crs.N_() }

// Levels reports the number of merge levels per block (t = ceil(log2(n))).
func (cu *Curator) Levels() int { return cu.crs.Levels() }

// Metrics returns the curator's operational counters and gauges.
func (cu *Curator) Metrics() *Metrics { return cu.metrics }

// Gen produces a fresh (pk, sk, χ) key triple for id, per spec.md §4.C.
func (cu *Curator) Gen(id int) (pk group.G1, sk group.Scalar, chi []*group.G1, err error) {
	return registry.Gen(cu.crs, id)
}

// Reg registers id's (pk, χ) with the Key Curator, rejecting inconsistent
// helping values (ErrInconsistentHelpingValues) or a repeat id
// (ErrDuplicateID) before touching the store. Under the efficient variant
// this may cascade a sequence of Merges; the whole call — consistency
// check, writes, and every cascaded merge — is one atomic unit.
func (cu *Curator) Reg(id int, pk group.G1, chi []*group.G1) error {
	cu.metrics.incr(metricRegCalls)

	var err error
	var mergeDepth int
	if cu.efficient {
		mergeDepth, err = registry.RegEfficient(cu.st, cu.crs, id, pk, chi)
	} else {
		err = registry.RegRegular(cu.st, cu.crs, id, pk, chi)
	}
	if err != nil {
		cu.metrics.incr(metricRegFailed)
		cu.log.Warn("registration rejected", map[string]interface{}{"id": id, "error": err.Error()})
		return err
	}

	if cu.efficient && mergeDepth > 0 {
		cu.metrics.incr(metricMergeCalls)
		cu.metrics.setGauge(metricMergeDepth, float64(mergeDepth))
	}
	cu.log.Debug("registered", map[string]interface{}{"id": id, "efficient": cu.efficient, "merge_depth": mergeDepth})
	return nil
}

// Enc encrypts m to id under the current public parameters. Under the
// regular variant it returns a single ciphertext; under the efficient
// variant it returns one ciphertext per merge level, all of which Dec must
// be offered together.
func (cu *Curator) Enc(id int, m group.GT) ([]Ciphertext, error) {
	cu.metrics.incr(metricEncCalls)
	if cu.efficient {
		return registry.EncEfficient(cu.st, cu.crs, id, m)
	}
	ct, err := registry.EncRegular(cu.st, cu.crs, id, m)
	if err != nil {
		return nil, err
	}
	return []Ciphertext{ct}, nil
}

// Upd returns id's current update vector: the decommitment values needed to
// decrypt against the ciphertexts Enc produces right now. Under the
// efficient variant the first half comes from the merge log L, so a
// ciphertext encrypted before a merge can still be opened.
func (cu *Curator) Upd(id int) ([]group.G1, error) {
	cu.metrics.incr(metricUpdCalls)
	if cu.efficient {
		return registry.UpdEfficient(cu.st, cu.crs, id)
	}
	return registry.UpdRegular(cu.st, cu.crs, id)
}

// Dec attempts to decrypt cts for id using sk and upds, trying every
// (ciphertext, update) combination. updIdx, if non-negative, restricts the
// search to that single update vector entry (the GET_UPD-targeted variant
// of spec.md §4.G); pass -1 to search every entry.
func (cu *Curator) Dec(id int, sk group.Scalar, upds []group.G1, cts []Ciphertext, updIdx int) (group.GT, UpdateStatus, error) {
	cu.metrics.incr(metricDecCalls)
	m, status, err := registry.Dec(cu.crs, id, sk, upds, cts, updIdx)
	if err != nil {
		return group.GT{}, status, fmt.Errorf("rbe: %w", err)
	}
	if status == NeedUpdate {
		cu.metrics.incr(metricDecNeedUpd)
	}
	return m, status, nil
}
