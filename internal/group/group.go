// Package group wraps the Type-3 bilinear pairing e: G1 x G2 -> GT over
// BLS12-381 that the RBE core is built on. It is the one place the rest of
// the module is allowed to import gnark-crypto directly; every other
// package treats G1/G2/GT/Scalar as opaque.
package group

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// G1, G2 are affine points of the two source groups; GT is the target
// group of the pairing. Scalar is an element of ZR, the common order of
// G1, G2, and GT.
type (
	G1     = bls12381.G1Affine
	G2     = bls12381.G2Affine
	GT     = bls12381.GT
	Scalar = fr.Element
)

// Generators returns the standard generators g1, g2 of G1, G2.
func Generators() (G1, G2) {
	_, _, g1, g2 := bls12381.Generators()
	return g1, g2
}

// IdentityG1 returns the neutral element of G1 (multiplicatively, "1").
func IdentityG1() G1 {
	var z G1
	return z
}

// RandomScalar samples a uniform element of ZR using crypto/rand.
func RandomScalar() (Scalar, error) {
	var s Scalar
	if _, err := s.SetRandom(); err != nil {
		return Scalar{}, fmt.Errorf("group: sample scalar: %w", err)
	}
	return s, nil
}

// ScalarMulG1 computes p^s (written multiplicatively, as the spec does).
func ScalarMulG1(p G1, s Scalar) G1 {
	var out G1
	out.ScalarMultiplication(&p, toBigInt(s))
	return out
}

// ScalarMulG2 computes p^s.
func ScalarMulG2(p G2, s Scalar) G2 {
	var out G2
	out.ScalarMultiplication(&p, toBigInt(s))
	return out
}

// MulG1 computes a*b, the group composition written multiplicatively as in
// the spec (pp cells are "products" of public keys).
func MulG1(a, b G1) G1 {
	var out G1
	out.Add(&a, &b)
	return out
}

// EqualG1 reports whether a == b.
func EqualG1(a, b G1) bool { return a.Equal(&b) }

// EqualG2 reports whether a == b.
func EqualG2(a, b G2) bool { return a.Equal(&b) }

// Pair computes e(a, b) in GT.
func Pair(a G1, b G2) (GT, error) {
	gt, err := bls12381.Pair([]G1{a}, []G2{b})
	if err != nil {
		return GT{}, fmt.Errorf("group: pairing: %w", err)
	}
	return gt, nil
}

// MulGT computes a*b in GT.
func MulGT(a, b GT) GT {
	var out GT
	out.Mul(&a, &b)
	return out
}

// DivGT computes a*b^-1 in GT.
func DivGT(a, b GT) GT {
	var out GT
	out.Div(&a, &b)
	return out
}

// ExpGT computes a^s in GT.
func ExpGT(a GT, s Scalar) GT {
	var out GT
	out.Exp(a, toBigInt(s))
	return out
}

// EqualGT reports whether a == b.
func EqualGT(a, b GT) bool { return a.Equal(&b) }

// InverseScalar computes s^-1 mod p. Panics on a zero scalar: Dec only
// ever inverts a registered user's nonzero secret key.
func InverseScalar(s Scalar) Scalar {
	if s.IsZero() {
		panic("group: inverse of zero scalar")
	}
	var out Scalar
	out.Inverse(&s)
	return out
}

func toBigInt(s Scalar) *big.Int {
	return s.BigInt(new(big.Int))
}

// SerializeG1 / DeserializeG1 are the canonical compressed encodings used
// whenever a G1 element crosses the Store boundary.
func SerializeG1(p G1) []byte {
	b := p.Bytes()
	return b[:]
}

func DeserializeG1(b []byte) (G1, error) {
	var p G1
	if _, err := p.SetBytes(b); err != nil {
		return G1{}, fmt.Errorf("group: decode G1: %w", err)
	}
	return p, nil
}

func SerializeG2(p G2) []byte {
	b := p.Bytes()
	return b[:]
}

func DeserializeG2(b []byte) (G2, error) {
	var p G2
	if _, err := p.SetBytes(b); err != nil {
		return G2{}, fmt.Errorf("group: decode G2: %w", err)
	}
	return p, nil
}

func SerializeGT(e GT) []byte {
	b := e.Bytes()
	return b[:]
}

func DeserializeGT(b []byte) (GT, error) {
	var e GT
	if err := e.SetBytes(b); err != nil {
		return GT{}, fmt.Errorf("group: decode GT: %w", err)
	}
	return e, nil
}
