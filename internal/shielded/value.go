// value.go - Blinded value commitments over BLS12-377 G1.
//
// Each application gets its own value base via hash-to-curve over the
// application identity, so values of different applications can never be
// netted against each other. A partial transaction commits to its net value
// as sum(in) - sum(out) over the per-application bases plus a blinding term.

package shielded

import (
	"fmt"
	"io"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	bls377fr "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
)

// Domain separation tags for hash-to-curve.
const (
	valueBaseDST    = "shielded:value-base:v1"
	blindingBaseDST = "shielded:value-blind:v1"
)

// DeriveValueBase maps an application identity (governing VP plus static
// configuration data) to its value base point. Hash-to-curve keeps bases of
// distinct applications unrelated by any known scalar.
func DeriveValueBase(appVK, appDataStatic fr.Element) (bls12377.G1Affine, error) {
	vk := appVK.Bytes()
	static := appDataStatic.Bytes()
	msg := append(vk[:], static[:]...)
	base, err := bls12377.HashToG1(msg, []byte(valueBaseDST))
	if err != nil {
		return bls12377.G1Affine{}, fmt.Errorf("derive value base: %w", err)
	}
	return base, nil
}

// BlindingBase returns the fixed base of the blinding term. It is derived
// by hash-to-curve under its own tag, so no party knows its discrete log
// with respect to any value base.
func BlindingBase() bls12377.G1Affine {
	base, err := bls12377.HashToG1(nil, []byte(blindingBaseDST))
	if err != nil {
		// HashToG1 over a fixed message cannot fail at runtime.
		panic(err)
	}
	return base
}

// RandomBlind draws a blinding scalar from rng.
func RandomBlind(rng io.Reader) (bls377fr.Element, error) {
	var buf [64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return bls377fr.Element{}, fmt.Errorf("read randomness: %w", err)
	}
	var e bls377fr.Element
	e.SetBytes(buf[:])
	return e, nil
}

// valueTerm computes [value]B_app for one note.
func valueTerm(n *Note) (bls12377.G1Affine, error) {
	base, err := DeriveValueBase(n.AppVK, n.AppDataStatic)
	if err != nil {
		return bls12377.G1Affine{}, err
	}
	var term bls12377.G1Affine
	term.ScalarMultiplication(&base, new(big.Int).SetUint64(n.Value))
	return term, nil
}

// NetValueCommitment computes
//
//	sum_in [v]B_app - sum_out [v]B_app + [blind]R
//
// over the given note slices. Inputs count positive, outputs negative.
func NetValueCommitment(inputs, outputs []Note, blind bls377fr.Element) (bls12377.G1Affine, error) {
	var acc bls12377.G1Affine
	for i := range inputs {
		term, err := valueTerm(&inputs[i])
		if err != nil {
			return bls12377.G1Affine{}, err
		}
		acc.Add(&acc, &term)
	}
	for i := range outputs {
		term, err := valueTerm(&outputs[i])
		if err != nil {
			return bls12377.G1Affine{}, err
		}
		acc.Sub(&acc, &term)
	}
	blindBase := BlindingBase()
	var blindTerm bls12377.G1Affine
	blindTerm.ScalarMultiplication(&blindBase, blind.BigInt(new(big.Int)))
	acc.Add(&acc, &blindTerm)
	return acc, nil
}
