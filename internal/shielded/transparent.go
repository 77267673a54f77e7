// transparent.go - Transparent partial transactions.
//
// Transparent resources carry their application identity and value in the
// clear. They contribute unblinded terms to the transaction's aggregate
// value commitment, letting shielded and transparent flows balance against
// each other per application.

package shielded

import (
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
)

// TransparentResource is one plainly visible value unit.
type TransparentResource struct {
	AppVK         fr.Element
	AppDataStatic fr.Element
	Value         uint64
}

// TransparentPartialTransaction consumes and creates transparent resources.
type TransparentPartialTransaction struct {
	Inputs  []TransparentResource
	Outputs []TransparentResource
}

// NetValueCommitment computes sum(in) - sum(out) over per-application value
// bases, with no blinding term.
func (p *TransparentPartialTransaction) NetValueCommitment() (bls12377.G1Affine, error) {
	var acc bls12377.G1Affine
	add := func(r *TransparentResource, negate bool) error {
		base, err := DeriveValueBase(r.AppVK, r.AppDataStatic)
		if err != nil {
			return err
		}
		var term bls12377.G1Affine
		term.ScalarMultiplication(&base, new(big.Int).SetUint64(r.Value))
		if negate {
			acc.Sub(&acc, &term)
		} else {
			acc.Add(&acc, &term)
		}
		return nil
	}
	for i := range p.Inputs {
		if err := add(&p.Inputs[i], false); err != nil {
			return bls12377.G1Affine{}, err
		}
	}
	for i := range p.Outputs {
		if err := add(&p.Outputs[i], true); err != nil {
			return bls12377.G1Affine{}, err
		}
	}
	return acc, nil
}
