// trivial.go - The always-satisfied predicate.
//
// Padding notes and tests use it: it enforces only the mandatory
// constraints and nothing else.

package predicates

import (
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"

	"shielded/internal/proving"
)

// TrivialCircuitID keys the trivial circuit in the engine's setup cache.
const TrivialCircuitID = "vp-trivial"

// TrivialCircuit proves only the mandatory note constraints.
type TrivialCircuit struct {
	Mandatory
}

// Define implements frontend.Circuit.
func (c *TrivialCircuit) Define(api frontend.API) error {
	_, err := c.Mandatory.define(api)
	return err
}

// TrivialValidityPredicate is the trivial predicate bound to a concrete
// note context.
type TrivialValidityPredicate struct {
	Ctx NoteContext
}

// GenerateProof proves the mandatory constraints over the context.
func (vp *TrivialValidityPredicate) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	m, publics, err := vp.Ctx.mandatoryAssignment()
	if err != nil {
		return nil, err
	}
	return eng.Prove(TrivialCircuitID, &TrivialCircuit{}, &TrivialCircuit{Mandatory: m}, publics)
}

// TrivialVK returns the compressed verifying-key identity of the trivial
// circuit, the appVK every padding note carries.
func TrivialVK(eng *proving.Engine) (fr.Element, error) {
	vk, err := eng.VerifyingKey(TrivialCircuitID, &TrivialCircuit{})
	if err != nil {
		return fr.Element{}, err
	}
	return proving.CompressVK(vk)
}
