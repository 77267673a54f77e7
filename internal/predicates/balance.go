// balance.go - Per-application value conservation predicate.
//
// A dynamic predicate asserting that, within the partial transaction
// window, the owned note's application neither mints nor burns: the summed
// input value of notes sharing the owned note's appVK equals the summed
// output value. Applications that do mint attach a different policy
// instead.

package predicates

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// BalanceCircuitID keys the balance circuit in the engine's cache.
const BalanceCircuitID = "vp-balance"

// BalanceCircuit enforces same-application value conservation.
type BalanceCircuit struct {
	Mandatory
}

// Define implements frontend.Circuit.
func (c *BalanceCircuit) Define(api frontend.API) error {
	lookup, err := c.Mandatory.define(api)
	if err != nil {
		return err
	}

	var inVK, outVK [shielded.NumNotes]frontend.Variable
	for i := 0; i < shielded.NumNotes; i++ {
		inVK[i] = c.InputNotes[i].AppVK
		outVK[i] = c.OutputNotes[i].AppVK
	}
	ownedVK := lookup.mux(api, inVK, outVK)

	inSum := frontend.Variable(0)
	outSum := frontend.Variable(0)
	for i := 0; i < shielded.NumNotes; i++ {
		inMatch := api.IsZero(api.Sub(c.InputNotes[i].AppVK, ownedVK))
		inSum = api.Add(inSum, api.Mul(inMatch, c.InputNotes[i].Value))
		outMatch := api.IsZero(api.Sub(c.OutputNotes[i].AppVK, ownedVK))
		outSum = api.Add(outSum, api.Mul(outMatch, c.OutputNotes[i].Value))
	}
	api.AssertIsEqual(inSum, outSum)
	return nil
}

// BalanceValidityPredicate is the balance circuit bound to a context. The
// owned note identifies which application must conserve.
type BalanceValidityPredicate struct {
	Ctx NoteContext
}

// GenerateProof checks conservation natively, then proves it.
func (vp *BalanceValidityPredicate) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	m, publics, err := vp.Ctx.mandatoryAssignment()
	if err != nil {
		return nil, err
	}
	if err := vp.checkConservation(); err != nil {
		return nil, err
	}
	return eng.Prove(BalanceCircuitID, &BalanceCircuit{}, &BalanceCircuit{Mandatory: m}, publics)
}

// checkConservation reproduces the circuit's sum check natively so an
// unbalanced witness fails before the proving step.
func (vp *BalanceValidityPredicate) checkConservation() error {
	ownedVK, err := vp.ownedAppVK()
	if err != nil {
		return err
	}
	var inSum, outSum uint64
	for i := 0; i < shielded.NumNotes; i++ {
		if vp.Ctx.Inputs[i].AppVK == ownedVK {
			inSum += vp.Ctx.Inputs[i].Value
		}
		if vp.Ctx.Outputs[i].AppVK == ownedVK {
			outSum += vp.Ctx.Outputs[i].Value
		}
	}
	if inSum != outSum {
		return fmt.Errorf("%w: application sums %d in, %d out", shielded.ErrWitness, inSum, outSum)
	}
	return nil
}

// ownedAppVK resolves the appVK of the note whose id the context carries.
func (vp *BalanceValidityPredicate) ownedAppVK() (ownedVK fr.Element, err error) {
	for i := 0; i < shielded.NumNotes; i++ {
		nf, nfErr := vp.Ctx.Inputs[i].Nullifier()
		if nfErr != nil {
			return ownedVK, fmt.Errorf("%w: input slot %d: %v", shielded.ErrWitness, i, nfErr)
		}
		if nf.Inner() == vp.Ctx.OwnedNoteID {
			return vp.Ctx.Inputs[i].AppVK, nil
		}
		if vp.Ctx.Outputs[i].Commitment().Inner() == vp.Ctx.OwnedNoteID {
			return vp.Ctx.Outputs[i].AppVK, nil
		}
	}
	return ownedVK, fmt.Errorf("%w: owned note not in window", shielded.ErrWitness)
}

// BalanceVK returns the compressed verifying-key identity of the balance
// circuit.
func BalanceVK(eng *proving.Engine) (fr.Element, error) {
	vk, err := eng.VerifyingKey(BalanceCircuitID, &BalanceCircuit{})
	if err != nil {
		return fr.Element{}, err
	}
	return proving.CompressVK(vk)
}
