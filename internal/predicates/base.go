// base.go - Shared circuit layer for validity predicates.
//
// Every predicate circuit embeds Mandatory: the public instance prefix
// (owned note id, input nullifiers, output commitments) plus the private
// witnesses of all notes in the partial transaction window. Its constraints
// recompute every commitment and nullifier in-circuit, so a predicate only
// adds its application-specific checks on top.

package predicates

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"shielded/internal/shielded"
)

// fv converts a native field element into a circuit assignment value.
func fv(e fr.Element) frontend.Variable {
	return e.BigInt(new(big.Int))
}

// InputNoteWitness is the private witness of one spent note. The nullifier
// key itself is present, never just its commitment: spending is what the
// proof attests to.
type InputNoteWitness struct {
	AppVK          frontend.Variable
	AppDataStatic  frontend.Variable
	AppDataDynamic frontend.Variable
	Value          frontend.Variable
	Nk             frontend.Variable
	Rho            frontend.Variable
	Psi            frontend.Variable
	Rcm            frontend.Variable
}

// OutputNoteWitness is the private witness of one created note. Only the
// nullifier key commitment is known to the creator.
type OutputNoteWitness struct {
	AppVK          frontend.Variable
	AppDataStatic  frontend.Variable
	AppDataDynamic frontend.Variable
	Value          frontend.Variable
	NkCommitment   frontend.Variable
	Rho            frontend.Variable
	Psi            frontend.Variable
	Rcm            frontend.Variable
}

// Mandatory is the instance layout common to all predicate circuits. The
// public fields come first so every proof's public witness starts with
// (owned note id, nullifiers..., output commitments...) in that order;
// embedding circuits may declare further public fields after it.
type Mandatory struct {
	OwnedNoteID       frontend.Variable                    `gnark:",public"`
	InputNullifiers   [shielded.NumNotes]frontend.Variable `gnark:",public"`
	OutputCommitments [shielded.NumNotes]frontend.Variable `gnark:",public"`

	InputNotes  [shielded.NumNotes]InputNoteWitness
	OutputNotes [shielded.NumNotes]OutputNoteWitness
}

// define enforces the mandatory constraints and returns the owned-note
// lookup for the embedding circuit's own checks:
//  1. each input nullifier is correctly derived from its note witness,
//  2. each output commitment opens to its note witness,
//  3. each output's rho equals the paired input's nullifier,
//  4. the owned note id matches one nullifier or commitment.
func (m *Mandatory) define(api frontend.API) (*ownedLookup, error) {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}

	var nfs, cms [shielded.NumNotes]frontend.Variable
	for i := 0; i < shielded.NumNotes; i++ {
		in := m.InputNotes[i]

		// nkCom = PRF_3(nk)
		hasher.Reset()
		hasher.Write(shielded.DomainNkCommitment, in.Nk)
		nkCom := hasher.Sum()

		// cm = MiMC(appVK, static, dynamic, value, nkCom, rho, psi, rcm)
		hasher.Reset()
		hasher.Write(in.AppVK, in.AppDataStatic, in.AppDataDynamic,
			in.Value, nkCom, in.Rho, in.Psi, in.Rcm)
		cm := hasher.Sum()

		// nf = MiMC(nk, rho, psi, cm)
		hasher.Reset()
		hasher.Write(in.Nk, in.Rho, in.Psi, cm)
		nf := hasher.Sum()
		api.AssertIsEqual(m.InputNullifiers[i], nf)
		nfs[i] = nf

		out := m.OutputNotes[i]
		hasher.Reset()
		hasher.Write(out.AppVK, out.AppDataStatic, out.AppDataDynamic,
			out.Value, out.NkCommitment, out.Rho, out.Psi, out.Rcm)
		outCm := hasher.Sum()
		api.AssertIsEqual(m.OutputCommitments[i], outCm)
		cms[i] = outCm

		// rho chaining: the created note replaces the spent one.
		api.AssertIsEqual(out.Rho, nf)
	}

	lookup := &ownedLookup{}
	sum := frontend.Variable(0)
	for i := 0; i < shielded.NumNotes; i++ {
		lookup.isInput[i] = api.IsZero(api.Sub(m.OwnedNoteID, nfs[i]))
		lookup.isOutput[i] = api.IsZero(api.Sub(m.OwnedNoteID, cms[i]))
		sum = api.Add(sum, lookup.isInput[i], lookup.isOutput[i])
	}
	// The owned note must actually be in the window.
	api.AssertIsDifferent(sum, 0)
	return lookup, nil
}

// ownedLookup holds boolean selector flags marking which slot the owned
// note occupies.
type ownedLookup struct {
	isInput  [shielded.NumNotes]frontend.Variable
	isOutput [shielded.NumNotes]frontend.Variable
}

// mux selects the field of the owned note out of per-slot candidates.
func (l *ownedLookup) mux(api frontend.API, inputs, outputs [shielded.NumNotes]frontend.Variable) frontend.Variable {
	acc := frontend.Variable(0)
	for i := 0; i < shielded.NumNotes; i++ {
		acc = api.Add(acc, api.Mul(l.isInput[i], inputs[i]))
		acc = api.Add(acc, api.Mul(l.isOutput[i], outputs[i]))
	}
	return acc
}

// ownedAsInput is 1 when the owned note sits in an input slot.
func (l *ownedLookup) ownedAsInput(api frontend.API) frontend.Variable {
	acc := frontend.Variable(0)
	for i := 0; i < shielded.NumNotes; i++ {
		acc = api.Add(acc, l.isInput[i])
	}
	return acc
}

// NoteContext is the native-side view a predicate proves over: the full
// note window of a partial transaction plus the identity of the note the
// predicate governs.
type NoteContext struct {
	OwnedNoteID fr.Element
	Inputs      [shielded.NumNotes]shielded.Note
	Outputs     [shielded.NumNotes]shielded.Note
}

// NewInputNoteContext builds the context for the governing predicate of the
// input note in slot `owned`; its identity is that note's nullifier.
func NewInputNoteContext(inputs, outputs [shielded.NumNotes]shielded.Note, owned int) (NoteContext, error) {
	if owned < 0 || owned >= shielded.NumNotes {
		return NoteContext{}, fmt.Errorf("%w: owned input slot %d out of range", shielded.ErrWitness, owned)
	}
	nf, err := inputs[owned].Nullifier()
	if err != nil {
		return NoteContext{}, fmt.Errorf("%w: owned input slot %d: %v", shielded.ErrWitness, owned, err)
	}
	return NoteContext{OwnedNoteID: nf.Inner(), Inputs: inputs, Outputs: outputs}, nil
}

// NewOutputNoteContext builds the context for the governing predicate of
// the output note in slot `owned`; its identity is that note's commitment.
func NewOutputNoteContext(inputs, outputs [shielded.NumNotes]shielded.Note, owned int) (NoteContext, error) {
	if owned < 0 || owned >= shielded.NumNotes {
		return NoteContext{}, fmt.Errorf("%w: owned output slot %d out of range", shielded.ErrWitness, owned)
	}
	return NoteContext{OwnedNoteID: outputs[owned].Commitment().Inner(), Inputs: inputs, Outputs: outputs}, nil
}

// ownedNote resolves the context's owned-note identity back to the note:
// inputs by nullifier, outputs by commitment.
func (c *NoteContext) ownedNote() (shielded.Note, error) {
	for i := range c.Inputs {
		nf, err := c.Inputs[i].Nullifier()
		if err != nil {
			continue
		}
		if nf.Inner() == c.OwnedNoteID {
			return c.Inputs[i], nil
		}
	}
	for i := range c.Outputs {
		if c.Outputs[i].Commitment().Inner() == c.OwnedNoteID {
			return c.Outputs[i], nil
		}
	}
	return shielded.Note{}, fmt.Errorf("%w: owned note not in window", shielded.ErrWitness)
}

// instance computes the public instance the context attests to:
// (owned note id, nullifiers..., output commitments...).
func (c *NoteContext) instance() ([]fr.Element, error) {
	publics := make([]fr.Element, 0, 1+2*shielded.NumNotes)
	publics = append(publics, c.OwnedNoteID)
	for i := range c.Inputs {
		nf, err := c.Inputs[i].Nullifier()
		if err != nil {
			return nil, fmt.Errorf("%w: input slot %d: %v", shielded.ErrWitness, i, err)
		}
		publics = append(publics, nf.Inner())
	}
	for i := range c.Outputs {
		publics = append(publics, c.Outputs[i].Commitment().Inner())
	}
	return publics, nil
}

// mandatoryAssignment builds the shared witness part of a predicate
// assignment together with the raw public instance.
func (c *NoteContext) mandatoryAssignment() (Mandatory, []fr.Element, error) {
	publics, err := c.instance()
	if err != nil {
		return Mandatory{}, nil, err
	}
	var m Mandatory
	m.OwnedNoteID = fv(publics[0])
	for i := 0; i < shielded.NumNotes; i++ {
		m.InputNullifiers[i] = fv(publics[1+i])
		m.OutputCommitments[i] = fv(publics[1+shielded.NumNotes+i])

		in := c.Inputs[i]
		nk, err := in.NkContainer.Key()
		if err != nil {
			return Mandatory{}, nil, fmt.Errorf("%w: input slot %d: %v", shielded.ErrWitness, i, err)
		}
		var inValue fr.Element
		inValue.SetUint64(in.Value)
		m.InputNotes[i] = InputNoteWitness{
			AppVK:          fv(in.AppVK),
			AppDataStatic:  fv(in.AppDataStatic),
			AppDataDynamic: fv(in.AppDataDynamic),
			Value:          fv(inValue),
			Nk:             fv(nk),
			Rho:            fv(in.Rho.Inner()),
			Psi:            fv(in.Psi),
			Rcm:            fv(in.CommitmentRandomness()),
		}

		out := c.Outputs[i]
		var outValue fr.Element
		outValue.SetUint64(out.Value)
		m.OutputNotes[i] = OutputNoteWitness{
			AppVK:          fv(out.AppVK),
			AppDataStatic:  fv(out.AppDataStatic),
			AppDataDynamic: fv(out.AppDataDynamic),
			Value:          fv(outValue),
			NkCommitment:   fv(out.NkContainer.Commitment()),
			Rho:            fv(out.Rho.Inner()),
			Psi:            fv(out.Psi),
			Rcm:            fv(out.CommitmentRandomness()),
		}
	}
	return m, publics, nil
}
