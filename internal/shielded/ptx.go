// ptx.go - Shielded partial transactions.
//
// A partial transaction is a fixed-arity bundle of NumNotes spends and
// NumNotes outputs, each guarded by its validity predicates. The fixed
// shape is itself a privacy property: real complexity never leaks through
// transaction size, unused slots are filled with padding notes.

package shielded

import (
	"fmt"
	"io"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	bls377fr "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"golang.org/x/sync/errgroup"

	"shielded/internal/proving"
)

// NumNotes is the fixed number of input and output slots per partial
// transaction.
const NumNotes = 2

// InputNoteProvingInfo carries everything needed to spend one note: the
// note, its authentication path and anchor, the governing predicate and any
// dynamic predicates.
type InputNoteProvingInfo struct {
	Note       Note
	Path       MerklePath
	Anchor     Anchor
	AppVP      ValidityPredicate
	DynamicVPs []ValidityPredicate
}

// OutputNoteProvingInfo carries a created note and its predicate set.
type OutputNoteProvingInfo struct {
	Note       Note
	AppVP      ValidityPredicate
	DynamicVPs []ValidityPredicate
}

// ShieldedPartialTransaction is an independently constructible bundle of
// NumNotes actions with all predicate proofs attached.
type ShieldedPartialTransaction struct {
	Actions      [NumNotes]Action
	InputProofs  [NumNotes]VerifyingInfoSet
	OutputProofs [NumNotes]VerifyingInfoSet

	// netValueCommitment is sum(in) - sum(out) over per-application value
	// bases plus the blinding term.
	netValueCommitment bls12377.G1Affine
	// blind is the blinding scalar; it stays private to the builder side
	// and is only ever aggregated into a transaction's binding witness.
	blind bls377fr.Element
}

// NetValueCommitment returns the blinded per-application value commitment.
func (p *ShieldedPartialTransaction) NetValueCommitment() bls12377.G1Affine {
	return p.netValueCommitment
}

// bindingBlind exposes the blinding scalar to transaction assembly.
func (p *ShieldedPartialTransaction) bindingBlind() bls377fr.Element {
	return p.blind
}

// BuildShieldedPartialTransaction checks anchors and nullifier chaining,
// computes the blinded value commitment, and generates all predicate proofs.
// The up-to-2*NumNotes proof generations have no data dependency on each
// other and run concurrently; any witness-level failure aborts before its
// proof is attempted.
func BuildShieldedPartialTransaction(
	eng *proving.Engine,
	inputs [NumNotes]InputNoteProvingInfo,
	outputs [NumNotes]OutputNoteProvingInfo,
	rng io.Reader,
) (*ShieldedPartialTransaction, error) {
	ptx := &ShieldedPartialTransaction{}

	// Step 1: build the actions. This derives every nullifier and
	// enforces anchors and rho chaining before anything expensive runs.
	for i := 0; i < NumNotes; i++ {
		spend := SpendInfo{Note: inputs[i].Note, Path: inputs[i].Path, Anchor: inputs[i].Anchor}
		action, err := BuildAction(spend, outputs[i].Note)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		ptx.Actions[i] = action
	}

	// Step 2: blinded value commitment.
	blind, err := RandomBlind(rng)
	if err != nil {
		return nil, err
	}
	inputNotes := make([]Note, 0, NumNotes)
	outputNotes := make([]Note, 0, NumNotes)
	for i := 0; i < NumNotes; i++ {
		inputNotes = append(inputNotes, inputs[i].Note)
		outputNotes = append(outputNotes, outputs[i].Note)
	}
	cv, err := NetValueCommitment(inputNotes, outputNotes, blind)
	if err != nil {
		return nil, err
	}
	ptx.blind = blind
	ptx.netValueCommitment = cv

	// Step 3: generate all predicate proofs concurrently.
	var g errgroup.Group
	for i := 0; i < NumNotes; i++ {
		i := i
		g.Go(func() error {
			set, err := proveSet(eng, inputs[i].AppVP, inputs[i].DynamicVPs)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			ptx.InputProofs[i] = set
			return nil
		})
		g.Go(func() error {
			set, err := proveSet(eng, outputs[i].AppVP, outputs[i].DynamicVPs)
			if err != nil {
				return fmt.Errorf("output %d: %w", i, err)
			}
			ptx.OutputProofs[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ptx, nil
}

// proveSet proves one note's governing predicate and its dynamic predicates.
func proveSet(eng *proving.Engine, app ValidityPredicate, dynamic []ValidityPredicate) (VerifyingInfoSet, error) {
	if app == nil {
		return VerifyingInfoSet{}, fmt.Errorf("%w: note carries no governing predicate", ErrWitness)
	}
	appInfo, err := app.GenerateProof(eng)
	if err != nil {
		return VerifyingInfoSet{}, err
	}
	set := VerifyingInfoSet{App: appInfo}
	for i, vp := range dynamic {
		info, err := vp.GenerateProof(eng)
		if err != nil {
			return VerifyingInfoSet{}, fmt.Errorf("dynamic predicate %d: %w", i, err)
		}
		set.Dynamic = append(set.Dynamic, info)
	}
	return set, nil
}
