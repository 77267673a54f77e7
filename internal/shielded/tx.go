// tx.go - Transaction assembly and execution.
//
// A transaction aggregates independently built partial transactions and
// proves global value conservation: the sum of every constituent value
// commitment, over per-application bases, must equal the blinding base
// raised to the aggregate blinding scalar. Execution verifies every
// predicate proof and is strictly all-or-nothing.

package shielded

import (
	"fmt"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	bls377fr "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"golang.org/x/sync/errgroup"

	"shielded/internal/proving"
)

// ShieldedPartialTxBundle is an ordered set of shielded partial
// transactions.
type ShieldedPartialTxBundle []*ShieldedPartialTransaction

// TransparentPartialTxBundle is an ordered set of transparent partial
// transactions.
type TransparentPartialTxBundle []*TransparentPartialTransaction

// Transaction is a fully assembled, immutable set of partial transactions
// plus the binding witness for the aggregate value commitment.
type Transaction struct {
	Shielded    ShieldedPartialTxBundle
	Transparent TransparentPartialTxBundle

	// bindingBlind is the sum of all constituent blinding scalars; it is
	// the witness for the aggregate zero-sum check.
	bindingBlind bls377fr.Element
}

// BuildTransaction assembles a transaction from already constructed partial
// transactions, folding their blinding scalars into the binding witness.
// The transaction is immutable afterwards.
func BuildTransaction(shielded ShieldedPartialTxBundle, transparent TransparentPartialTxBundle) *Transaction {
	var blind bls377fr.Element
	for _, ptx := range shielded {
		b := ptx.bindingBlind()
		blind.Add(&blind, &b)
	}
	return &Transaction{
		Shielded:     shielded,
		Transparent:  transparent,
		bindingBlind: blind,
	}
}

// Actions returns the public action data of every shielded partial
// transaction, in bundle order.
func (t *Transaction) Actions() []Action {
	var actions []Action
	for _, ptx := range t.Shielded {
		actions = append(actions, ptx.Actions[:]...)
	}
	return actions
}

// Execute verifies the whole transaction: local nullifier uniqueness, every
// predicate proof, consistency of each proof's public instance with its
// action, and the aggregate zero-sum. Partial acceptance is never
// permitted; the first failure rejects the transaction as a whole.
func (t *Transaction) Execute(eng *proving.Engine) error {
	if err := t.checkDuplicateNullifiers(); err != nil {
		return err
	}
	if err := t.verifyProofs(eng); err != nil {
		return err
	}
	return t.checkBalance()
}

// checkDuplicateNullifiers rejects transactions spending the same note
// twice. Cross-transaction replay detection is the ledger's responsibility.
func (t *Transaction) checkDuplicateNullifiers() error {
	seen := make(map[Nullifier]struct{})
	for _, action := range t.Actions() {
		if _, ok := seen[action.Nullifier]; ok {
			nf := action.Nullifier.Inner()
			return fmt.Errorf("%w: %v", ErrDuplicateNullifier, nf.String())
		}
		seen[action.Nullifier] = struct{}{}
	}
	return nil
}

// verifyProofs checks every VP proof concurrently and cross-checks each
// governing proof's public instance against its partial transaction's
// action data.
func (t *Transaction) verifyProofs(eng *proving.Engine) error {
	var g errgroup.Group
	for pi, ptx := range t.Shielded {
		pi, ptx := pi, ptx
		for i := 0; i < NumNotes; i++ {
			i := i
			g.Go(func() error {
				if err := verifySet(eng, &ptx.InputProofs[i], ptx); err != nil {
					return fmt.Errorf("partial tx %d input %d: %w", pi, i, err)
				}
				return nil
			})
			g.Go(func() error {
				if err := verifySet(eng, &ptx.OutputProofs[i], ptx); err != nil {
					return fmt.Errorf("partial tx %d output %d: %w", pi, i, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// verifySet verifies one note's proof set and checks that the public
// instance of each proof commits to this partial transaction's nullifiers
// and output commitments.
func verifySet(eng *proving.Engine, set *VerifyingInfoSet, ptx *ShieldedPartialTransaction) error {
	if set.App == nil {
		return fmt.Errorf("%w: missing governing predicate proof", proving.ErrProofVerification)
	}
	infos := append([]*proving.VerifyingInfo{set.App}, set.Dynamic...)
	for _, info := range infos {
		if err := checkInstance(info, ptx); err != nil {
			return err
		}
		if err := eng.Verify(info); err != nil {
			return err
		}
	}
	return nil
}

// checkInstance validates a proof's recorded public inputs against the
// partial transaction's actions. Every predicate instance starts with
// (owned note id, nullifiers..., output commitments...); predicates may
// append further public inputs after that prefix.
func checkInstance(info *proving.VerifyingInfo, ptx *ShieldedPartialTransaction) error {
	if len(info.PublicInputs) < 1+2*NumNotes {
		return fmt.Errorf("%w: unexpected public instance length %d", proving.ErrProofVerification, len(info.PublicInputs))
	}
	for i := 0; i < NumNotes; i++ {
		if Nullifier(info.PublicInputs[1+i]) != ptx.Actions[i].Nullifier {
			return fmt.Errorf("%w: public nullifier %d does not match action", proving.ErrProofVerification, i)
		}
		if Commitment(info.PublicInputs[1+NumNotes+i]) != ptx.Actions[i].OutputCommitment {
			return fmt.Errorf("%w: public output commitment %d does not match action", proving.ErrProofVerification, i)
		}
	}
	return nil
}

// checkBalance folds every value commitment and subtracts the binding term;
// the result must be the group identity.
func (t *Transaction) checkBalance() error {
	var acc bls12377.G1Affine
	for _, ptx := range t.Shielded {
		cv := ptx.NetValueCommitment()
		acc.Add(&acc, &cv)
	}
	for _, ptx := range t.Transparent {
		cv, err := ptx.NetValueCommitment()
		if err != nil {
			return err
		}
		acc.Add(&acc, &cv)
	}
	blindBase := BlindingBase()
	var binding bls12377.G1Affine
	binding.ScalarMultiplication(&blindBase, t.bindingBlind.BigInt(new(big.Int)))
	acc.Sub(&acc, &binding)
	if !acc.IsInfinity() {
		return ErrUnbalancedTransaction
	}
	return nil
}
