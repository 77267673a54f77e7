package swap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shielded/internal/ledger"
	"shielded/internal/predicates"
	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// TestPartialFulfillmentSwap runs the full three-party scenario: Alice
// sells 2 btc asking 10 eth, Bob offers 5 eth for 1 btc, the solver
// matches them and returns 1 btc to Alice.
func TestPartialFulfillmentSwap(t *testing.T) {
	if testing.Short() {
		t.Skip("full swap proves a dozen circuits")
	}
	eng := proving.NewEngine(proving.WithKeyDir(t.TempDir()))
	rng := shielded.Rand()

	tx, err := CreateTokenSwapTransaction(eng, rng)
	require.NoError(t, err)
	require.Len(t, tx.Shielded, 3)
	require.NoError(t, tx.Execute(eng))

	// Applying to a fresh ledger records all nullifiers and commitments
	// and seals the new root.
	led, err := ledger.Open("")
	require.NoError(t, err)
	defer led.Close()
	require.NoError(t, led.Apply(eng, tx))
	require.Equal(t, len(tx.Actions()), led.Accumulator().Size())
	for _, action := range tx.Actions() {
		require.True(t, led.Accumulator().IsNullifierSpent(action.Nullifier))
	}
	require.True(t, led.Accumulator().IsValidAnchor(led.Accumulator().CurrentRoot()))

	// Replaying the same transaction is a double spend.
	require.ErrorIs(t, led.Apply(eng, tx), ledger.ErrSpentNullifier)
}

// TestUnbalancedBundleRejected drops the solver's partial transaction:
// Alice's intent and Bob's offer alone do not balance.
func TestUnbalancedBundleRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("full swap proves a dozen circuits")
	}
	eng := proving.NewEngine(proving.WithKeyDir(t.TempDir()))
	rng := shielded.Rand()

	aliceAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	aliceNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	sell := predicates.Token{Name: "btc", Value: 2}
	buy := predicates.Token{Name: "eth", Value: 10}
	alicePtx, _, err := CreateTokenIntentPtx(eng, rng, sell, buy, aliceAuth, aliceNk)
	require.NoError(t, err)

	bobAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	bobNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	offer := predicates.Token{Name: "eth", Value: 5}
	returned := predicates.Token{Name: "btc", Value: 1}
	bobPtx, err := CreateTokenSwapPtx(eng, rng, offer, bobAuth, bobNk, returned, bobAuth, bobNk.ToCommitment())
	require.NoError(t, err)

	tx := shielded.BuildTransaction(shielded.ShieldedPartialTxBundle{alicePtx, bobPtx}, nil)
	require.ErrorIs(t, tx.Execute(eng), shielded.ErrUnbalancedTransaction)
}

// TestTamperedReturnedAmountRejected runs the three-party scenario with a
// dishonest solver who inflates Alice's returned note by one unit and
// proves his partial transaction under the no-op predicate. Every proof
// verifies, but the aggregate value commitment no longer sums to the
// identity.
func TestTamperedReturnedAmountRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("full swap proves a dozen circuits")
	}
	eng := proving.NewEngine(proving.WithKeyDir(t.TempDir()))
	rng := shielded.Rand()

	aliceAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	aliceNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	sell := predicates.Token{Name: "btc", Value: 2}
	buy := predicates.Token{Name: "eth", Value: 10}
	alicePtx, sw, err := CreateTokenIntentPtx(eng, rng, sell, buy, aliceAuth, aliceNk)
	require.NoError(t, err)

	bobAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	bobNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	offer := predicates.Token{Name: "eth", Value: 5}
	returned := predicates.Token{Name: "btc", Value: 1}
	bobPtx, err := CreateTokenSwapPtx(eng, rng, offer, bobAuth, bobNk, returned, bobAuth, bobNk.ToCommitment())
	require.NoError(t, err)

	inputs, outputs, err := sw.Fill(rng, eng, offer)
	require.NoError(t, err)
	outputs[1].Value++

	path, err := shielded.RandomMerklePath(rng)
	require.NoError(t, err)
	spend := shielded.NewSpendInfo(inputs[0], path)
	ctx0, err := predicates.NewInputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)
	intentInfo := shielded.InputNoteProvingInfo{
		Note:   spend.Note,
		Path:   spend.Path,
		Anchor: spend.Anchor,
		AppVP:  &predicates.TrivialValidityPredicate{Ctx: ctx0},
	}
	paddingInInfo, err := predicates.PaddingInputProvingInfo(rng, inputs, outputs, 1)
	require.NoError(t, err)
	octx0, err := predicates.NewOutputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)
	octx1, err := predicates.NewOutputNoteContext(inputs, outputs, 1)
	require.NoError(t, err)
	boughtInfo := shielded.OutputNoteProvingInfo{
		Note:  outputs[0],
		AppVP: &predicates.TrivialValidityPredicate{Ctx: octx0},
	}
	returnedInfo := shielded.OutputNoteProvingInfo{
		Note:  outputs[1],
		AppVP: &predicates.TrivialValidityPredicate{Ctx: octx1},
	}
	solverPtx, err := shielded.BuildShieldedPartialTransaction(eng,
		[shielded.NumNotes]shielded.InputNoteProvingInfo{intentInfo, paddingInInfo},
		[shielded.NumNotes]shielded.OutputNoteProvingInfo{boughtInfo, returnedInfo},
		rng)
	require.NoError(t, err)

	tx := shielded.BuildTransaction(shielded.ShieldedPartialTxBundle{alicePtx, bobPtx, solverPtx}, nil)
	require.ErrorIs(t, tx.Execute(eng), shielded.ErrUnbalancedTransaction)
}

// TestSoloSwapBalances pairs two mirrored plain swaps into a balanced
// transaction with no intent involved.
func TestSoloSwapBalances(t *testing.T) {
	if testing.Short() {
		t.Skip("full swap proves a dozen circuits")
	}
	eng := proving.NewEngine(proving.WithKeyDir(t.TempDir()))
	rng := shielded.Rand()

	aAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	aNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	bAuth, err := predicates.NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	bNk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)

	btc := predicates.Token{Name: "btc", Value: 3}
	eth := predicates.Token{Name: "eth", Value: 8}

	aPtx, err := CreateTokenSwapPtx(eng, rng, btc, aAuth, aNk, eth, aAuth, aNk.ToCommitment())
	require.NoError(t, err)
	bPtx, err := CreateTokenSwapPtx(eng, rng, eth, bAuth, bNk, btc, bAuth, bNk.ToCommitment())
	require.NoError(t, err)

	tx := shielded.BuildTransaction(shielded.ShieldedPartialTxBundle{aPtx, bPtx}, nil)
	require.NoError(t, tx.Execute(eng))
}
