// swap.go - Partial-fulfillment token swap flows.
//
// Builds the three partial transactions of a solver-mediated swap: the
// seller's intent creation, the counterparty's plain token swap, and the
// solver's intent consumption, then assembles them into one balanced
// transaction.

package swap

import (
	"io"

	"shielded/internal/predicates"
	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// CreateTokenIntentPtx builds the seller's partial transaction: it spends
// the sell note and creates the intent note encoding the ask. The returned
// Swap is handed to the solver to fulfill.
func CreateTokenIntentPtx(
	eng *proving.Engine,
	rng io.Reader,
	sell, buy predicates.Token,
	auth predicates.TokenAuthorization,
	nk shielded.NullifierKeyContainer,
) (*shielded.ShieldedPartialTransaction, predicates.Swap, error) {
	rho, err := shielded.RandomNullifier(rng)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	sellNote, err := predicates.NewTokenNote(rng, eng, sell, auth, nk, rho)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	sw, err := predicates.NewSwap(rng, eng, sell, buy, auth, sellNote)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	intentNote := sw.CreateIntentNote()

	trivialVK, err := predicates.TrivialVK(eng)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	paddingIn, err := shielded.RandomPaddingInputNote(rng, trivialVK)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	paddingNf, err := paddingIn.Nullifier()
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	paddingOut, err := shielded.RandomPaddingOutputNote(rng, trivialVK, paddingNf)
	if err != nil {
		return nil, predicates.Swap{}, err
	}

	inputs := [shielded.NumNotes]shielded.Note{sellNote, paddingIn}
	outputs := [shielded.NumNotes]shielded.Note{intentNote, paddingOut}

	path, err := shielded.RandomMerklePath(rng)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	spend := shielded.NewSpendInfo(sellNote, path)
	sellInfo, err := predicates.TokenInputProvingInfo(rng, spend, sell, auth, inputs, outputs, 0)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	paddingInInfo, err := predicates.PaddingInputProvingInfo(rng, inputs, outputs, 1)
	if err != nil {
		return nil, predicates.Swap{}, err
	}

	intentCtx, err := predicates.NewOutputNoteContext(inputs, outputs, 0)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	intentInfo := shielded.OutputNoteProvingInfo{
		Note:  intentNote,
		AppVP: &predicates.IntentValidityPredicate{Ctx: intentCtx, Swap: sw},
	}
	paddingOutInfo, err := predicates.PaddingOutputProvingInfo(inputs, outputs, 1)
	if err != nil {
		return nil, predicates.Swap{}, err
	}

	ptx, err := shielded.BuildShieldedPartialTransaction(eng,
		[shielded.NumNotes]shielded.InputNoteProvingInfo{sellInfo, paddingInInfo},
		[shielded.NumNotes]shielded.OutputNoteProvingInfo{intentInfo, paddingOutInfo},
		rng)
	if err != nil {
		return nil, predicates.Swap{}, err
	}
	return ptx, sw, nil
}

// CreateTokenSwapPtx builds a plain token swap: spend inputToken under
// inputAuth, create outputToken for the holder of outputNkCom under
// outputAuth.
func CreateTokenSwapPtx(
	eng *proving.Engine,
	rng io.Reader,
	inputToken predicates.Token,
	inputAuth predicates.TokenAuthorization,
	inputNk shielded.NullifierKeyContainer,
	outputToken predicates.Token,
	outputAuth predicates.TokenAuthorization,
	outputNkCom shielded.NullifierKeyContainer,
) (*shielded.ShieldedPartialTransaction, error) {
	rho, err := shielded.RandomNullifier(rng)
	if err != nil {
		return nil, err
	}
	inputNote, err := predicates.NewTokenNote(rng, eng, inputToken, inputAuth, inputNk, rho)
	if err != nil {
		return nil, err
	}
	inputNf, err := inputNote.Nullifier()
	if err != nil {
		return nil, err
	}
	outputNote, err := predicates.NewTokenNote(rng, eng, outputToken, outputAuth, outputNkCom, inputNf)
	if err != nil {
		return nil, err
	}

	trivialVK, err := predicates.TrivialVK(eng)
	if err != nil {
		return nil, err
	}
	paddingIn, err := shielded.RandomPaddingInputNote(rng, trivialVK)
	if err != nil {
		return nil, err
	}
	paddingNf, err := paddingIn.Nullifier()
	if err != nil {
		return nil, err
	}
	paddingOut, err := shielded.RandomPaddingOutputNote(rng, trivialVK, paddingNf)
	if err != nil {
		return nil, err
	}

	inputs := [shielded.NumNotes]shielded.Note{inputNote, paddingIn}
	outputs := [shielded.NumNotes]shielded.Note{outputNote, paddingOut}

	path, err := shielded.RandomMerklePath(rng)
	if err != nil {
		return nil, err
	}
	spend := shielded.NewSpendInfo(inputNote, path)
	inputInfo, err := predicates.TokenInputProvingInfo(rng, spend, inputToken, inputAuth, inputs, outputs, 0)
	if err != nil {
		return nil, err
	}
	paddingInInfo, err := predicates.PaddingInputProvingInfo(rng, inputs, outputs, 1)
	if err != nil {
		return nil, err
	}
	outputInfo, err := predicates.TokenOutputProvingInfo(outputToken, outputAuth, inputs, outputs, 0)
	if err != nil {
		return nil, err
	}
	paddingOutInfo, err := predicates.PaddingOutputProvingInfo(inputs, outputs, 1)
	if err != nil {
		return nil, err
	}

	return shielded.BuildShieldedPartialTransaction(eng,
		[shielded.NumNotes]shielded.InputNoteProvingInfo{inputInfo, paddingInInfo},
		[shielded.NumNotes]shielded.OutputNoteProvingInfo{outputInfo, paddingOutInfo},
		rng)
}

// ConsumeTokenIntentPtx builds the solver's partial transaction: it spends
// the intent note against an offer and creates the bought and returned
// notes for the seller.
func ConsumeTokenIntentPtx(
	eng *proving.Engine,
	rng io.Reader,
	sw predicates.Swap,
	offer predicates.Token,
) (*shielded.ShieldedPartialTransaction, error) {
	inputs, outputs, err := sw.Fill(rng, eng, offer)
	if err != nil {
		return nil, err
	}

	intentCtx, err := predicates.NewInputNoteContext(inputs, outputs, 0)
	if err != nil {
		return nil, err
	}
	path, err := shielded.RandomMerklePath(rng)
	if err != nil {
		return nil, err
	}
	spend := shielded.NewSpendInfo(inputs[0], path)
	intentInfo := shielded.InputNoteProvingInfo{
		Note:   spend.Note,
		Path:   spend.Path,
		Anchor: spend.Anchor,
		AppVP:  &predicates.IntentValidityPredicate{Ctx: intentCtx, Swap: sw},
	}
	paddingInInfo, err := predicates.PaddingInputProvingInfo(rng, inputs, outputs, 1)
	if err != nil {
		return nil, err
	}

	bought := predicates.Token{Name: sw.Buy.Name, Value: outputs[0].Value}
	boughtInfo, err := predicates.TokenOutputProvingInfo(bought, sw.Auth, inputs, outputs, 0)
	if err != nil {
		return nil, err
	}
	returned := predicates.Token{Name: sw.Sell.Name, Value: outputs[1].Value}
	returnedInfo, err := predicates.TokenOutputProvingInfo(returned, sw.Auth, inputs, outputs, 1)
	if err != nil {
		return nil, err
	}

	return shielded.BuildShieldedPartialTransaction(eng,
		[shielded.NumNotes]shielded.InputNoteProvingInfo{intentInfo, paddingInInfo},
		[shielded.NumNotes]shielded.OutputNoteProvingInfo{boughtInfo, returnedInfo},
		rng)
}

// CreateTokenSwapTransaction runs the partially fulfilled swap end to end:
// Alice sells 2 BTC asking 10 ETH, Bob offers 5 ETH for 1 BTC, the solver
// matches them and returns 1 BTC to Alice.
func CreateTokenSwapTransaction(eng *proving.Engine, rng io.Reader) (*shielded.Transaction, error) {
	aliceAuth, err := predicates.NewTokenAuthorization(rng, eng)
	if err != nil {
		return nil, err
	}
	aliceNk, err := shielded.RandomNullifierKey(rng)
	if err != nil {
		return nil, err
	}
	sell := predicates.Token{Name: "btc", Value: 2}
	buy := predicates.Token{Name: "eth", Value: 10}
	alicePtx, sw, err := CreateTokenIntentPtx(eng, rng, sell, buy, aliceAuth, aliceNk)
	if err != nil {
		return nil, err
	}

	bobAuth, err := predicates.NewTokenAuthorization(rng, eng)
	if err != nil {
		return nil, err
	}
	bobNk, err := shielded.RandomNullifierKey(rng)
	if err != nil {
		return nil, err
	}
	offer := predicates.Token{Name: "eth", Value: 5}
	returned := predicates.Token{Name: "btc", Value: 1}
	bobPtx, err := CreateTokenSwapPtx(eng, rng, offer, bobAuth, bobNk, returned, bobAuth, bobNk.ToCommitment())
	if err != nil {
		return nil, err
	}

	solverPtx, err := ConsumeTokenIntentPtx(eng, rng, sw, offer)
	if err != nil {
		return nil, err
	}

	bundle := shielded.ShieldedPartialTxBundle{alicePtx, bobPtx, solverPtx}
	return shielded.BuildTransaction(bundle, nil), nil
}
