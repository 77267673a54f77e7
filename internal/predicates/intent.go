// intent.go - Partial-fulfillment swap intent predicate.
//
// An intent note encodes "sell X of token A for Y of token B" and may be
// fulfilled partially: the fulfiller delivers bought units of B plus a
// returned remainder of A, pro rata. Creation pins the terms into
// app_data_static; consumption additionally constrains the two output
// notes of the consuming partial transaction against those terms.

package predicates

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// IntentCircuitID keys the intent circuit in the engine's cache.
const IntentCircuitID = "vp-intent"

// intentNoteValue is the marker denomination of intent notes. Created and
// consumed intent notes are identical, so the value cancels in the global
// balance whatever it is.
const intentNoteValue = 1

// Swap is the seller's side of a partial-fulfillment trade: the note being
// sold, the ask, and the authorization the proceeds must return to. A Swap
// handed to a solver carries everything needed to recreate and consume the
// intent note.
type Swap struct {
	Sell Token
	Buy  Token
	// Auth is the seller's token authorization; bought and returned notes
	// must commit to it.
	Auth TokenAuthorization
	// SellNote is the note being sold. Its nullifier key doubles as the
	// intent note's, so whoever holds the Swap can consume the intent.
	SellNote shielded.Note

	// tokenVK and intentVK pin the applications the terms refer to.
	tokenVK  fr.Element
	intentVK fr.Element
	// intentRho chains the intent note to the sell note's spend;
	// intentRseed makes the intent note reproducible on both sides.
	intentRho   shielded.Nullifier
	intentRseed shielded.RandomSeed
}

// NewSwap assembles a swap around an existing sell note. The sell note's
// container must hold the nullifier key: the intent note chains to the
// sell note's nullifier.
func NewSwap(rng io.Reader, eng *proving.Engine, sell, buy Token, auth TokenAuthorization, sellNote shielded.Note) (Swap, error) {
	if sellNote.Value != sell.Value {
		return Swap{}, fmt.Errorf("%w: sell note value %d does not match terms %d", shielded.ErrWitness, sellNote.Value, sell.Value)
	}
	tokenVK, err := TokenVK(eng)
	if err != nil {
		return Swap{}, err
	}
	intentVK, err := IntentVK(eng)
	if err != nil {
		return Swap{}, err
	}
	rho, err := sellNote.Nullifier()
	if err != nil {
		return Swap{}, fmt.Errorf("%w: sell note: %v", shielded.ErrWitness, err)
	}
	rseed, err := shielded.NewRandomSeed(rng)
	if err != nil {
		return Swap{}, err
	}
	return Swap{
		Sell:        sell,
		Buy:         buy,
		Auth:        auth,
		SellNote:    sellNote,
		tokenVK:     tokenVK,
		intentVK:    intentVK,
		intentRho:   rho,
		intentRseed: rseed,
	}, nil
}

// EncodeTerms digests the swap terms into the intent note's
// app_data_static.
func (s *Swap) EncodeTerms() fr.Element {
	var sellValue, buyValue fr.Element
	sellValue.SetUint64(s.Sell.Value)
	buyValue.SetUint64(s.Buy.Value)
	return shielded.HashFields(
		s.tokenVK,
		s.Sell.Encode(), sellValue,
		s.Buy.Encode(), buyValue,
		s.Auth.AppDataDynamic(),
	)
}

// CreateIntentNote materializes the intent note. Deterministic: the
// creating and the consuming side derive the identical note.
func (s *Swap) CreateIntentNote() shielded.Note {
	return shielded.NewNote(
		s.intentVK,
		s.EncodeTerms(),
		s.Auth.AppDataDynamic(),
		intentNoteValue,
		s.SellNote.NkContainer,
		s.intentRho,
		false,
		s.intentRseed,
	)
}

// Fill computes the note window of the consuming partial transaction for a
// given offer: inputs (intent, padding), outputs (bought, returned). The
// returned remainder is pro rata; offers that do not divide the terms
// evenly are rejected.
func (s *Swap) Fill(rng io.Reader, eng *proving.Engine, offer Token) (inputs, outputs [shielded.NumNotes]shielded.Note, err error) {
	if offer.Name != s.Buy.Name {
		return inputs, outputs, fmt.Errorf("%w: offered token %q, asked %q", shielded.ErrWitness, offer.Name, s.Buy.Name)
	}
	if offer.Value == 0 || offer.Value > s.Buy.Value {
		return inputs, outputs, fmt.Errorf("%w: offered %d of asked %d", shielded.ErrWitness, offer.Value, s.Buy.Value)
	}
	if (offer.Value*s.Sell.Value)%s.Buy.Value != 0 {
		return inputs, outputs, fmt.Errorf("%w: offer %d does not divide the terms", shielded.ErrWitness, offer.Value)
	}
	returnedValue := s.Sell.Value - offer.Value*s.Sell.Value/s.Buy.Value

	intent := s.CreateIntentNote()
	intentNf, err := intent.Nullifier()
	if err != nil {
		return inputs, outputs, fmt.Errorf("%w: intent note: %v", shielded.ErrWitness, err)
	}
	// Padding in a consuming ptx stays trivially governed.
	trivialVK, err := TrivialVK(eng)
	if err != nil {
		return inputs, outputs, err
	}
	paddingIn, err := shielded.RandomPaddingInputNote(rng, trivialVK)
	if err != nil {
		return inputs, outputs, err
	}
	paddingNf, err := paddingIn.Nullifier()
	if err != nil {
		return inputs, outputs, err
	}

	receiver := s.SellNote.NkContainer.ToCommitment()
	boughtSeed, err := shielded.NewRandomSeed(rng)
	if err != nil {
		return inputs, outputs, err
	}
	bought := shielded.NewNote(s.tokenVK, s.Buy.Encode(), s.Auth.AppDataDynamic(),
		offer.Value, receiver, intentNf, true, boughtSeed)

	returnedSeed, err := shielded.NewRandomSeed(rng)
	if err != nil {
		return inputs, outputs, err
	}
	returned := shielded.NewNote(s.tokenVK, s.Sell.Encode(), s.Auth.AppDataDynamic(),
		returnedValue, receiver, paddingNf, true, returnedSeed)

	inputs = [shielded.NumNotes]shielded.Note{intent, paddingIn}
	outputs = [shielded.NumNotes]shielded.Note{bought, returned}
	return inputs, outputs, nil
}

// IntentCircuit pins the swap terms on creation and the fulfillment shape
// on consumption.
type IntentCircuit struct {
	Mandatory

	TokenVK     frontend.Variable
	SellName    frontend.Variable
	SellValue   frontend.Variable
	BuyName     frontend.Variable
	BuyValue    frontend.Variable
	AuthDynamic frontend.Variable
}

// Define implements frontend.Circuit.
func (c *IntentCircuit) Define(api frontend.API) error {
	lookup, err := c.Mandatory.define(api)
	if err != nil {
		return err
	}

	// The owned intent note's app_data_static must encode the terms.
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.TokenVK, c.SellName, c.SellValue, c.BuyName, c.BuyValue, c.AuthDynamic)
	terms := hasher.Sum()
	var inStatic, outStatic [shielded.NumNotes]frontend.Variable
	for i := 0; i < shielded.NumNotes; i++ {
		inStatic[i] = c.InputNotes[i].AppDataStatic
		outStatic[i] = c.OutputNotes[i].AppDataStatic
	}
	api.AssertIsEqual(terms, lookup.mux(api, inStatic, outStatic))

	// Consumption constraints, active only when the intent is spent. The
	// consuming window is (intent, padding) -> (bought, returned).
	consuming := lookup.ownedAsInput(api)
	bought := c.OutputNotes[0]
	returned := c.OutputNotes[1]
	mustZero := func(v frontend.Variable) {
		api.AssertIsEqual(api.Mul(consuming, v), 0)
	}
	mustZero(api.Sub(bought.AppVK, c.TokenVK))
	mustZero(api.Sub(bought.AppDataStatic, c.BuyName))
	mustZero(api.Sub(bought.AppDataDynamic, c.AuthDynamic))
	mustZero(api.Sub(returned.AppVK, c.TokenVK))
	mustZero(api.Sub(returned.AppDataStatic, c.SellName))
	mustZero(api.Sub(returned.AppDataDynamic, c.AuthDynamic))

	// Pro-rata fulfillment:
	// bought.value * sell.value == buy.value * (sell.value - returned.value)
	lhs := api.Mul(bought.Value, c.SellValue)
	rhs := api.Mul(c.BuyValue, api.Sub(c.SellValue, returned.Value))
	mustZero(api.Sub(lhs, rhs))
	return nil
}

// IntentValidityPredicate is the intent circuit bound to a context.
type IntentValidityPredicate struct {
	Ctx  NoteContext
	Swap Swap
}

// GenerateProof proves the intent predicate over its context.
func (vp *IntentValidityPredicate) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	m, publics, err := vp.Ctx.mandatoryAssignment()
	if err != nil {
		return nil, err
	}
	var sellValue, buyValue fr.Element
	sellValue.SetUint64(vp.Swap.Sell.Value)
	buyValue.SetUint64(vp.Swap.Buy.Value)
	assignment := &IntentCircuit{
		Mandatory:   m,
		TokenVK:     fv(vp.Swap.tokenVK),
		SellName:    fv(vp.Swap.Sell.Encode()),
		SellValue:   fv(sellValue),
		BuyName:     fv(vp.Swap.Buy.Encode()),
		BuyValue:    fv(buyValue),
		AuthDynamic: fv(vp.Swap.Auth.AppDataDynamic()),
	}
	return eng.Prove(IntentCircuitID, &IntentCircuit{}, assignment, publics)
}

// IntentVK returns the compressed verifying-key identity of the intent
// circuit.
func IntentVK(eng *proving.Engine) (fr.Element, error) {
	vk, err := eng.VerifyingKey(IntentCircuitID, &IntentCircuit{})
	if err != nil {
		return fr.Element{}, err
	}
	return proving.CompressVK(vk)
}
