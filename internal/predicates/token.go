// token.go - Token application predicate.
//
// A token note's app_data_static is the encoded token name and its
// app_data_dynamic commits to the authorization key allowed to spend it.
// The circuit pins both; spend authorization itself is delegated to the
// signature predicate attached as a dynamic VP.

package predicates

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// TokenCircuitID keys the token circuit in the engine's cache.
const TokenCircuitID = "vp-token"

// Token is a fungible denomination: a name and an amount.
type Token struct {
	Name  string
	Value uint64
}

// EncodeTokenName maps a token name into the field. Distinct names give
// distinct app_data_static and therefore distinct value bases.
func EncodeTokenName(name string) fr.Element {
	digest := sha256.Sum256([]byte("shielded:token-name:v1" + name))
	var e fr.Element
	e.SetBytes(digest[:])
	return e
}

// Encode returns the token's app_data_static encoding.
func (t Token) Encode() fr.Element { return EncodeTokenName(t.Name) }

// TokenAuthorization identifies who may spend a token note: a Schnorr
// public key plus the verifying-key identity of the signature predicate
// that checks it.
type TokenAuthorization struct {
	Key    AuthorizationKey
	AuthVK fr.Element
}

// NewTokenAuthorization draws a fresh authorization keypair bound to the
// signature predicate's verifying-key identity.
func NewTokenAuthorization(rng io.Reader, eng *proving.Engine) (TokenAuthorization, error) {
	key, err := GenerateAuthorizationKey(rng)
	if err != nil {
		return TokenAuthorization{}, err
	}
	authVK, err := SignatureVK(eng)
	if err != nil {
		return TokenAuthorization{}, err
	}
	return TokenAuthorization{Key: key, AuthVK: authVK}, nil
}

// AppDataDynamic commits the authorization into the note:
// MiMC(pk.x, pk.y, auth_vk). The key cannot be substituted afterwards.
func (a TokenAuthorization) AppDataDynamic() fr.Element {
	return shielded.HashFields(baseFieldToFr(a.Key.Pk.X), baseFieldToFr(a.Key.Pk.Y), a.AuthVK)
}

// TokenCircuit pins the owned note's token name and authorization
// commitment.
type TokenCircuit struct {
	Mandatory

	// TokenName is the encoded name the owned note must carry.
	TokenName frontend.Variable `gnark:",public"`

	PkX    frontend.Variable
	PkY    frontend.Variable
	AuthVK frontend.Variable
}

// Define implements frontend.Circuit.
func (c *TokenCircuit) Define(api frontend.API) error {
	lookup, err := c.Mandatory.define(api)
	if err != nil {
		return err
	}

	var inStatic, outStatic, inDyn, outDyn [shielded.NumNotes]frontend.Variable
	for i := 0; i < shielded.NumNotes; i++ {
		inStatic[i] = c.InputNotes[i].AppDataStatic
		outStatic[i] = c.OutputNotes[i].AppDataStatic
		inDyn[i] = c.InputNotes[i].AppDataDynamic
		outDyn[i] = c.OutputNotes[i].AppDataDynamic
	}
	api.AssertIsEqual(c.TokenName, lookup.mux(api, inStatic, outStatic))

	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.PkX, c.PkY, c.AuthVK)
	api.AssertIsEqual(hasher.Sum(), lookup.mux(api, inDyn, outDyn))
	return nil
}

// TokenValidityPredicate is the token circuit bound to a note context.
type TokenValidityPredicate struct {
	Ctx   NoteContext
	Token Token
	Auth  TokenAuthorization
}

// GenerateProof proves the token predicate over its context. The owned
// note's name and authorization binding are checked natively first, so a
// mismatched witness fails before the expensive proving step.
func (vp *TokenValidityPredicate) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	if err := vp.checkOwnedToken(); err != nil {
		return nil, err
	}
	m, publics, err := vp.Ctx.mandatoryAssignment()
	if err != nil {
		return nil, err
	}
	name := vp.Token.Encode()
	assignment := &TokenCircuit{
		Mandatory: m,
		TokenName: fv(name),
		PkX:       fv(baseFieldToFr(vp.Auth.Key.Pk.X)),
		PkY:       fv(baseFieldToFr(vp.Auth.Key.Pk.Y)),
		AuthVK:    fv(vp.Auth.AuthVK),
	}
	publics = append(publics, name)
	return eng.Prove(TokenCircuitID, &TokenCircuit{}, assignment, publics)
}

// checkOwnedToken verifies the constraints the circuit will enforce: the
// owned note carries the predicate's token name and its dynamic data
// commits to the expected authorization.
func (vp *TokenValidityPredicate) checkOwnedToken() error {
	owned, err := vp.Ctx.ownedNote()
	if err != nil {
		return err
	}
	if owned.AppDataStatic != vp.Token.Encode() {
		return fmt.Errorf("%w: owned note does not carry token %q", shielded.ErrWitness, vp.Token.Name)
	}
	if owned.AppDataDynamic != vp.Auth.AppDataDynamic() {
		return fmt.Errorf("%w: owned note authorization mismatch", shielded.ErrWitness)
	}
	return nil
}

// TokenVK returns the compressed verifying-key identity of the token
// circuit, the appVK of every token note.
func TokenVK(eng *proving.Engine) (fr.Element, error) {
	vk, err := eng.VerifyingKey(TokenCircuitID, &TokenCircuit{})
	if err != nil {
		return fr.Element{}, err
	}
	return proving.CompressVK(vk)
}

// NewTokenNote assembles a token note governed by the token predicate.
func NewTokenNote(rng io.Reader, eng *proving.Engine, token Token, auth TokenAuthorization,
	nk shielded.NullifierKeyContainer, rho shielded.Nullifier) (shielded.Note, error) {
	appVK, err := TokenVK(eng)
	if err != nil {
		return shielded.Note{}, err
	}
	rseed, err := shielded.NewRandomSeed(rng)
	if err != nil {
		return shielded.Note{}, err
	}
	return shielded.NewNote(appVK, token.Encode(), auth.AppDataDynamic(), token.Value,
		nk, rho, true, rseed), nil
}

// TokenInputProvingInfo wires a token note spend: the token predicate as
// the governing VP and a fresh signature over the instance as the dynamic
// VP. The authorization must hold the actual signing key.
func TokenInputProvingInfo(rng io.Reader, spend shielded.SpendInfo, token Token, auth TokenAuthorization,
	inputs, outputs [shielded.NumNotes]shielded.Note, slot int) (shielded.InputNoteProvingInfo, error) {
	ctx, err := NewInputNoteContext(inputs, outputs, slot)
	if err != nil {
		return shielded.InputNoteProvingInfo{}, err
	}
	sigVP, err := NewSignatureValidityPredicate(rng, ctx, auth.Key, auth.AuthVK)
	if err != nil {
		return shielded.InputNoteProvingInfo{}, err
	}
	if spend.Note != inputs[slot] {
		return shielded.InputNoteProvingInfo{}, fmt.Errorf("%w: spend note does not occupy slot %d", shielded.ErrWitness, slot)
	}
	return shielded.InputNoteProvingInfo{
		Note:       spend.Note,
		Path:       spend.Path,
		Anchor:     spend.Anchor,
		AppVP:      &TokenValidityPredicate{Ctx: ctx, Token: token, Auth: auth},
		DynamicVPs: []shielded.ValidityPredicate{sigVP},
	}, nil
}

// TokenOutputProvingInfo wires a created token note to the token predicate.
func TokenOutputProvingInfo(token Token, auth TokenAuthorization,
	inputs, outputs [shielded.NumNotes]shielded.Note, slot int) (shielded.OutputNoteProvingInfo, error) {
	ctx, err := NewOutputNoteContext(inputs, outputs, slot)
	if err != nil {
		return shielded.OutputNoteProvingInfo{}, err
	}
	return shielded.OutputNoteProvingInfo{
		Note:  outputs[slot],
		AppVP: &TokenValidityPredicate{Ctx: ctx, Token: token, Auth: auth},
	}, nil
}
