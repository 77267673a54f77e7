// sigcheck.go - Schnorr signature-verification predicate.
//
// A dynamic predicate proving that the spend of a note was authorized: a
// Schnorr signature over the partial transaction's public instance, under
// the key committed into the owned note's app_data_dynamic. Signing happens
// natively over BLS12-377 G1; the circuit re-derives the challenge from the
// instance and checks [s]G == R + [e]Pk with the embedded curve's in-circuit
// arithmetic.

package predicates

import (
	"fmt"
	"io"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	bls377fp "github.com/consensys/gnark-crypto/ecc/bls12-377/fp"
	bls377fr "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	"github.com/consensys/gnark/std/hash/mimc"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// SignatureCircuitID keys the signature circuit in the engine's cache.
const SignatureCircuitID = "vp-signature"

// AuthorizationKey is a Schnorr keypair over BLS12-377 G1. The secret
// scalar never leaves the struct.
type AuthorizationKey struct {
	sk bls377fr.Element
	Pk bls12377.G1Affine
}

// GenerateAuthorizationKey draws a fresh Schnorr keypair.
func GenerateAuthorizationKey(rng io.Reader) (AuthorizationKey, error) {
	sk, err := shielded.RandomBlind(rng)
	if err != nil {
		return AuthorizationKey{}, fmt.Errorf("authorization key: %w", err)
	}
	var k AuthorizationKey
	k.sk = sk
	_, _, g, _ := bls12377.Generators()
	k.Pk.ScalarMultiplication(&g, sk.BigInt(new(big.Int)))
	return k, nil
}

// SchnorrSignature is (R, s) with R = [r]G and s = r + e*sk, where the
// challenge e hashes R's coordinates and the signed message fields.
type SchnorrSignature struct {
	R bls12377.G1Affine
	S bls377fr.Element
}

// Sign signs a message of field elements.
func (k AuthorizationKey) Sign(rng io.Reader, msg []fr.Element) (SchnorrSignature, error) {
	nonce, err := shielded.RandomBlind(rng)
	if err != nil {
		return SchnorrSignature{}, fmt.Errorf("sign: %w", err)
	}
	var sig SchnorrSignature
	_, _, g, _ := bls12377.Generators()
	sig.R.ScalarMultiplication(&g, nonce.BigInt(new(big.Int)))

	e := challengeScalar(sig.R, msg)
	sig.S.Mul(&e, &k.sk).Add(&sig.S, &nonce)
	return sig, nil
}

// Verify checks the signature natively against pk and msg.
func (sig SchnorrSignature) Verify(pk bls12377.G1Affine, msg []fr.Element) error {
	e := challengeScalar(sig.R, msg)
	_, _, g, _ := bls12377.Generators()
	var lhs, rhs bls12377.G1Affine
	lhs.ScalarMultiplication(&g, sig.S.BigInt(new(big.Int)))
	rhs.ScalarMultiplication(&pk, e.BigInt(new(big.Int)))
	rhs.Add(&rhs, &sig.R)
	if !lhs.Equal(&rhs) {
		return fmt.Errorf("%w: schnorr signature check", shielded.ErrWitness)
	}
	return nil
}

// challengeScalar hashes (R.x, R.y, msg...) and reduces the digest into the
// BLS12-377 scalar field. The circuit multiplies by the unreduced digest;
// both agree because G1 has order r.
func challengeScalar(r bls12377.G1Affine, msg []fr.Element) bls377fr.Element {
	fields := make([]fr.Element, 0, 2+len(msg))
	fields = append(fields, baseFieldToFr(r.X), baseFieldToFr(r.Y))
	fields = append(fields, msg...)
	digest := shielded.HashFields(fields...)
	db := digest.Bytes()
	var e bls377fr.Element
	e.SetBytes(db[:])
	return e
}

// baseFieldToFr reinterprets a BLS12-377 base field element in the BW6-761
// scalar field. The moduli are identical, only the Go types differ.
func baseFieldToFr(x bls377fp.Element) fr.Element {
	b := x.Bytes()
	var e fr.Element
	e.SetBytes(b[:])
	return e
}

// toGnarkPoint converts a native BLS12-377 point to gnark assignment form.
func toGnarkPoint(p bls12377.G1Affine) sw_bls12377.G1Affine {
	xBytes := p.X.Bytes()
	yBytes := p.Y.Bytes()
	return sw_bls12377.G1Affine{
		X: new(big.Int).SetBytes(xBytes[:]),
		Y: new(big.Int).SetBytes(yBytes[:]),
	}
}

// SignatureCircuit proves the mandatory constraints plus a Schnorr
// signature over (nullifiers, output commitments) under the key committed
// into the owned note's app_data_dynamic.
type SignatureCircuit struct {
	Mandatory

	// G is the fixed G1 generator, pinned as a public input.
	G sw_bls12377.G1Affine `gnark:",public"`

	Pk     sw_bls12377.G1Affine
	R      sw_bls12377.G1Affine
	S      frontend.Variable
	AuthVK frontend.Variable
}

// Define implements frontend.Circuit.
func (c *SignatureCircuit) Define(api frontend.API) error {
	lookup, err := c.Mandatory.define(api)
	if err != nil {
		return err
	}
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// The signing key must be the one committed into the owned note:
	// app_data_dynamic = MiMC(pk.x, pk.y, auth_vk).
	hasher.Write(c.Pk.X, c.Pk.Y, c.AuthVK)
	binding := hasher.Sum()
	var inDyn, outDyn [shielded.NumNotes]frontend.Variable
	for i := 0; i < shielded.NumNotes; i++ {
		inDyn[i] = c.InputNotes[i].AppDataDynamic
		outDyn[i] = c.OutputNotes[i].AppDataDynamic
	}
	api.AssertIsEqual(binding, lookup.mux(api, inDyn, outDyn))

	// e = MiMC(R.x, R.y, nf..., cm...)
	hasher.Reset()
	hasher.Write(c.R.X, c.R.Y)
	for i := 0; i < shielded.NumNotes; i++ {
		hasher.Write(c.InputNullifiers[i])
	}
	for i := 0; i < shielded.NumNotes; i++ {
		hasher.Write(c.OutputCommitments[i])
	}
	e := hasher.Sum()

	// [s]G == R + [e]Pk
	lhs := new(sw_bls12377.G1Affine)
	lhs.ScalarMul(api, c.G, c.S)
	rhs := new(sw_bls12377.G1Affine)
	rhs.ScalarMul(api, c.Pk, e)
	rhs.AddAssign(api, c.R)
	api.AssertIsEqual(lhs.X, rhs.X)
	api.AssertIsEqual(lhs.Y, rhs.Y)
	return nil
}

// SignatureValidityPredicate binds an authorization key and signature to a
// note context. Construct it with NewSignatureValidityPredicate so the
// signature covers the context's instance.
type SignatureValidityPredicate struct {
	Ctx    NoteContext
	Key    AuthorizationKey
	AuthVK fr.Element
	Sig    SchnorrSignature
}

// NewSignatureValidityPredicate signs the context's public instance
// (nullifiers and output commitments) and returns the ready predicate.
func NewSignatureValidityPredicate(rng io.Reader, ctx NoteContext, key AuthorizationKey, authVK fr.Element) (*SignatureValidityPredicate, error) {
	publics, err := ctx.instance()
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(rng, publics[1:])
	if err != nil {
		return nil, err
	}
	return &SignatureValidityPredicate{Ctx: ctx, Key: key, AuthVK: authVK, Sig: sig}, nil
}

// GenerateProof proves the signature predicate. The signature is verified
// natively first so a bad witness fails before the proving step.
func (vp *SignatureValidityPredicate) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	m, publics, err := vp.Ctx.mandatoryAssignment()
	if err != nil {
		return nil, err
	}
	if err := vp.Sig.Verify(vp.Key.Pk, publics[1:]); err != nil {
		return nil, err
	}
	_, _, g, _ := bls12377.Generators()
	assignment := &SignatureCircuit{
		Mandatory: m,
		G:         toGnarkPoint(g),
		Pk:        toGnarkPoint(vp.Key.Pk),
		R:         toGnarkPoint(vp.Sig.R),
		S:         vp.Sig.S.BigInt(new(big.Int)),
		AuthVK:    fv(vp.AuthVK),
	}
	publics = append(publics, baseFieldToFr(g.X), baseFieldToFr(g.Y))
	return eng.Prove(SignatureCircuitID, &SignatureCircuit{}, assignment, publics)
}

// SignatureVK returns the compressed verifying-key identity of the
// signature circuit.
func SignatureVK(eng *proving.Engine) (fr.Element, error) {
	vk, err := eng.VerifyingKey(SignatureCircuitID, &SignatureCircuit{})
	if err != nil {
		return fr.Element{}, err
	}
	return proving.CompressVK(vk)
}
