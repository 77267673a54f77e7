// note.go - Note type for the shielded-asset transaction protocol.
//
// A Note is one spendable unit governed by an application validity
// predicate. Notes are committed into the accumulator, spent via one-time
// nullifiers and chained through rho: the rho of a new note is the
// nullifier of the note it replaces.

package shielded

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/fxamacker/cbor/v2"
)

// noteWireVersion is the reserved version byte of the note wire form.
const noteWireVersion = 1

// RandomSeed is the blinding randomness of a note. The commitment blinding
// factor and psi are both derived from it.
type RandomSeed [32]byte

// NewRandomSeed draws a fresh seed from the given randomness source.
func NewRandomSeed(rng io.Reader) (RandomSeed, error) {
	var s RandomSeed
	if _, err := io.ReadFull(rng, s[:]); err != nil {
		return RandomSeed{}, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

func (s RandomSeed) element() fr.Element {
	var e fr.Element
	e.SetBytes(s[:])
	return e
}

type nkKind uint8

const (
	nkKey nkKind = iota + 1
	nkCommitment
)

// NullifierKeyContainer holds either a nullifier key or a commitment to one.
// Creating an output note for somebody else only needs the commitment;
// spending requires the key itself. Operations that need the key fail
// explicitly on a commitment-only container, they never coerce.
type NullifierKeyContainer struct {
	kind  nkKind
	inner fr.Element
}

// NewNullifierKey wraps a known nullifier key.
func NewNullifierKey(key fr.Element) NullifierKeyContainer {
	return NullifierKeyContainer{kind: nkKey, inner: key}
}

// NewNullifierKeyCommitment wraps a commitment to an unknown key.
func NewNullifierKeyCommitment(com fr.Element) NullifierKeyContainer {
	return NullifierKeyContainer{kind: nkCommitment, inner: com}
}

// RandomNullifierKey draws a fresh nullifier key from rng.
func RandomNullifierKey(rng io.Reader) (NullifierKeyContainer, error) {
	e, err := randomElement(rng)
	if err != nil {
		return NullifierKeyContainer{}, err
	}
	return NewNullifierKey(e), nil
}

// IsKey reports whether the container holds the actual key.
func (c NullifierKeyContainer) IsKey() bool { return c.kind == nkKey }

// Key returns the nullifier key, or ErrMissingNullifierKey when only the
// commitment is known.
func (c NullifierKeyContainer) Key() (fr.Element, error) {
	if c.kind != nkKey {
		return fr.Element{}, ErrMissingNullifierKey
	}
	return c.inner, nil
}

// Commitment returns the key commitment. For a key container it is derived
// on the fly; for a commitment container it is returned as stored.
func (c NullifierKeyContainer) Commitment() fr.Element {
	if c.kind == nkKey {
		return prf(DomainNkCommitment, c.inner)
	}
	return c.inner
}

// ToCommitment strips the key, leaving a commitment-only container.
func (c NullifierKeyContainer) ToCommitment() NullifierKeyContainer {
	return NewNullifierKeyCommitment(c.Commitment())
}

// Note is the core spendable entity.
type Note struct {
	// AppVK identifies the governing application VP (a compressed
	// verifying key).
	AppVK fr.Element
	// AppDataStatic is the application's static configuration data; it
	// participates in value-base derivation.
	AppDataStatic fr.Element
	// AppDataDynamic is opaque application data, e.g. an encoding of the
	// authorization key that may sign the spend.
	AppDataDynamic fr.Element
	// Value is the note denomination.
	Value uint64
	// NkContainer is the spending authority: the nullifier key for notes
	// we can spend, a commitment for notes we merely create.
	NkContainer NullifierKeyContainer
	// Rho chains notes: it equals the nullifier of the replaced note, or
	// a fresh random value for the first note of a chain.
	Rho Nullifier
	// Psi is derived from Rseed and Rho; it only feeds nullifier
	// derivation.
	Psi fr.Element
	// Rseed blinds the commitment.
	Rseed RandomSeed
	// IsMerkleChecked is false for ephemeral notes (intents, padding)
	// whose commitments never need a membership proof.
	IsMerkleChecked bool
}

// NewNote assembles a note and derives psi from the seed and rho.
func NewNote(appVK, appDataStatic, appDataDynamic fr.Element, value uint64,
	nk NullifierKeyContainer, rho Nullifier, merkleChecked bool, rseed RandomSeed) Note {
	return Note{
		AppVK:           appVK,
		AppDataStatic:   appDataStatic,
		AppDataDynamic:  appDataDynamic,
		Value:           value,
		NkContainer:     nk,
		Rho:             rho,
		Psi:             DerivePsi(rseed, rho),
		Rseed:           rseed,
		IsMerkleChecked: merkleChecked,
	}
}

// CommitmentRandomness returns the blinding factor rcm derived from the
// note's seed and rho.
func (n *Note) CommitmentRandomness() fr.Element {
	return DeriveRcm(n.Rseed, n.Rho)
}

// Commitment computes the note commitment
// cm = MiMC(appVK, static, dynamic, value, nkCom, rho, psi, rcm).
// Deterministic over all note fields with rcm as blinding; usable directly
// as an accumulator leaf.
func (n *Note) Commitment() Commitment {
	var value fr.Element
	value.SetUint64(n.Value)
	return Commitment(HashFields(
		n.AppVK,
		n.AppDataStatic,
		n.AppDataDynamic,
		value,
		n.NkContainer.Commitment(),
		n.Rho.Inner(),
		n.Psi,
		n.CommitmentRandomness(),
	))
}

// Nullifier derives the note's nullifier. It fails when the container holds
// only a key commitment.
func (n *Note) Nullifier() (Nullifier, error) {
	return DeriveNullifier(n.NkContainer, n.Rho, n.Psi, n.Commitment())
}

// RandomPaddingInputNote creates a zero-value merkle-unchecked note with a
// known nullifier key, used to fill unused input slots. The caller supplies
// the verifying-key identity of the predicate governing padding notes.
func RandomPaddingInputNote(rng io.Reader, appVK fr.Element) (Note, error) {
	rho, err := RandomNullifier(rng)
	if err != nil {
		return Note{}, err
	}
	nk, err := RandomNullifierKey(rng)
	if err != nil {
		return Note{}, err
	}
	return randomPaddingNote(rng, appVK, nk, rho)
}

// RandomPaddingOutputNote creates a zero-value merkle-unchecked output note
// chained to the given rho (the padding input's nullifier).
func RandomPaddingOutputNote(rng io.Reader, appVK fr.Element, rho Nullifier) (Note, error) {
	nk, err := RandomNullifierKey(rng)
	if err != nil {
		return Note{}, err
	}
	return randomPaddingNote(rng, appVK, nk.ToCommitment(), rho)
}

func randomPaddingNote(rng io.Reader, appVK fr.Element, nk NullifierKeyContainer, rho Nullifier) (Note, error) {
	static, err := randomElement(rng)
	if err != nil {
		return Note{}, err
	}
	dynamic, err := randomElement(rng)
	if err != nil {
		return Note{}, err
	}
	rseed, err := NewRandomSeed(rng)
	if err != nil {
		return Note{}, err
	}
	return NewNote(appVK, static, dynamic, 0, nk, rho, false, rseed), nil
}

// noteWire is the CBOR wire form of a note. Psi is not carried: it is
// recomputed from the seed and rho on decode.
type noteWire struct {
	Version        uint8  `cbor:"0,keyasint"`
	AppVK          []byte `cbor:"1,keyasint"`
	AppDataStatic  []byte `cbor:"2,keyasint"`
	AppDataDynamic []byte `cbor:"3,keyasint"`
	Value          uint64 `cbor:"4,keyasint"`
	NkKind         uint8  `cbor:"5,keyasint"`
	Nk             []byte `cbor:"6,keyasint"`
	Rho            []byte `cbor:"7,keyasint"`
	Rseed          []byte `cbor:"8,keyasint"`
	MerkleChecked  bool   `cbor:"9,keyasint"`
}

// MarshalBinary encodes the note in its stable CBOR wire form.
func (n Note) MarshalBinary() ([]byte, error) {
	appVK := n.AppVK.Bytes()
	static := n.AppDataStatic.Bytes()
	dynamic := n.AppDataDynamic.Bytes()
	nk := n.NkContainer.inner.Bytes()
	rhoElem := n.Rho.Inner()
	rho := rhoElem.Bytes()
	w := noteWire{
		Version:        noteWireVersion,
		AppVK:          appVK[:],
		AppDataStatic:  static[:],
		AppDataDynamic: dynamic[:],
		Value:          n.Value,
		NkKind:         uint8(n.NkContainer.kind),
		Nk:             nk[:],
		Rho:            rho[:],
		Rseed:          append([]byte(nil), n.Rseed[:]...),
		MerkleChecked:  n.IsMerkleChecked,
	}
	return cbor.Marshal(w)
}

// UnmarshalBinary decodes a note from its wire form and rederives psi.
func (n *Note) UnmarshalBinary(data []byte) error {
	var w noteWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode note: %w", err)
	}
	if w.Version != noteWireVersion {
		return fmt.Errorf("decode note: unsupported version %d", w.Version)
	}
	if w.NkKind != uint8(nkKey) && w.NkKind != uint8(nkCommitment) {
		return errors.New("decode note: invalid nullifier key container kind")
	}
	if len(w.Rseed) != len(RandomSeed{}) {
		return errors.New("decode note: invalid random seed length")
	}
	var appVK, static, dynamic, nk fr.Element
	appVK.SetBytes(w.AppVK)
	static.SetBytes(w.AppDataStatic)
	dynamic.SetBytes(w.AppDataDynamic)
	nk.SetBytes(w.Nk)
	var rho fr.Element
	rho.SetBytes(w.Rho)
	var rseed RandomSeed
	copy(rseed[:], w.Rseed)
	*n = NewNote(appVK, static, dynamic, w.Value,
		NullifierKeyContainer{kind: nkKind(w.NkKind), inner: nk},
		Nullifier(rho), w.MerkleChecked, rseed)
	return nil
}
