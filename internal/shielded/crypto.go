// crypto.go - Commitment and nullifier primitives for the shielded protocol.
//
// Implements the MiMC-based PRFs used for psi derivation, commitment
// randomness, note commitments and nullifiers. All field elements live in
// the BW6-761 scalar field, which is also the BLS12-377 base field, so the
// same values appear unchanged inside VP circuits and as curve coordinates.

package shielded

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// Domain separation tags for the PRF instances. Each derived quantity hashes
// a distinct tag as its first block so the PRFs cannot be cross-substituted.
// Circuit implementations hardcode the same tags.
const (
	DomainPsi          uint64 = 1
	DomainRcm          uint64 = 2
	DomainNkCommitment uint64 = 3
)

// Commitment is a hiding, binding digest of a note's fields. Commitments are
// the leaves of the commitment tree.
type Commitment fr.Element

// Inner returns the commitment as a raw field element.
func (c Commitment) Inner() fr.Element { return fr.Element(c) }

// Nullifier is the one-time value published when a note is spent. It doubles
// as the rho field of the note that replaces the spent one.
type Nullifier fr.Element

// Inner returns the nullifier as a raw field element.
func (n Nullifier) Inner() fr.Element { return fr.Element(n) }

// HashFields computes MiMC over the canonical encodings of the given field
// elements. Every input is written as a full 48-byte block so the native
// digest agrees with the in-circuit MiMC over the same values.
func HashFields(elems ...fr.Element) fr.Element {
	h := mimcNative.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// prf is a keyed PRF built from MiMC with a leading domain tag block.
func prf(domain uint64, elems ...fr.Element) fr.Element {
	var tag fr.Element
	tag.SetUint64(domain)
	return HashFields(append([]fr.Element{tag}, elems...)...)
}

// DerivePsi computes the pseudo-random psi field of a note from its random
// seed and rho. Psi only ever appears inside nullifier derivation; it must
// not be recomputable from a note's public half.
func DerivePsi(rseed RandomSeed, rho Nullifier) fr.Element {
	return prf(DomainPsi, rseed.element(), rho.Inner())
}

// DeriveRcm computes the commitment blinding factor from the note's random
// seed and rho.
func DeriveRcm(rseed RandomSeed, rho Nullifier) fr.Element {
	return prf(DomainRcm, rseed.element(), rho.Inner())
}

// DeriveNullifier computes the nullifier of a spent note as
// PRF(nk, rho, psi, cm). The container must hold the actual nullifier key;
// a commitment-only container cannot spend and the derivation fails with
// ErrMissingNullifierKey.
func DeriveNullifier(nk NullifierKeyContainer, rho Nullifier, psi fr.Element, cm Commitment) (Nullifier, error) {
	key, err := nk.Key()
	if err != nil {
		return Nullifier{}, fmt.Errorf("derive nullifier: %w", err)
	}
	return Nullifier(HashFields(key, rho.Inner(), psi, cm.Inner())), nil
}

// randomElement draws a uniformly distributed field element from the
// caller-supplied randomness source.
func randomElement(rng io.Reader) (fr.Element, error) {
	// 64 bytes of entropy keeps the modular bias negligible.
	var buf [64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return fr.Element{}, fmt.Errorf("read randomness: %w", err)
	}
	var e fr.Element
	e.SetBytes(buf[:])
	return e, nil
}

// RandomNullifier draws a fresh random rho for the first note of a chain.
func RandomNullifier(rng io.Reader) (Nullifier, error) {
	e, err := randomElement(rng)
	return Nullifier(e), err
}

// Rand returns a cryptographically secure randomness source. Callers that
// need determinism in tests substitute their own reader.
func Rand() io.Reader { return rand.Reader }
