// action.go - The Action binds one spent note to one created note.
//
// An action's public data is exactly (anchor, nullifier, output commitment).
// Building one enforces the chaining invariant: the output note's rho must
// be the nullifier freshly derived from the spend.

package shielded

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
)

// Action is the unit of public data a proof attests to.
type Action struct {
	// Anchor is the tree root used for the spend's membership proof.
	Anchor Anchor
	// Nullifier is the spent note's nullifier.
	Nullifier Nullifier
	// OutputCommitment commits to the newly created note.
	OutputCommitment Commitment
	// IsMerkleChecked reports whether the anchor is a real membership
	// root. Spends of ephemeral notes carry arbitrary anchors and set it
	// to false.
	IsMerkleChecked bool
}

// SpendInfo pairs a note being spent with its authentication path and the
// anchor the path folds to.
type SpendInfo struct {
	Note   Note
	Path   MerklePath
	Anchor Anchor
}

// NewSpendInfo computes the anchor from the note's commitment and path.
func NewSpendInfo(note Note, path MerklePath) SpendInfo {
	return SpendInfo{
		Note:   note,
		Path:   path,
		Anchor: path.Root(note.Commitment()),
	}
}

// CheckAnchor validates the spend's anchor against the recomputed root.
// Merkle-unchecked notes accept any anchor.
func (s *SpendInfo) CheckAnchor() error {
	if !s.Note.IsMerkleChecked {
		return nil
	}
	if s.Path.Root(s.Note.Commitment()) != s.Anchor {
		cm := s.Note.Commitment().Inner()
		return fmt.Errorf("%w: spend of note commitment %v", ErrMerkleInconsistency, cm.String())
	}
	return nil
}

// OutputInfo describes a note to be created by an action. It deliberately
// has no rho field: the rho of the output is always the spend's nullifier,
// supplied by BuildAction.
type OutputInfo struct {
	AppVK          fr.Element
	AppDataStatic  fr.Element
	AppDataDynamic fr.Element
	Value          uint64
	NkContainer    NullifierKeyContainer
	MerkleChecked  bool
}

// ChainedNote materializes the output note with the given rho (the paired
// spend's nullifier) and fresh blinding randomness.
func (o OutputInfo) ChainedNote(rng io.Reader, rho Nullifier) (Note, error) {
	rseed, err := NewRandomSeed(rng)
	if err != nil {
		return Note{}, err
	}
	return NewNote(o.AppVK, o.AppDataStatic, o.AppDataDynamic, o.Value,
		o.NkContainer, rho, o.MerkleChecked, rseed), nil
}

// BuildAction derives the spend's nullifier, checks that the output note
// chains to it, and returns the action's public values. Pure and
// deterministic given its inputs.
func BuildAction(spend SpendInfo, output Note) (Action, error) {
	if err := spend.CheckAnchor(); err != nil {
		return Action{}, err
	}
	nf, err := spend.Note.Nullifier()
	if err != nil {
		return Action{}, fmt.Errorf("%w: spend note: %v", ErrWitness, err)
	}
	if output.Rho != nf {
		rho := output.Rho.Inner()
		return Action{}, fmt.Errorf("%w: got rho %v", ErrBrokenChain, rho.String())
	}
	return Action{
		Anchor:           spend.Anchor,
		Nullifier:        nf,
		OutputCommitment: output.Commitment(),
		IsMerkleChecked:  spend.Note.IsMerkleChecked,
	}, nil
}
