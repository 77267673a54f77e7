// padding.go - Proving-info builders for padding slots.
//
// Padding notes are zero-value, merkle-unchecked and trivially governed.
// They exist only so every partial transaction has the same shape.

package predicates

import (
	"io"

	"shielded/internal/shielded"
)

// PaddingInputProvingInfo wires the padding input note in slot `slot` of
// the window to the trivial predicate. The merkle path is random: unchecked
// notes accept any anchor.
func PaddingInputProvingInfo(rng io.Reader, inputs, outputs [shielded.NumNotes]shielded.Note, slot int) (shielded.InputNoteProvingInfo, error) {
	ctx, err := NewInputNoteContext(inputs, outputs, slot)
	if err != nil {
		return shielded.InputNoteProvingInfo{}, err
	}
	path, err := shielded.RandomMerklePath(rng)
	if err != nil {
		return shielded.InputNoteProvingInfo{}, err
	}
	spend := shielded.NewSpendInfo(inputs[slot], path)
	return shielded.InputNoteProvingInfo{
		Note:   spend.Note,
		Path:   spend.Path,
		Anchor: spend.Anchor,
		AppVP:  &TrivialValidityPredicate{Ctx: ctx},
	}, nil
}

// PaddingOutputProvingInfo wires the padding output note in slot `slot` to
// the trivial predicate.
func PaddingOutputProvingInfo(inputs, outputs [shielded.NumNotes]shielded.Note, slot int) (shielded.OutputNoteProvingInfo, error) {
	ctx, err := NewOutputNoteContext(inputs, outputs, slot)
	if err != nil {
		return shielded.OutputNoteProvingInfo{}, err
	}
	return shielded.OutputNoteProvingInfo{
		Note:  outputs[slot],
		AppVP: &TrivialValidityPredicate{Ctx: ctx},
	}, nil
}
