package shielded

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildActionChainsRho(t *testing.T) {
	spendNote := randomTestNote(t, 10)
	spendNote.IsMerkleChecked = false
	spend := SpendInfo{Note: spendNote}

	nf, err := spendNote.Nullifier()
	require.NoError(t, err)

	out := OutputInfo{
		AppVK:          spendNote.AppVK,
		AppDataStatic:  spendNote.AppDataStatic,
		AppDataDynamic: spendNote.AppDataDynamic,
		Value:          10,
		NkContainer:    spendNote.NkContainer.ToCommitment(),
		MerkleChecked:  true,
	}
	outNote, err := out.ChainedNote(Rand(), nf)
	require.NoError(t, err)

	action, err := BuildAction(spend, outNote)
	require.NoError(t, err)
	require.Equal(t, nf, action.Nullifier)
	require.Equal(t, outNote.Commitment(), action.OutputCommitment)
	require.False(t, action.IsMerkleChecked)

	// A membership-checked spend marks its action.
	checkedNote := randomTestNote(t, 4)
	path, err := RandomMerklePath(Rand())
	require.NoError(t, err)
	checkedSpend := NewSpendInfo(checkedNote, path)
	checkedNf, err := checkedNote.Nullifier()
	require.NoError(t, err)
	checkedOut, err := out.ChainedNote(Rand(), checkedNf)
	require.NoError(t, err)
	checkedAction, err := BuildAction(checkedSpend, checkedOut)
	require.NoError(t, err)
	require.True(t, checkedAction.IsMerkleChecked)
}

func TestBuildActionRejectsBrokenChain(t *testing.T) {
	spendNote := randomTestNote(t, 10)
	spendNote.IsMerkleChecked = false
	spend := SpendInfo{Note: spendNote}

	// Output chained to a random rho instead of the spend's nullifier.
	wrongRho, err := RandomNullifier(Rand())
	require.NoError(t, err)
	outNote := randomTestNote(t, 10)
	outNote.Rho = wrongRho

	_, err = BuildAction(spend, outNote)
	require.ErrorIs(t, err, ErrBrokenChain)
}

func TestCheckAnchor(t *testing.T) {
	note := randomTestNote(t, 3)
	path, err := RandomMerklePath(Rand())
	require.NoError(t, err)

	// NewSpendInfo computes the matching anchor.
	spend := NewSpendInfo(note, path)
	require.NoError(t, spend.CheckAnchor())

	// A tampered anchor fails for merkle-checked notes.
	bad, err := RandomAnchor(Rand())
	require.NoError(t, err)
	spend.Anchor = bad
	require.ErrorIs(t, spend.CheckAnchor(), ErrMerkleInconsistency)

	// Unchecked notes accept any anchor.
	spend.Note.IsMerkleChecked = false
	require.NoError(t, spend.CheckAnchor())
}

func TestBuildActionRejectsMissingKey(t *testing.T) {
	spendNote := randomTestNote(t, 10)
	spendNote.IsMerkleChecked = false
	spendNote.NkContainer = spendNote.NkContainer.ToCommitment()
	spend := SpendInfo{Note: spendNote}

	outNote := randomTestNote(t, 10)
	_, err := BuildAction(spend, outNote)
	require.ErrorIs(t, err, ErrWitness)
}
