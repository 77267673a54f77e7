package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shielded/internal/shielded"
)

func randomCommitment(t *testing.T) shielded.Commitment {
	t.Helper()
	nf, err := shielded.RandomNullifier(shielded.Rand())
	require.NoError(t, err)
	return shielded.Commitment(nf.Inner())
}

func randomNullifier(t *testing.T) shielded.Nullifier {
	t.Helper()
	nf, err := shielded.RandomNullifier(shielded.Rand())
	require.NoError(t, err)
	return nf
}

func TestAccumulatorInsertAndPath(t *testing.T) {
	acc := NewAccumulator()
	require.Zero(t, acc.Size())

	var cms []shielded.Commitment
	for i := 0; i < 5; i++ {
		cm := randomCommitment(t)
		idx, err := acc.Insert(cm)
		require.NoError(t, err)
		require.Equal(t, i, idx)
		cms = append(cms, cm)
	}
	require.Equal(t, 5, acc.Size())
	require.Equal(t, cms, acc.Commitments())

	root := acc.CurrentRoot()
	for i, cm := range cms {
		path, err := acc.Path(i)
		require.NoError(t, err)
		require.Equal(t, root, path.Root(cm), "leaf %d", i)
	}

	_, err := acc.Path(5)
	require.Error(t, err)
}

func TestAccumulatorRejectsDuplicateCommitment(t *testing.T) {
	acc := NewAccumulator()
	cm := randomCommitment(t)

	_, err := acc.Insert(cm)
	require.NoError(t, err)
	_, err = acc.Insert(cm)
	require.ErrorIs(t, err, ErrDuplicateCommitment)
	require.Equal(t, 1, acc.Size())
}

func TestAccumulatorAnchors(t *testing.T) {
	acc := NewAccumulator()

	// The empty root is valid from the start.
	require.True(t, acc.IsValidAnchor(shielded.TreeRoot(nil)))

	_, err := acc.Insert(randomCommitment(t))
	require.NoError(t, err)
	root := acc.CurrentRoot()
	require.False(t, acc.IsValidAnchor(root))

	sealed := acc.Seal()
	require.Equal(t, root, sealed)
	require.True(t, acc.IsValidAnchor(root))

	// Older anchors stay valid after more insertions.
	_, err = acc.Insert(randomCommitment(t))
	require.NoError(t, err)
	acc.Seal()
	require.True(t, acc.IsValidAnchor(root))
}

func TestAccumulatorNullifiers(t *testing.T) {
	acc := NewAccumulator()
	nf := randomNullifier(t)

	require.False(t, acc.IsNullifierSpent(nf))
	acc.mu.Lock()
	acc.markSpentLocked(nf)
	acc.mu.Unlock()
	require.True(t, acc.IsNullifierSpent(nf))
}

func TestLedgerOpenInMemory(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()
	require.Zero(t, l.Accumulator().Size())
}

// txWithActions wraps raw actions into a transaction shell, enough for the
// ledger's pre-verification checks.
func txWithActions(actions [shielded.NumNotes]shielded.Action) *shielded.Transaction {
	ptx := &shielded.ShieldedPartialTransaction{Actions: actions}
	return shielded.BuildTransaction(shielded.ShieldedPartialTxBundle{ptx}, nil)
}

func TestLedgerApplyRejectsDuplicateCommitment(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()

	cm := randomCommitment(t)

	// Two actions of one transaction emitting the same commitment.
	tx := txWithActions([shielded.NumNotes]shielded.Action{
		{Nullifier: randomNullifier(t), OutputCommitment: cm},
		{Nullifier: randomNullifier(t), OutputCommitment: cm},
	})
	require.ErrorIs(t, l.Apply(nil, tx), ErrDuplicateCommitment)
	require.Zero(t, l.Accumulator().Size())

	// A commitment the tree already holds.
	_, err = l.Accumulator().Insert(cm)
	require.NoError(t, err)
	tx = txWithActions([shielded.NumNotes]shielded.Action{
		{Nullifier: randomNullifier(t), OutputCommitment: cm},
		{Nullifier: randomNullifier(t), OutputCommitment: randomCommitment(t)},
	})
	require.ErrorIs(t, l.Apply(nil, tx), ErrDuplicateCommitment)
	require.Equal(t, 1, l.Accumulator().Size())
}

func TestLedgerCheckAnchors(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Accumulator().Insert(randomCommitment(t))
	require.NoError(t, err)
	sealed := l.Accumulator().Seal()

	ephemeralAnchor, err := shielded.RandomAnchor(shielded.Rand())
	require.NoError(t, err)

	// A membership-checked spend against a sealed root plus an ephemeral
	// spend with an arbitrary anchor.
	tx := txWithActions([shielded.NumNotes]shielded.Action{
		{Anchor: sealed, Nullifier: randomNullifier(t), OutputCommitment: randomCommitment(t), IsMerkleChecked: true},
		{Anchor: ephemeralAnchor, Nullifier: randomNullifier(t), OutputCommitment: randomCommitment(t)},
	})
	require.NoError(t, l.CheckAnchors(tx))

	// The same arbitrary anchor on a membership-checked spend is rejected.
	tx = txWithActions([shielded.NumNotes]shielded.Action{
		{Anchor: ephemeralAnchor, Nullifier: randomNullifier(t), OutputCommitment: randomCommitment(t), IsMerkleChecked: true},
		{Anchor: ephemeralAnchor, Nullifier: randomNullifier(t), OutputCommitment: randomCommitment(t)},
	})
	require.ErrorIs(t, l.CheckAnchors(tx), ErrUnknownAnchor)
}

func TestLedgerApplyWriteFailureLeavesMemory(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir + "/ledger.db")
	require.NoError(t, err)

	_, err = l.Accumulator().Insert(randomCommitment(t))
	require.NoError(t, err)
	root := l.Accumulator().CurrentRoot()

	// Closing the store forces the batch write to fail; the accumulator
	// must not have advanced, so the root stays unsealed.
	require.NoError(t, l.db.Close())
	tx := shielded.BuildTransaction(nil, nil)
	require.Error(t, l.Apply(nil, tx))
	require.False(t, l.Accumulator().IsValidAnchor(root))
	require.Equal(t, 1, l.Accumulator().Size())
}

func TestLedgerPersistence(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir + "/ledger.db")
	require.NoError(t, err)

	// Persist state through the store directly, as Apply would.
	cm := randomCommitment(t)
	_, err = l.acc.insertLocked(cm)
	require.NoError(t, err)
	cmElem := cm.Inner()
	b := cmElem.Bytes()
	require.NoError(t, l.db.Put(leafKey(0), b[:], nil))

	nf := randomNullifier(t)
	l.acc.markSpentLocked(nf)
	nfElem := nf.Inner()
	nb := nfElem.Bytes()
	require.NoError(t, l.db.Put(append(append([]byte(nil), prefixNullifier...), nb[:]...), nil, nil))

	root := l.acc.sealLocked()
	rootElem := root.Inner()
	rb := rootElem.Bytes()
	require.NoError(t, l.db.Put(append(append([]byte(nil), prefixAnchor...), rb[:]...), nil, nil))
	require.NoError(t, l.Close())

	// Reopen and replay.
	l2, err := Open(dir + "/ledger.db")
	require.NoError(t, err)
	defer l2.Close()
	require.Equal(t, 1, l2.Accumulator().Size())
	require.Equal(t, []shielded.Commitment{cm}, l2.Accumulator().Commitments())
	require.True(t, l2.Accumulator().IsNullifierSpent(nf))
	require.True(t, l2.Accumulator().IsValidAnchor(root))
}
