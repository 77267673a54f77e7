// accumulator.go - In-memory commitment accumulator.
//
// The accumulator is the collaborator the protocol core expects from its
// surrounding ledger: an append-only commitment tree with historical
// anchors and a spent-nullifier set. Anchors are snapshotted per applied
// transaction, so proofs built against an older tree state keep verifying.

package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"

	"shielded/internal/shielded"
)

// ErrDuplicateCommitment marks an attempt to insert a commitment the
// accumulator already holds. Two byte-identical notes are
// indistinguishable and must never coexist in the tree.
var ErrDuplicateCommitment = errors.New("duplicate note commitment")

// Accumulator is safe for concurrent use.
type Accumulator struct {
	mu          sync.RWMutex
	leaves      []fr.Element
	commitments map[shielded.Commitment]struct{}
	anchors     map[shielded.Anchor]struct{}
	nullifiers  map[shielded.Nullifier]struct{}
}

// NewAccumulator returns an empty accumulator whose empty-tree root is
// already a valid anchor.
func NewAccumulator() *Accumulator {
	a := &Accumulator{
		commitments: make(map[shielded.Commitment]struct{}),
		anchors:     make(map[shielded.Anchor]struct{}),
		nullifiers:  make(map[shielded.Nullifier]struct{}),
	}
	a.anchors[shielded.TreeRoot(nil)] = struct{}{}
	return a
}

// Insert appends a commitment and returns its leaf index. Duplicate
// commitments are rejected. The new root does not become a valid anchor
// until Seal is called.
func (a *Accumulator) Insert(cm shielded.Commitment) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.insertLocked(cm)
}

func (a *Accumulator) insertLocked(cm shielded.Commitment) (int, error) {
	if _, ok := a.commitments[cm]; ok {
		inner := cm.Inner()
		return 0, fmt.Errorf("%w: %s", ErrDuplicateCommitment, inner.String())
	}
	a.commitments[cm] = struct{}{}
	a.leaves = append(a.leaves, cm.Inner())
	return len(a.leaves) - 1, nil
}

// Seal snapshots the current root into the historical anchor set and
// returns it.
func (a *Accumulator) Seal() shielded.Anchor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealLocked()
}

func (a *Accumulator) sealLocked() shielded.Anchor {
	root := shielded.TreeRoot(a.leaves)
	a.anchors[root] = struct{}{}
	return root
}

// Path builds the authentication path of the leaf at index against the
// current tree state.
func (a *Accumulator) Path(index int) (shielded.MerklePath, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index < 0 || index >= len(a.leaves) {
		return shielded.MerklePath{}, fmt.Errorf("leaf index %d out of range", index)
	}
	return shielded.BuildMerklePath(a.leaves, index)
}

// CurrentRoot folds the current tree state without sealing it.
func (a *Accumulator) CurrentRoot() shielded.Anchor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return shielded.TreeRoot(a.leaves)
}

// IsValidAnchor reports whether anchor is a sealed historical root.
func (a *Accumulator) IsValidAnchor(anchor shielded.Anchor) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.anchors[anchor]
	return ok
}

// IsNullifierSpent reports whether the nullifier has been recorded.
func (a *Accumulator) IsNullifierSpent(nf shielded.Nullifier) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.nullifiers[nf]
	return ok
}

// markSpentLocked records a nullifier; the caller has already checked it.
func (a *Accumulator) markSpentLocked(nf shielded.Nullifier) {
	a.nullifiers[nf] = struct{}{}
}

// Size returns the number of commitments in the tree.
func (a *Accumulator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.leaves)
}

// Commitments lists all leaves, oldest first. Receivers scan it to
// recognize notes addressed to them.
func (a *Accumulator) Commitments() []shielded.Commitment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]shielded.Commitment, len(a.leaves))
	for i := range a.leaves {
		out[i] = shielded.Commitment(a.leaves[i])
	}
	return out
}
