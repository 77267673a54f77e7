// ledger.go - Durable ledger applying verified transactions.
//
// The ledger couples the accumulator with a LevelDB store. Apply is the
// only mutation: it executes the transaction (all-or-nothing), rejects
// replayed nullifiers and unknown anchors, records the new commitments and
// seals the resulting root. Opening a path replays the stored state back
// into the accumulator.

package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// ErrSpentNullifier marks a transaction spending an already spent note.
var ErrSpentNullifier = errors.New("nullifier already spent")

// ErrUnknownAnchor marks a merkle-checked spend against a root the ledger
// never sealed.
var ErrUnknownAnchor = errors.New("unknown anchor")

// Key prefixes of the LevelDB layout. Leaves are keyed by big-endian index
// so iteration order is insertion order.
var (
	prefixLeaf      = []byte("c/")
	prefixNullifier = []byte("n/")
	prefixAnchor    = []byte("a/")
)

// Ledger is safe for concurrent use. A nil store keeps state in memory
// only.
type Ledger struct {
	mu  sync.Mutex
	acc *Accumulator
	db  *leveldb.DB
}

// Open opens (or creates) a ledger at path and replays its state. An empty
// path gives a purely in-memory ledger.
func Open(path string) (*Ledger, error) {
	l := &Ledger{acc: NewAccumulator()}
	if path == "" {
		return l, nil
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l.db = db
	if err := l.replay(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Accumulator exposes the ledger's read-side accumulator.
func (l *Ledger) Accumulator() *Accumulator { return l.acc }

// replay rebuilds the accumulator from the store.
func (l *Ledger) replay() error {
	iter := l.db.NewIterator(util.BytesPrefix(prefixLeaf), nil)
	for iter.Next() {
		var e fr.Element
		e.SetBytes(iter.Value())
		if _, err := l.acc.insertLocked(shielded.Commitment(e)); err != nil {
			iter.Release()
			return fmt.Errorf("replay leaves: %w", err)
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("replay leaves: %w", err)
	}

	iter = l.db.NewIterator(util.BytesPrefix(prefixNullifier), nil)
	for iter.Next() {
		var e fr.Element
		e.SetBytes(iter.Key()[len(prefixNullifier):])
		l.acc.markSpentLocked(shielded.Nullifier(e))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("replay nullifiers: %w", err)
	}

	iter = l.db.NewIterator(util.BytesPrefix(prefixAnchor), nil)
	for iter.Next() {
		var e fr.Element
		e.SetBytes(iter.Key()[len(prefixAnchor):])
		l.acc.anchors[shielded.Anchor(e)] = struct{}{}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("replay anchors: %w", err)
	}
	return nil
}

// Apply verifies and applies one transaction. On success every output
// commitment is inserted, every nullifier recorded, and the new root
// sealed as a valid anchor. Any failure leaves the ledger untouched: the
// batch is written to the store before the in-memory state advances.
func (l *Ledger) Apply(eng *proving.Engine, tx *shielded.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	actions := tx.Actions()
	l.acc.mu.Lock()
	defer l.acc.mu.Unlock()
	fresh := make(map[shielded.Commitment]struct{}, len(actions))
	for _, action := range actions {
		if _, ok := l.acc.nullifiers[action.Nullifier]; ok {
			nf := action.Nullifier.Inner()
			return fmt.Errorf("%w: %s", ErrSpentNullifier, nf.String())
		}
		_, inTx := fresh[action.OutputCommitment]
		_, inTree := l.acc.commitments[action.OutputCommitment]
		if inTx || inTree {
			cm := action.OutputCommitment.Inner()
			return fmt.Errorf("%w: %s", ErrDuplicateCommitment, cm.String())
		}
		fresh[action.OutputCommitment] = struct{}{}
	}

	// Proof verification holds no accumulator state, but applying stays
	// serialized so two conflicting transactions cannot interleave.
	if err := tx.Execute(eng); err != nil {
		return err
	}

	next := make([]fr.Element, len(l.acc.leaves), len(l.acc.leaves)+len(actions))
	copy(next, l.acc.leaves)
	batch := new(leveldb.Batch)
	base := len(l.acc.leaves)
	for i, action := range actions {
		next = append(next, action.OutputCommitment.Inner())
		if l.db != nil {
			nfElem := action.Nullifier.Inner()
			nf := nfElem.Bytes()
			batch.Put(append(append([]byte(nil), prefixNullifier...), nf[:]...), nil)
			cmElem := action.OutputCommitment.Inner()
			cm := cmElem.Bytes()
			batch.Put(leafKey(base+i), cm[:])
		}
	}
	root := shielded.TreeRoot(next)
	if l.db != nil {
		rbElem := root.Inner()
		rb := rbElem.Bytes()
		batch.Put(append(append([]byte(nil), prefixAnchor...), rb[:]...), nil)
		if err := l.db.Write(batch, nil); err != nil {
			return fmt.Errorf("persist transaction: %w", err)
		}
	}
	l.acc.leaves = next
	for _, action := range actions {
		l.acc.markSpentLocked(action.Nullifier)
		l.acc.commitments[action.OutputCommitment] = struct{}{}
	}
	l.acc.anchors[root] = struct{}{}
	return nil
}

// CheckAnchors validates each membership-checked action anchor against the
// sealed anchor set. Spends of ephemeral notes carry arbitrary anchors and
// are skipped. Callers run it before Apply when accepting transactions
// built against historical roots.
func (l *Ledger) CheckAnchors(tx *shielded.Transaction) error {
	for _, action := range tx.Actions() {
		if !action.IsMerkleChecked {
			continue
		}
		if !l.acc.IsValidAnchor(action.Anchor) {
			anchor := action.Anchor.Inner()
			return fmt.Errorf("%w: %s", ErrUnknownAnchor, anchor.String())
		}
	}
	return nil
}

func leafKey(index int) []byte {
	key := make([]byte, len(prefixLeaf)+8)
	copy(key, prefixLeaf)
	binary.BigEndian.PutUint64(key[len(prefixLeaf):], uint64(index))
	return key
}
