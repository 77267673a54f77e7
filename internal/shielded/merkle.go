// merkle.go - Fixed-depth commitment tree paths and anchors.
//
// The authoritative accumulator lives outside the core; this file only
// implements the client side: building an authentication path over a
// snapshot of leaves, folding a path back to its root, and generating the
// random paths used for padding and merkle-unchecked notes.

package shielded

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
)

// TreeDepth is the protocol-wide depth of the commitment tree.
const TreeDepth = 32

// Anchor is a (possibly historical) root of the commitment tree.
type Anchor fr.Element

// Inner returns the anchor as a raw field element.
func (a Anchor) Inner() fr.Element { return fr.Element(a) }

// PathNode is one level of an authentication path: the sibling hash and
// whether the current node is the right child at that level.
type PathNode struct {
	Sibling fr.Element
	IsRight bool
}

// MerklePath is a full authentication path from a leaf to the root.
type MerklePath [TreeDepth]PathNode

// hashPair hashes one tree level, left child first.
func hashPair(left, right fr.Element) fr.Element {
	return HashFields(left, right)
}

// emptyRoots[i] is the root of an all-empty subtree of height i.
var emptyRoots = func() [TreeDepth + 1]fr.Element {
	var roots [TreeDepth + 1]fr.Element
	for i := 1; i <= TreeDepth; i++ {
		roots[i] = hashPair(roots[i-1], roots[i-1])
	}
	return roots
}()

// BuildMerklePath walks up the tree over the given leaf snapshot, recording
// at each level the sibling subtree hash and the position parity bit. Absent
// subtrees hash as empty.
func BuildMerklePath(leaves []fr.Element, index int) (MerklePath, error) {
	if index < 0 || index >= len(leaves) {
		return MerklePath{}, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(leaves))
	}
	var path MerklePath
	level := append([]fr.Element(nil), leaves...)
	pos := index
	for depth := 0; depth < TreeDepth; depth++ {
		isRight := pos%2 == 1
		siblingPos := pos ^ 1
		var sibling fr.Element
		if siblingPos < len(level) {
			sibling = level[siblingPos]
		} else {
			sibling = emptyRoots[depth]
		}
		path[depth] = PathNode{Sibling: sibling, IsRight: isRight}

		// Collapse the level for the next iteration.
		next := make([]fr.Element, (len(level)+1)/2)
		for i := range next {
			left := level[2*i]
			right := emptyRoots[depth]
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			}
			next[i] = hashPair(left, right)
		}
		level = next
		pos /= 2
	}
	return path, nil
}

// Root folds the path bottom-up from the given leaf, honoring the recorded
// ordering bits. Pure function of (path, leaf); no external state.
func (p MerklePath) Root(leaf Commitment) Anchor {
	node := leaf.Inner()
	for depth := 0; depth < TreeDepth; depth++ {
		if p[depth].IsRight {
			node = hashPair(p[depth].Sibling, node)
		} else {
			node = hashPair(node, p[depth].Sibling)
		}
	}
	return Anchor(node)
}

// TreeRoot computes the current root of a leaf snapshot. An empty snapshot
// hashes as an all-empty tree.
func TreeRoot(leaves []fr.Element) Anchor {
	if len(leaves) == 0 {
		return Anchor(emptyRoots[TreeDepth])
	}
	path, _ := BuildMerklePath(leaves, 0)
	// The path of leaf 0 plus the leaf itself determines the root.
	return path.Root(Commitment(leaves[0]))
}

// RandomMerklePath generates a path of uniformly random siblings. Such paths
// pad the proving info of notes whose membership is never checked; they do
// not correspond to real tree content.
func RandomMerklePath(rng io.Reader) (MerklePath, error) {
	var path MerklePath
	var buf [8]byte
	for depth := 0; depth < TreeDepth; depth++ {
		sibling, err := randomElement(rng)
		if err != nil {
			return MerklePath{}, err
		}
		if _, err := io.ReadFull(rng, buf[:1]); err != nil {
			return MerklePath{}, fmt.Errorf("read randomness: %w", err)
		}
		path[depth] = PathNode{Sibling: sibling, IsRight: buf[0]&1 == 1}
	}
	return path, nil
}

// RandomAnchor draws a random anchor, used for merkle-unchecked spends.
func RandomAnchor(rng io.Reader) (Anchor, error) {
	e, err := randomElement(rng)
	return Anchor(e), err
}
