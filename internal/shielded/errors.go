// errors.go - Protocol-level error taxonomy.
//
// Construction-time failures (witness, merkle, missing key) surface before
// any proof is attempted; verification-time failures are terminal for the
// whole transaction.

package shielded

import "errors"

var (
	// ErrWitness marks a note or VP witness that does not satisfy its own
	// constraints. Always a local construction bug, never coerced.
	ErrWitness = errors.New("witness does not satisfy predicate constraints")

	// ErrMissingNullifierKey is returned when an operation requiring the
	// nullifier key is attempted on a commitment-only container.
	ErrMissingNullifierKey = errors.New("nullifier key not available: container holds a commitment")

	// ErrMerkleInconsistency is returned when a supplied anchor does not
	// match the root recomputed from a membership-checked note's path.
	ErrMerkleInconsistency = errors.New("anchor does not match recomputed merkle root")

	// ErrUnbalancedTransaction is returned when the aggregate value
	// commitment of a transaction is not the group identity.
	ErrUnbalancedTransaction = errors.New("aggregate value commitment is nonzero")

	// ErrDuplicateNullifier is returned when two nullifiers inside one
	// transaction coincide.
	ErrDuplicateNullifier = errors.New("duplicate nullifier in transaction")

	// ErrBrokenChain is returned when an output note's rho is not the
	// nullifier freshly derived from its paired spend.
	ErrBrokenChain = errors.New("output note rho does not chain to spend nullifier")
)
