// Package shielded implements the protocol core of a shielded-asset
// transaction scheme: notes committed into a fixed-depth accumulator,
// consumed via one-time nullifiers, governed by pluggable validity
// predicates, and composed into globally value-balanced transactions.
//
// Overview:
//   - Notes chain through rho: a new note's rho is the nullifier of the
//     note it replaces, making sequential nullifiers unpredictable to an
//     observer while letting the spender prove continuity.
//   - Partial transactions bundle exactly NumNotes spends and NumNotes
//     outputs (padding notes fill unused slots) with one proof per
//     validity predicate.
//   - Transactions aggregate partial transactions and check that the sum
//     of all blinded value commitments, taken over per-application value
//     bases, is the group identity.
//
// Security model:
//   - MiMC over the BW6-761 scalar field for commitments and PRFs, shared
//     between native code and circuits.
//   - Groth16 proofs over BW6-761 via gnark; BLS12-377 G1 for value
//     commitments with hash-to-curve per-application bases.
//   - All randomness is drawn from caller-supplied sources.
//
// The accumulator's authoritative state is owned by an external ledger;
// this package only ever reads snapshots (anchors and paths) supplied to
// it, so it holds no locks and no global mutable state.
package shielded
