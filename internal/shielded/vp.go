// vp.go - Validity predicate contract.
//
// A partial transaction treats heterogeneous VP implementations uniformly:
// every note carries exactly one governing predicate and zero or more
// auxiliary ("dynamic") predicates, each producing an independently checked
// VerifyingInfo.

package shielded

import "shielded/internal/proving"

// ValidityPredicate is implemented by every application circuit. A VP
// inspects a fixed-arity window of input and output notes plus the identity
// of the note it governs, and proves its constraints hold.
type ValidityPredicate interface {
	// GenerateProof compiles (if needed) and proves the predicate,
	// returning the uniform verifying info. Witness-level violations must
	// surface as ErrWitness before the expensive proving step.
	GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error)
}

// VerifyingInfoSet is the proof bundle of a single note: the governing
// application proof plus any dynamic predicate proofs.
type VerifyingInfoSet struct {
	App     *proving.VerifyingInfo
	Dynamic []*proving.VerifyingInfo
}
