// bytecode.go - Serialized predicate representations.
//
// A solver receives predicates as data, not as Go values: a ByteCode names
// a circuit representation and carries the serialized inputs to prove it
// with. Native circuits are enumerated by kind; the portable kind carries
// a full gate-list description of the circuit itself.

package predicates

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/fxamacker/cbor/v2"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// byteCodeVersion is the reserved version byte of the bytecode wire form.
const byteCodeVersion = 1

// RepresentationKind enumerates how a predicate circuit is represented.
type RepresentationKind uint8

const (
	// RepresentationTrivial is the native trivial circuit; Inputs carry
	// the note context.
	RepresentationTrivial RepresentationKind = iota + 1
	// RepresentationPortable is a gate-list circuit description; Circuit
	// carries the description, Inputs the assignment.
	RepresentationPortable
)

// ByteCode is one predicate in transportable form.
type ByteCode struct {
	Version uint8              `cbor:"0,keyasint"`
	Kind    RepresentationKind `cbor:"1,keyasint"`
	Circuit []byte             `cbor:"2,keyasint,omitempty"`
	Inputs  []byte             `cbor:"3,keyasint"`
}

// ApplicationByteCode bundles a note's governing predicate with its
// dynamic predicates, all in transportable form.
type ApplicationByteCode struct {
	App     ByteCode   `cbor:"0,keyasint"`
	Dynamic []ByteCode `cbor:"1,keyasint"`
}

// contextWire is the CBOR form of a NoteContext.
type contextWire struct {
	Owned   []byte   `cbor:"0,keyasint"`
	Inputs  [][]byte `cbor:"1,keyasint"`
	Outputs [][]byte `cbor:"2,keyasint"`
}

func encodeContext(ctx NoteContext) ([]byte, error) {
	owned := ctx.OwnedNoteID.Bytes()
	w := contextWire{Owned: owned[:]}
	for i := range ctx.Inputs {
		b, err := ctx.Inputs[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Inputs = append(w.Inputs, b)
	}
	for i := range ctx.Outputs {
		b, err := ctx.Outputs[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Outputs = append(w.Outputs, b)
	}
	return cbor.Marshal(w)
}

func decodeContext(data []byte) (NoteContext, error) {
	var w contextWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return NoteContext{}, fmt.Errorf("decode note context: %w", err)
	}
	if len(w.Inputs) != shielded.NumNotes || len(w.Outputs) != shielded.NumNotes {
		return NoteContext{}, errors.New("decode note context: wrong window arity")
	}
	var ctx NoteContext
	ctx.OwnedNoteID.SetBytes(w.Owned)
	for i := 0; i < shielded.NumNotes; i++ {
		if err := ctx.Inputs[i].UnmarshalBinary(w.Inputs[i]); err != nil {
			return NoteContext{}, err
		}
		if err := ctx.Outputs[i].UnmarshalBinary(w.Outputs[i]); err != nil {
			return NoteContext{}, err
		}
	}
	return ctx, nil
}

// TrivialByteCode packs a trivial predicate over the given context.
func TrivialByteCode(ctx NoteContext) (ByteCode, error) {
	inputs, err := encodeContext(ctx)
	if err != nil {
		return ByteCode{}, err
	}
	return ByteCode{Version: byteCodeVersion, Kind: RepresentationTrivial, Inputs: inputs}, nil
}

// PortableByteCode packs a portable circuit description with its
// assignment.
func PortableByteCode(desc PortableDescription, assignment PortableAssignment) (ByteCode, error) {
	circuit, err := cbor.Marshal(desc)
	if err != nil {
		return ByteCode{}, err
	}
	inputs, err := cbor.Marshal(assignment)
	if err != nil {
		return ByteCode{}, err
	}
	return ByteCode{Version: byteCodeVersion, Kind: RepresentationPortable, Circuit: circuit, Inputs: inputs}, nil
}

// GenerateProof dispatches on the representation kind and proves the
// predicate.
func (b ByteCode) GenerateProof(eng *proving.Engine) (*proving.VerifyingInfo, error) {
	if b.Version != byteCodeVersion {
		return nil, fmt.Errorf("%w: unsupported bytecode version %d", proving.ErrCircuitCompilation, b.Version)
	}
	switch b.Kind {
	case RepresentationTrivial:
		ctx, err := decodeContext(b.Inputs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shielded.ErrWitness, err)
		}
		vp := &TrivialValidityPredicate{Ctx: ctx}
		return vp.GenerateProof(eng)
	case RepresentationPortable:
		var desc PortableDescription
		if err := cbor.Unmarshal(b.Circuit, &desc); err != nil {
			return nil, fmt.Errorf("%w: decode description: %v", proving.ErrCircuitCompilation, err)
		}
		var assignment PortableAssignment
		if err := cbor.Unmarshal(b.Inputs, &assignment); err != nil {
			return nil, fmt.Errorf("%w: decode assignment: %v", shielded.ErrWitness, err)
		}
		return ProvePortable(eng, desc, assignment)
	default:
		return nil, fmt.Errorf("%w: unknown representation kind %d", proving.ErrCircuitCompilation, b.Kind)
	}
}

// GenerateProofs proves the application predicate and every dynamic
// predicate of the bundle.
func (a ApplicationByteCode) GenerateProofs(eng *proving.Engine) (shielded.VerifyingInfoSet, error) {
	appInfo, err := a.App.GenerateProof(eng)
	if err != nil {
		return shielded.VerifyingInfoSet{}, err
	}
	set := shielded.VerifyingInfoSet{App: appInfo}
	for i, dyn := range a.Dynamic {
		info, err := dyn.GenerateProof(eng)
		if err != nil {
			return shielded.VerifyingInfoSet{}, fmt.Errorf("dynamic predicate %d: %w", i, err)
		}
		set.Dynamic = append(set.Dynamic, info)
	}
	return set, nil
}

// instanceFromBytes decodes raw 48-byte field encodings.
func instanceFromBytes(raw [][]byte) []fr.Element {
	out := make([]fr.Element, len(raw))
	for i := range raw {
		out[i].SetBytes(raw[i])
	}
	return out
}
