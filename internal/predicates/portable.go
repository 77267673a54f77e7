// portable.go - Gate-list circuit representation.
//
// A portable description is a flat arithmetic program over a value tape:
// public inputs, private inputs and constants first, then one tape cell
// per gate. Constraints are tape cells asserted to be zero. The tape form
// is circuit-system agnostic, so predicates can travel between provers
// that do not share Go code.

package predicates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/frontend"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// Gate opcodes of the portable representation.
const (
	OpAdd uint8 = iota + 1
	OpSub
	OpMul
)

// PortableGate combines two earlier tape cells into a new one.
type PortableGate struct {
	Op uint8 `cbor:"0,keyasint"`
	A  int   `cbor:"1,keyasint"`
	B  int   `cbor:"2,keyasint"`
}

// PortableDescription is a complete portable circuit.
type PortableDescription struct {
	NumPublic  int            `cbor:"0,keyasint"`
	NumPrivate int            `cbor:"1,keyasint"`
	Constants  [][]byte       `cbor:"2,keyasint"`
	Gates      []PortableGate `cbor:"3,keyasint"`
	AssertZero []int          `cbor:"4,keyasint"`
}

// PortableAssignment carries the input values of a portable circuit as
// canonical field encodings.
type PortableAssignment struct {
	Public  [][]byte `cbor:"0,keyasint"`
	Private [][]byte `cbor:"1,keyasint"`
}

// validate checks the description is well formed: the public prefix is at
// least the mandatory instance, every gate reads cells that exist, and
// every assertion points at a cell.
func (d *PortableDescription) validate() error {
	if d.NumPublic < 1+2*shielded.NumNotes {
		return fmt.Errorf("%w: portable circuit declares %d public inputs, need at least %d",
			proving.ErrCircuitCompilation, d.NumPublic, 1+2*shielded.NumNotes)
	}
	if d.NumPrivate < 0 {
		return fmt.Errorf("%w: negative private input count", proving.ErrCircuitCompilation)
	}
	tape := d.NumPublic + d.NumPrivate + len(d.Constants)
	for i, g := range d.Gates {
		switch g.Op {
		case OpAdd, OpSub, OpMul:
		default:
			return fmt.Errorf("%w: gate %d: unknown opcode %d", proving.ErrCircuitCompilation, i, g.Op)
		}
		if g.A < 0 || g.A >= tape || g.B < 0 || g.B >= tape {
			return fmt.Errorf("%w: gate %d reads out of tape", proving.ErrCircuitCompilation, i)
		}
		tape++
	}
	for _, idx := range d.AssertZero {
		if idx < 0 || idx >= tape {
			return fmt.Errorf("%w: assertion reads out of tape", proving.ErrCircuitCompilation)
		}
	}
	return nil
}

// id keys the description in the engine's setup cache: same description,
// same constraint system, same keys.
func (d *PortableDescription) id() (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|", d.NumPublic, d.NumPrivate)
	for _, c := range d.Constants {
		h.Write(c)
	}
	for _, g := range d.Gates {
		fmt.Fprintf(h, "%d,%d,%d;", g.Op, g.A, g.B)
	}
	for _, idx := range d.AssertZero {
		fmt.Fprintf(h, "%d;", idx)
	}
	return "vp-portable-" + hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// portableCircuit interprets a description inside the constraint system.
type portableCircuit struct {
	Public  []frontend.Variable `gnark:",public"`
	Private []frontend.Variable

	prog PortableDescription `gnark:"-"`
}

// Define implements frontend.Circuit.
func (c *portableCircuit) Define(api frontend.API) error {
	tape := make([]frontend.Variable, 0, len(c.Public)+len(c.Private)+len(c.prog.Constants)+len(c.prog.Gates))
	tape = append(tape, c.Public...)
	tape = append(tape, c.Private...)
	for _, raw := range c.prog.Constants {
		var e fr.Element
		e.SetBytes(raw)
		tape = append(tape, fv(e))
	}
	for _, g := range c.prog.Gates {
		switch g.Op {
		case OpAdd:
			tape = append(tape, api.Add(tape[g.A], tape[g.B]))
		case OpSub:
			tape = append(tape, api.Sub(tape[g.A], tape[g.B]))
		case OpMul:
			tape = append(tape, api.Mul(tape[g.A], tape[g.B]))
		}
	}
	for _, idx := range c.prog.AssertZero {
		api.AssertIsEqual(tape[idx], 0)
	}
	return nil
}

// CompilePortable validates a description and returns its circuit
// blueprint and cache id. Invalid descriptions fail with
// ErrCircuitCompilation before touching the constraint system.
func CompilePortable(desc PortableDescription) (*portableCircuit, string, error) {
	if err := desc.validate(); err != nil {
		return nil, "", err
	}
	id, err := desc.id()
	if err != nil {
		return nil, "", err
	}
	blueprint := &portableCircuit{
		Public:  make([]frontend.Variable, desc.NumPublic),
		Private: make([]frontend.Variable, desc.NumPrivate),
		prog:    desc,
	}
	return blueprint, id, nil
}

// ProvePortable compiles (validated, cached) and proves a portable circuit
// over the given assignment.
func ProvePortable(eng *proving.Engine, desc PortableDescription, assignment PortableAssignment) (*proving.VerifyingInfo, error) {
	blueprint, id, err := CompilePortable(desc)
	if err != nil {
		return nil, err
	}
	if len(assignment.Public) != desc.NumPublic || len(assignment.Private) != desc.NumPrivate {
		return nil, fmt.Errorf("%w: portable assignment arity mismatch", shielded.ErrWitness)
	}
	publics := instanceFromBytes(assignment.Public)
	witness := &portableCircuit{
		Public:  make([]frontend.Variable, desc.NumPublic),
		Private: make([]frontend.Variable, desc.NumPrivate),
		prog:    desc,
	}
	for i, e := range publics {
		witness.Public[i] = fv(e)
	}
	for i, e := range instanceFromBytes(assignment.Private) {
		witness.Private[i] = fv(e)
	}
	return eng.Prove(id, blueprint, witness, publics)
}
