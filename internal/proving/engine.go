// engine.go - Groth16 proving engine handle.
//
// The core treats proving as an opaque, possibly slow service. The Engine
// compiles each circuit shape once, lazily, and caches the proving and
// verifying keys in memory and optionally on disk. Tests construct their
// own engine, so nothing here is a process-wide static.

package proving

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

var (
	// ErrCircuitCompilation marks a circuit description that does not
	// compile to a constraint system.
	ErrCircuitCompilation = errors.New("circuit compilation failed")

	// ErrProofGeneration marks a proving backend failure.
	ErrProofGeneration = errors.New("proof generation failed")

	// ErrProofVerification marks a proof that does not verify against its
	// claimed public instance. Never retried: retrying cannot fix an
	// invalid proof.
	ErrProofVerification = errors.New("proof verification failed")
)

// VerifyingInfo is the uniform output of proof generation for any VP kind:
// the verifying key, the proof, and the public instance it attests to.
type VerifyingInfo struct {
	VK            groth16.VerifyingKey
	Proof         groth16.Proof
	PublicWitness witness.Witness
	// PublicInputs mirrors the public witness as raw field elements so
	// callers can cross-check them against transaction data.
	PublicInputs []fr.Element
}

// circuitSetup is the compiled constraint system plus its Groth16 keys.
type circuitSetup struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Engine compiles, proves and verifies VP circuits over BW6-761.
type Engine struct {
	field  *big.Int
	keyDir string

	mu     sync.Mutex
	setups map[string]*circuitSetup
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyDir caches Groth16 keys under dir, keyed by circuit ID, so
// repeated runs skip the expensive setup.
func WithKeyDir(dir string) Option {
	return func(e *Engine) { e.keyDir = dir }
}

// NewEngine creates an engine with an empty setup cache.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		field:  ecc.BW6_761.ScalarField(),
		setups: make(map[string]*circuitSetup),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Field returns the scalar field all engine circuits are compiled over.
func (e *Engine) Field() *big.Int { return e.field }

// setupFor returns the cached setup for circuitID, compiling and running
// Groth16 setup on first use.
func (e *Engine) setupFor(circuitID string, blueprint frontend.Circuit) (*circuitSetup, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.setups[circuitID]; ok {
		return s, nil
	}
	ccs, err := frontend.Compile(e.field, r1cs.NewBuilder, blueprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCircuitCompilation, circuitID, err)
	}
	pk, vk, err := e.loadOrSetup(circuitID, ccs)
	if err != nil {
		return nil, err
	}
	s := &circuitSetup{ccs: ccs, pk: pk, vk: vk}
	e.setups[circuitID] = s
	return s, nil
}

// loadOrSetup loads cached keys from disk when a key directory is
// configured, generating and saving them otherwise.
func (e *Engine) loadOrSetup(circuitID string, ccs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if e.keyDir != "" {
		pk, vk, err := loadKeys(e.keyPaths(circuitID))
		if err == nil {
			return pk, vk, nil
		}
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup for %s: %w", circuitID, err)
	}
	if e.keyDir != "" {
		pkPath, vkPath := e.keyPaths(circuitID)
		if err := saveKeys(pkPath, vkPath, pk, vk); err != nil {
			return nil, nil, err
		}
	}
	return pk, vk, nil
}

func (e *Engine) keyPaths(circuitID string) (string, string) {
	return filepath.Join(e.keyDir, circuitID+".pk"),
		filepath.Join(e.keyDir, circuitID+".vk")
}

// Prove compiles (once) and proves the circuit identified by circuitID.
// The blueprint carries the circuit shape, the assignment the full witness.
// publicInputs is the raw public instance recorded in the VerifyingInfo.
func (e *Engine) Prove(circuitID string, blueprint, assignment frontend.Circuit, publicInputs []fr.Element) (*VerifyingInfo, error) {
	setup, err := e.setupFor(circuitID, blueprint)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, e.field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: witness: %v", ErrProofGeneration, circuitID, err)
	}
	pub, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: public witness: %v", ErrProofGeneration, circuitID, err)
	}
	proof, err := groth16.Prove(setup.ccs, setup.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProofGeneration, circuitID, err)
	}
	return &VerifyingInfo{
		VK:            setup.vk,
		Proof:         proof,
		PublicWitness: pub,
		PublicInputs:  append([]fr.Element(nil), publicInputs...),
	}, nil
}

// Verify checks one proof against its verifying key and public instance.
// The recorded PublicInputs must match the public witness the proof is
// verified against, so a caller cross-checking PublicInputs is bound to
// the proven statement.
func (e *Engine) Verify(info *VerifyingInfo) error {
	if info == nil || info.Proof == nil || info.VK == nil || info.PublicWitness == nil {
		return fmt.Errorf("%w: incomplete verifying info", ErrProofVerification)
	}
	vec, ok := info.PublicWitness.Vector().(fr.Vector)
	if !ok {
		return fmt.Errorf("%w: public witness over foreign field", ErrProofVerification)
	}
	if len(vec) != len(info.PublicInputs) {
		return fmt.Errorf("%w: public instance length %d does not match witness length %d",
			ErrProofVerification, len(info.PublicInputs), len(vec))
	}
	for i := range vec {
		if !vec[i].Equal(&info.PublicInputs[i]) {
			return fmt.Errorf("%w: public input %d does not match witness", ErrProofVerification, i)
		}
	}
	if err := groth16.Verify(info.Proof, info.VK, info.PublicWitness); err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerification, err)
	}
	return nil
}

// VerifyingKey returns the verifying key of a circuit, running setup if
// needed. Used to derive compressed VP identities before any proof exists.
func (e *Engine) VerifyingKey(circuitID string, blueprint frontend.Circuit) (groth16.VerifyingKey, error) {
	setup, err := e.setupFor(circuitID, blueprint)
	if err != nil {
		return nil, err
	}
	return setup.vk, nil
}

// CompressVK digests a verifying key into a single field element, the form
// in which a note refers to its governing predicate.
func CompressVK(vk groth16.VerifyingKey) (fr.Element, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return fr.Element{}, fmt.Errorf("serialize verifying key: %w", err)
	}
	digest := sha256.Sum256(buf.Bytes())
	var e fr.Element
	e.SetBytes(digest[:])
	return e, nil
}

// loadKeys reads a Groth16 key pair from disk.
func loadKeys(pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pkFile, err := os.Open(pkPath)
	if err != nil {
		return nil, nil, err
	}
	defer pkFile.Close()
	pk := groth16.NewProvingKey(ecc.BW6_761)
	if _, err := pk.ReadFrom(pkFile); err != nil {
		return nil, nil, err
	}
	vkFile, err := os.Open(vkPath)
	if err != nil {
		return nil, nil, err
	}
	defer vkFile.Close()
	vk := groth16.NewVerifyingKey(ecc.BW6_761)
	if _, err := vk.ReadFrom(vkFile); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// saveKeys writes a Groth16 key pair to disk.
func saveKeys(pkPath, vkPath string, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	if err := os.MkdirAll(filepath.Dir(pkPath), 0o755); err != nil {
		return err
	}
	pkFile, err := os.Create(pkPath)
	if err != nil {
		return err
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return err
	}
	vkFile, err := os.Create(vkPath)
	if err != nil {
		return err
	}
	defer vkFile.Close()
	_, err = vk.WriteTo(vkFile)
	return err
}
