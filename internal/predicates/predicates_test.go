package predicates

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/stretchr/testify/require"

	"shielded/internal/proving"
	"shielded/internal/shielded"
)

// chainedWindow builds a valid note window: two unchecked spends, each
// output chained to its spend's nullifier.
func chainedWindow(t *testing.T) (inputs, outputs [shielded.NumNotes]shielded.Note) {
	t.Helper()
	rng := shielded.Rand()
	var appVK fr.Element
	appVK.SetUint64(77)
	for i := 0; i < shielded.NumNotes; i++ {
		in, err := shielded.RandomPaddingInputNote(rng, appVK)
		require.NoError(t, err)
		nf, err := in.Nullifier()
		require.NoError(t, err)
		out, err := shielded.RandomPaddingOutputNote(rng, appVK, nf)
		require.NoError(t, err)
		inputs[i] = in
		outputs[i] = out
	}
	return inputs, outputs
}

func TestNoteContextInstance(t *testing.T) {
	inputs, outputs := chainedWindow(t)

	ctx, err := NewInputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)
	nf, err := inputs[0].Nullifier()
	require.NoError(t, err)
	require.Equal(t, nf.Inner(), ctx.OwnedNoteID)

	publics, err := ctx.instance()
	require.NoError(t, err)
	require.Len(t, publics, 1+2*shielded.NumNotes)
	require.Equal(t, ctx.OwnedNoteID, publics[0])
	require.Equal(t, outputs[1].Commitment().Inner(), publics[2*shielded.NumNotes])

	// Output contexts own the commitment instead.
	octx, err := NewOutputNoteContext(inputs, outputs, 1)
	require.NoError(t, err)
	require.Equal(t, outputs[1].Commitment().Inner(), octx.OwnedNoteID)

	_, err = NewInputNoteContext(inputs, outputs, shielded.NumNotes)
	require.ErrorIs(t, err, shielded.ErrWitness)
}

func TestMandatoryAssignmentRequiresKeys(t *testing.T) {
	inputs, outputs := chainedWindow(t)
	inputs[1].NkContainer = inputs[1].NkContainer.ToCommitment()

	ctx := NoteContext{OwnedNoteID: outputs[0].Commitment().Inner(), Inputs: inputs, Outputs: outputs}
	_, _, err := ctx.mandatoryAssignment()
	require.ErrorIs(t, err, shielded.ErrWitness)
}

func TestSchnorrSignature(t *testing.T) {
	rng := shielded.Rand()
	key, err := GenerateAuthorizationKey(rng)
	require.NoError(t, err)

	msg := make([]fr.Element, 4)
	for i := range msg {
		msg[i].SetUint64(uint64(i + 100))
	}
	sig, err := key.Sign(rng, msg)
	require.NoError(t, err)
	require.NoError(t, sig.Verify(key.Pk, msg))

	// Tampered message fails.
	msg[0].SetUint64(999)
	require.ErrorIs(t, sig.Verify(key.Pk, msg), shielded.ErrWitness)

	// Wrong key fails.
	msg[0].SetUint64(100)
	other, err := GenerateAuthorizationKey(rng)
	require.NoError(t, err)
	require.ErrorIs(t, sig.Verify(other.Pk, msg), shielded.ErrWitness)
}

func TestTokenEncoding(t *testing.T) {
	require.NotEqual(t, EncodeTokenName("btc"), EncodeTokenName("eth"))
	require.Equal(t, EncodeTokenName("btc"), Token{Name: "btc", Value: 5}.Encode())

	rng := shielded.Rand()
	key, err := GenerateAuthorizationKey(rng)
	require.NoError(t, err)
	var vk fr.Element
	vk.SetUint64(9)
	auth := TokenAuthorization{Key: key, AuthVK: vk}

	// Deterministic commitment, sensitive to the verifying key.
	require.Equal(t, auth.AppDataDynamic(), auth.AppDataDynamic())
	other := auth
	other.AuthVK.SetUint64(10)
	require.NotEqual(t, auth.AppDataDynamic(), other.AppDataDynamic())
}

func TestTokenPredicatePrecheck(t *testing.T) {
	rng := shielded.Rand()
	key, err := GenerateAuthorizationKey(rng)
	require.NoError(t, err)
	var authVK fr.Element
	authVK.SetUint64(11)
	auth := TokenAuthorization{Key: key, AuthVK: authVK}
	token := Token{Name: "btc", Value: 3}

	var appVK fr.Element
	appVK.SetUint64(77)
	nk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	rho, err := shielded.RandomNullifier(rng)
	require.NoError(t, err)
	rseed, err := shielded.NewRandomSeed(rng)
	require.NoError(t, err)
	note := shielded.NewNote(appVK, token.Encode(), auth.AppDataDynamic(), token.Value, nk, rho, false, rseed)

	inputs, outputs := chainedWindow(t)
	inputs[0] = note
	nf, err := note.Nullifier()
	require.NoError(t, err)
	out, err := shielded.RandomPaddingOutputNote(rng, appVK, nf)
	require.NoError(t, err)
	outputs[0] = out

	ctx, err := NewInputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)

	vp := &TokenValidityPredicate{Ctx: ctx, Token: token, Auth: auth}
	require.NoError(t, vp.checkOwnedToken())

	// A mismatched name is caught before any proving work.
	wrongName := &TokenValidityPredicate{Ctx: ctx, Token: Token{Name: "eth", Value: 3}, Auth: auth}
	_, err = wrongName.GenerateProof(nil)
	require.ErrorIs(t, err, shielded.ErrWitness)

	// So is a substituted authorization key.
	otherKey, err := GenerateAuthorizationKey(rng)
	require.NoError(t, err)
	wrongAuth := &TokenValidityPredicate{Ctx: ctx, Token: token, Auth: TokenAuthorization{Key: otherKey, AuthVK: authVK}}
	_, err = wrongAuth.GenerateProof(nil)
	require.ErrorIs(t, err, shielded.ErrWitness)
}

func TestContextWireRoundTrip(t *testing.T) {
	inputs, outputs := chainedWindow(t)
	ctx, err := NewInputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)

	data, err := encodeContext(ctx)
	require.NoError(t, err)
	back, err := decodeContext(data)
	require.NoError(t, err)
	require.Equal(t, ctx, back)

	_, err = decodeContext([]byte{0x01})
	require.Error(t, err)
}

func TestPortableValidation(t *testing.T) {
	// Too few public inputs.
	_, _, err := CompilePortable(PortableDescription{NumPublic: 2})
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)

	// Gate reads past the tape.
	_, _, err = CompilePortable(PortableDescription{
		NumPublic: 5,
		Gates:     []PortableGate{{Op: OpAdd, A: 0, B: 7}},
	})
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)

	// Unknown opcode.
	_, _, err = CompilePortable(PortableDescription{
		NumPublic: 5,
		Gates:     []PortableGate{{Op: 9, A: 0, B: 1}},
	})
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)

	// Assertion out of range.
	_, _, err = CompilePortable(PortableDescription{
		NumPublic:  5,
		AssertZero: []int{5},
	})
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)

	// A well-formed description compiles and gets a stable id.
	desc := PortableDescription{
		NumPublic: 5,
		Gates:     []PortableGate{{Op: OpSub, A: 1, B: 2}},
	}
	_, id1, err := CompilePortable(desc)
	require.NoError(t, err)
	_, id2, err := CompilePortable(desc)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	desc.Gates[0].Op = OpAdd
	_, id3, err := CompilePortable(desc)
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}

func TestByteCodeRejectsUnknownKind(t *testing.T) {
	eng := proving.NewEngine()
	_, err := ByteCode{Version: 1, Kind: 42}.GenerateProof(eng)
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)
	_, err = ByteCode{Version: 9, Kind: RepresentationTrivial}.GenerateProof(eng)
	require.ErrorIs(t, err, proving.ErrCircuitCompilation)
}

func TestTrivialPredicateProof(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	eng := proving.NewEngine()
	inputs, outputs := chainedWindow(t)
	ctx, err := NewInputNoteContext(inputs, outputs, 0)
	require.NoError(t, err)

	vp := &TrivialValidityPredicate{Ctx: ctx}
	info, err := vp.GenerateProof(eng)
	require.NoError(t, err)
	require.NoError(t, eng.Verify(info))
	require.Len(t, info.PublicInputs, 1+2*shielded.NumNotes)

	// The same proof flows through the bytecode path.
	bc, err := TrivialByteCode(ctx)
	require.NoError(t, err)
	info2, err := bc.GenerateProof(eng)
	require.NoError(t, err)
	require.NoError(t, eng.Verify(info2))
	require.Equal(t, info.PublicInputs, info2.PublicInputs)
}

func TestPortableProof(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	eng := proving.NewEngine()

	// Circuit: public[0] - private[0] == 0, with the mandatory-width
	// public prefix.
	desc := PortableDescription{
		NumPublic:  5,
		NumPrivate: 1,
		Gates:      []PortableGate{{Op: OpSub, A: 0, B: 5}},
		AssertZero: []int{6},
	}
	var v fr.Element
	v.SetUint64(21)
	vb := v.Bytes()
	var zero fr.Element
	zb := zero.Bytes()
	assignment := PortableAssignment{
		Public:  [][]byte{vb[:], zb[:], zb[:], zb[:], zb[:]},
		Private: [][]byte{vb[:]},
	}

	info, err := ProvePortable(eng, desc, assignment)
	require.NoError(t, err)
	require.NoError(t, eng.Verify(info))

	// Arity mismatches fail as witness errors.
	_, err = ProvePortable(eng, desc, PortableAssignment{Public: assignment.Public})
	require.ErrorIs(t, err, shielded.ErrWitness)
}

func TestSwapFill(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	rng := shielded.Rand()
	eng := proving.NewEngine()

	auth, err := NewTokenAuthorization(rng, eng)
	require.NoError(t, err)
	nk, err := shielded.RandomNullifierKey(rng)
	require.NoError(t, err)
	rho, err := shielded.RandomNullifier(rng)
	require.NoError(t, err)

	sell := Token{Name: "btc", Value: 2}
	buy := Token{Name: "eth", Value: 10}
	sellNote, err := NewTokenNote(rng, eng, sell, auth, nk, rho)
	require.NoError(t, err)

	sw, err := NewSwap(rng, eng, sell, buy, auth, sellNote)
	require.NoError(t, err)

	// The intent note is reproducible and chained to the sell note.
	intent1 := sw.CreateIntentNote()
	intent2 := sw.CreateIntentNote()
	require.Equal(t, intent1, intent2)
	sellNf, err := sellNote.Nullifier()
	require.NoError(t, err)
	require.Equal(t, sellNf, intent1.Rho)
	require.False(t, intent1.IsMerkleChecked)

	// Partial fill: 5 of 10 eth buys 1 of 2 btc, 1 btc returned.
	inputs, outputs, err := sw.Fill(rng, eng, Token{Name: "eth", Value: 5})
	require.NoError(t, err)
	require.Equal(t, intent1, inputs[0])
	require.Equal(t, uint64(5), outputs[0].Value)
	require.Equal(t, uint64(1), outputs[1].Value)
	require.Equal(t, EncodeTokenName("eth"), outputs[0].AppDataStatic)
	require.Equal(t, EncodeTokenName("btc"), outputs[1].AppDataStatic)

	// Full fill leaves no remainder.
	_, outputs, err = sw.Fill(rng, eng, Token{Name: "eth", Value: 10})
	require.NoError(t, err)
	require.Equal(t, uint64(10), outputs[0].Value)
	require.Zero(t, outputs[1].Value)

	// Wrong token, oversized and non-divisible offers are rejected.
	_, _, err = sw.Fill(rng, eng, Token{Name: "btc", Value: 5})
	require.ErrorIs(t, err, shielded.ErrWitness)
	_, _, err = sw.Fill(rng, eng, Token{Name: "eth", Value: 11})
	require.ErrorIs(t, err, shielded.ErrWitness)
	_, _, err = sw.Fill(rng, eng, Token{Name: "eth", Value: 3})
	require.ErrorIs(t, err, shielded.ErrWitness)
}
