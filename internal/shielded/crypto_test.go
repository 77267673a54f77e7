package shielded

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/stretchr/testify/require"
)

func TestHashFieldsDeterministic(t *testing.T) {
	var a, b fr.Element
	a.SetUint64(7)
	b.SetUint64(11)

	h1 := HashFields(a, b)
	h2 := HashFields(a, b)
	require.Equal(t, h1, h2)

	// Order matters.
	h3 := HashFields(b, a)
	require.NotEqual(t, h1, h3)
}

func TestPRFDomainSeparation(t *testing.T) {
	rseed, err := NewRandomSeed(Rand())
	require.NoError(t, err)
	rho, err := RandomNullifier(Rand())
	require.NoError(t, err)

	// Psi and rcm come from the same inputs under different tags.
	require.NotEqual(t, DerivePsi(rseed, rho), DeriveRcm(rseed, rho))
}

func TestDeriveNullifierRequiresKey(t *testing.T) {
	nk, err := RandomNullifierKey(Rand())
	require.NoError(t, err)
	rho, err := RandomNullifier(Rand())
	require.NoError(t, err)
	var psi fr.Element
	psi.SetUint64(3)
	var cm Commitment

	nf1, err := DeriveNullifier(nk, rho, psi, cm)
	require.NoError(t, err)

	// A commitment-only container cannot derive a nullifier.
	_, err = DeriveNullifier(nk.ToCommitment(), rho, psi, cm)
	require.ErrorIs(t, err, ErrMissingNullifierKey)

	// Same inputs, same nullifier.
	nf2, err := DeriveNullifier(nk, rho, psi, cm)
	require.NoError(t, err)
	require.Equal(t, nf1, nf2)
}

func TestNullifierSensitivity(t *testing.T) {
	nk, err := RandomNullifierKey(Rand())
	require.NoError(t, err)
	rho, err := RandomNullifier(Rand())
	require.NoError(t, err)
	var psi fr.Element
	psi.SetUint64(3)
	var cm Commitment

	nf, err := DeriveNullifier(nk, rho, psi, cm)
	require.NoError(t, err)

	otherRho, err := RandomNullifier(Rand())
	require.NoError(t, err)
	nfOther, err := DeriveNullifier(nk, otherRho, psi, cm)
	require.NoError(t, err)
	require.NotEqual(t, nf, nfOther)
}

func TestNullifierKeyContainer(t *testing.T) {
	nk, err := RandomNullifierKey(Rand())
	require.NoError(t, err)
	require.True(t, nk.IsKey())

	key, err := nk.Key()
	require.NoError(t, err)

	com := nk.ToCommitment()
	require.False(t, com.IsKey())
	_, err = com.Key()
	require.ErrorIs(t, err, ErrMissingNullifierKey)

	// The commitment is the PRF of the key under its own domain.
	require.Equal(t, prf(DomainNkCommitment, key), com.Commitment())
	require.Equal(t, nk.Commitment(), com.Commitment())
}
