package rp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passkey-server/credential"
)

func newTestVerifier(t *testing.T) (*WebAuthnVerifier, *credential.MemoryRepository) {
	t.Helper()
	repo := credential.NewMemoryRepository()
	verifier, err := NewWebAuthnVerifier(WebAuthnConfig{
		RPID:          "localhost",
		RPDisplayName: "Loan Servicing",
		RPOrigins:     []string{"http://localhost:3000"},
	}, repo)
	require.NoError(t, err)
	t.Cleanup(verifier.Close)
	return verifier, repo
}

func TestWebAuthnVerifier_BeginRegistration(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	challenge, err := verifier.BeginRegistration(context.Background(), "a@x.com", "Alice")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(challenge.Challenge), 16, "challenge needs at least 16 bytes of entropy")
	assert.Equal(t, "localhost", challenge.RelyingParty.ID)
	assert.NotEmpty(t, challenge.Algorithms)
	assert.NotEmpty(t, challenge.SubjectHandle)

	_, ok := verifier.takeSession("registration", "a@x.com")
	assert.True(t, ok, "begin must leave a pending session")
}

func TestWebAuthnVerifier_SubjectHandleStable(t *testing.T) {
	assert.Equal(t, subjectHandle("a@x.com"), subjectHandle("a@x.com"))
	assert.NotEqual(t, subjectHandle("a@x.com"), subjectHandle("b@x.com"))
	assert.Len(t, subjectHandle("a@x.com"), 16)
}

func TestWebAuthnVerifier_BeginAuthenticationNoCredentials(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	_, err := verifier.BeginAuthentication(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestWebAuthnVerifier_RevokedCredentialsNotEligible(t *testing.T) {
	verifier, repo := newTestVerifier(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, &credential.Credential{
		ID:        encodeCredentialID([]byte("cred-1")),
		Owner:     "a@x.com",
		PublicKey: []byte("pk"),
		Active:    false,
	}))

	_, err := verifier.BeginAuthentication(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestWebAuthnVerifier_BeginAuthenticationAllowsActive(t *testing.T) {
	verifier, repo := newTestVerifier(t)
	ctx := context.Background()

	id := encodeCredentialID([]byte("cred-1"))
	require.NoError(t, repo.Put(ctx, &credential.Credential{
		ID:        id,
		Owner:     "a@x.com",
		PublicKey: []byte("pk"),
		Active:    true,
	}))

	challenge, err := verifier.BeginAuthentication(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, challenge.AllowedCredentialIDs)
	assert.Equal(t, "localhost", challenge.RelyingPartyID)
}

func TestWebAuthnVerifier_SessionIsDestructive(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	_, err := verifier.BeginRegistration(context.Background(), "a@x.com", "Alice")
	require.NoError(t, err)

	_, ok := verifier.takeSession("registration", "a@x.com")
	require.True(t, ok)
	_, ok = verifier.takeSession("registration", "a@x.com")
	assert.False(t, ok, "a session never resolves twice")
}

func TestWebAuthnVerifier_VerifyWithoutSessionRejected(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	_, err := verifier.VerifyRegistration(context.Background(), &Attestation{Subject: "a@x.com", Response: []byte("{}")})
	assert.ErrorIs(t, err, ErrRejected)

	_, err = verifier.VerifyAuthentication(context.Background(), &Assertion{Subject: "a@x.com", Response: []byte("{}")})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCredentialIDEncoding(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff, 0xfe}
	decoded, err := decodeCredentialID(encodeCredentialID(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
