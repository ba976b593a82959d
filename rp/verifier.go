// Package rp models the relying-party verifier: the collaborator that
// issues challenges and checks signed authenticator responses. The
// ceremony machine only sees this interface; whether the verifier runs
// in-process (WebAuthnVerifier) or across the network (HTTPVerifier)
// is wiring.
package rp

import (
	"context"
	"errors"

	"passkey-server/device"
)

var (
	ErrNoCredentials     = errors.New("rp: no eligible credentials for subject")
	ErrRejected          = errors.New("rp: verifier rejected the response")
	ErrAlreadyRegistered = errors.New("rp: authenticator already registered for this account")
	ErrNetwork           = errors.New("rp: verifier unreachable")
)

type RelyingPartyInfo struct {
	ID   string
	Name string
}

type RegistrationChallenge struct {
	Challenge     []byte
	RelyingParty  RelyingPartyInfo
	SubjectHandle []byte
	Algorithms    []int64
}

type RegistrationResult struct {
	CredentialID   string
	PublicKey      []byte
	InitialCounter uint32
}

// Attestation is the authenticator's credential creation response plus
// the capability snapshot taken when the ceremony started.
type Attestation struct {
	Subject  string
	Response []byte
	Profile  *device.Profile
}

type AuthenticationChallenge struct {
	Challenge            []byte
	RelyingPartyID       string
	AllowedCredentialIDs []string
}

type Assertion struct {
	Subject  string
	Response []byte
}

type AuthenticationResult struct {
	CredentialID string
	NewCounter   uint32
}

// Verifier is consumed by the ceremony machine. BeginAuthentication
// returns ErrNoCredentials when the subject has nothing to sign with,
// which the machine turns into a fail-fast before any prompt.
type Verifier interface {
	BeginRegistration(ctx context.Context, subject, displayName string) (*RegistrationChallenge, error)
	VerifyRegistration(ctx context.Context, att *Attestation) (*RegistrationResult, error)
	BeginAuthentication(ctx context.Context, subject string) (*AuthenticationChallenge, error)
	VerifyAuthentication(ctx context.Context, as *Assertion) (*AuthenticationResult, error)
}
