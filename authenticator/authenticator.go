// Package authenticator defines the contract between the ceremony
// machine and the device-resident platform authenticator. The server
// never touches key material; it ships a challenge out, waits for the
// user to confirm with a biometric, and gets a signed response back.
package authenticator

import (
	"context"
	"errors"
	"time"
)

// DefaultPromptTimeout bounds how long a prompt may wait on the user
// before it resolves as a timeout failure instead of hanging.
const DefaultPromptTimeout = 60 * time.Second

var (
	ErrCancelled    = errors.New("authenticator: user cancelled")
	ErrTimeout      = errors.New("authenticator: prompt timed out")
	ErrNotSupported = errors.New("authenticator: user verification not supported")
	ErrUnavailable  = errors.New("authenticator: device channel unavailable")
)

type RelyingParty struct {
	ID   string
	Name string
}

type UserHandle struct {
	Handle      []byte
	Name        string
	DisplayName string
}

// CreationRequest asks the authenticator to mint a new key pair bound
// to the relying party, confirmed by a user-verifying gesture.
type CreationRequest struct {
	Challenge    []byte
	RelyingParty RelyingParty
	User         UserHandle
	Algorithms   []int64
}

// AttestationResult carries the authenticator's raw credential
// creation response, opaque to everything but the verifier.
type AttestationResult struct {
	Response []byte
}

// AssertionRequest asks the authenticator to sign a challenge with one
// of the allowed credentials.
type AssertionRequest struct {
	Challenge            []byte
	RelyingPartyID       string
	AllowedCredentialIDs []string
}

type AssertionResult struct {
	CredentialID string
	Response     []byte
}

// Platform is the device-side authenticator as seen by the server.
// Available doubles as the capability probe used during detection.
// Register and Sign suspend until the user completes or cancels, or
// ctx expires; implementations return ErrTimeout / ErrCancelled
// rather than hanging.
type Platform interface {
	Available(ctx context.Context) (bool, error)
	Register(ctx context.Context, req *CreationRequest) (*AttestationResult, error)
	Sign(ctx context.Context, req *AssertionRequest) (*AssertionResult, error)
}
