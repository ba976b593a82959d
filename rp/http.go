package rp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"passkey-server/device"
)

// DefaultHTTPTimeout is the client-side bound on one verifier
// round-trip; distinct from the authenticator prompt timeout.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPVerifier talks to a remote relying-party verifier over JSON.
// Transport failures come back wrapped in ErrNetwork so the translator
// can mark them retryable.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type beginRegisterRequest struct {
	Subject     string
	DisplayName string
}

type beginRegisterResponse struct {
	Challenge     []byte
	RPID          string
	RPName        string
	SubjectHandle []byte
	Algorithms    []int64
}

type finishRegisterRequest struct {
	Subject  string
	Response []byte
	Profile  *device.Profile
}

type finishRegisterResponse struct {
	Accepted       bool
	CredentialID   string
	PublicKey      []byte
	InitialCounter uint32
}

type beginAuthRequest struct {
	Subject string
}

type beginAuthResponse struct {
	Challenge            []byte
	RPID                 string
	AllowedCredentialIDs []string
}

type finishAuthRequest struct {
	Subject  string
	Response []byte
}

type finishAuthResponse struct {
	Accepted     bool
	CredentialID string
	NewCounter   uint32
}

func (v *HTTPVerifier) post(ctx context.Context, path string, in, out any) error {
	body, err := jsoniter.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNoCredentials
	case http.StatusConflict:
		return ErrAlreadyRegistered
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return ErrRejected
	default:
		return fmt.Errorf("%w: verifier returned status %d", ErrNetwork, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return jsoniter.Unmarshal(raw, out)
}

func (v *HTTPVerifier) BeginRegistration(ctx context.Context, subject, displayName string) (*RegistrationChallenge, error) {
	out := new(beginRegisterResponse)
	err := v.post(ctx, "/begin-register", &beginRegisterRequest{Subject: subject, DisplayName: displayName}, out)
	if err != nil {
		return nil, err
	}
	return &RegistrationChallenge{
		Challenge:     out.Challenge,
		RelyingParty:  RelyingPartyInfo{ID: out.RPID, Name: out.RPName},
		SubjectHandle: out.SubjectHandle,
		Algorithms:    out.Algorithms,
	}, nil
}

func (v *HTTPVerifier) VerifyRegistration(ctx context.Context, att *Attestation) (*RegistrationResult, error) {
	out := new(finishRegisterResponse)
	err := v.post(ctx, "/finish-register", &finishRegisterRequest{
		Subject:  att.Subject,
		Response: att.Response,
		Profile:  att.Profile,
	}, out)
	if err != nil {
		return nil, err
	}
	if !out.Accepted {
		return nil, ErrRejected
	}
	return &RegistrationResult{
		CredentialID:   out.CredentialID,
		PublicKey:      out.PublicKey,
		InitialCounter: out.InitialCounter,
	}, nil
}

func (v *HTTPVerifier) BeginAuthentication(ctx context.Context, subject string) (*AuthenticationChallenge, error) {
	out := new(beginAuthResponse)
	err := v.post(ctx, "/begin-auth", &beginAuthRequest{Subject: subject}, out)
	if err != nil {
		return nil, err
	}
	return &AuthenticationChallenge{
		Challenge:            out.Challenge,
		RelyingPartyID:       out.RPID,
		AllowedCredentialIDs: out.AllowedCredentialIDs,
	}, nil
}

func (v *HTTPVerifier) VerifyAuthentication(ctx context.Context, as *Assertion) (*AuthenticationResult, error) {
	out := new(finishAuthResponse)
	err := v.post(ctx, "/finish-auth", &finishAuthRequest{Subject: as.Subject, Response: as.Response}, out)
	if err != nil {
		return nil, err
	}
	if !out.Accepted {
		return nil, ErrRejected
	}
	return &AuthenticationResult{
		CredentialID: out.CredentialID,
		NewCounter:   out.NewCounter,
	}, nil
}
