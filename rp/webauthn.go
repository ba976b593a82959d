package rp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"passkey-server/credential"
)

const (
	webauthnSessionTTL   = 5 * time.Minute
	sessionCleanInterval = 5 * time.Minute
)

// handleNamespace keeps subject handles stable across restarts: the
// same identifier always maps to the same opaque 16-byte handle, so
// re-registration never forks a second relying-party account.
var handleNamespace = uuid.MustParse("9b7dbd32-9e9f-4a5e-8a1b-3f1f6d1c4b70")

type WebAuthnConfig struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// WebAuthnVerifier is the in-process relying party. It keeps its own
// short-lived webauthn session data per (kind, subject), retrieved
// destructively on verify.
type WebAuthnVerifier struct {
	web      *webauthn.WebAuthn
	creds    credential.Repository
	rpID     string
	sessions cmap.ConcurrentMap[string, *verifierSession]
	stop     chan struct{}
}

type verifierSession struct {
	data    *webauthn.SessionData
	expires time.Time
}

func NewWebAuthnVerifier(cfg WebAuthnConfig, creds credential.Repository) (*WebAuthnVerifier, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			RequireResidentKey: protocol.ResidentKeyNotRequired(),
			ResidentKey:        protocol.ResidentKeyRequirementDiscouraged,
			UserVerification:   protocol.VerificationRequired,
		},
		EncodeUserIDAsString: true,
	})
	if err != nil {
		return nil, err
	}

	verifier := &WebAuthnVerifier{
		web:      web,
		creds:    creds,
		rpID:     cfg.RPID,
		sessions: cmap.New[*verifierSession](),
		stop:     make(chan struct{}),
	}
	verifier.startSessionCleaner()
	return verifier, nil
}

func (v *WebAuthnVerifier) storeSession(kind, subject string, data *webauthn.SessionData) {
	v.sessions.Set(kind+"|"+subject, &verifierSession{
		data:    data,
		expires: time.Now().Add(webauthnSessionTTL),
	})
}

func (v *WebAuthnVerifier) takeSession(kind, subject string) (*webauthn.SessionData, bool) {
	var entry *verifierSession
	v.sessions.RemoveCb(kind+"|"+subject, func(_ string, val *verifierSession, exists bool) bool {
		if exists {
			entry = val
		}
		return true
	})
	if entry == nil || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.data, true
}

func (v *WebAuthnVerifier) startSessionCleaner() {
	go func() {
		ticker := time.NewTicker(sessionCleanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				for entry := range v.sessions.IterBuffered() {
					if now.After(entry.Val.expires) {
						v.sessions.Remove(entry.Key)
					}
				}
			case <-v.stop:
				return
			}
		}
	}()
}

// Close stops the background session cleaner.
func (v *WebAuthnVerifier) Close() {
	close(v.stop)
}

func subjectHandle(subject string) []byte {
	handle := uuid.NewSHA1(handleNamespace, []byte(subject))
	return handle[:]
}

func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func decodeCredentialID(id string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(id)
}

// webauthnUser adapts a subject plus its stored credentials to the
// webauthn.User interface.
type webauthnUser struct {
	handle      []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return u.handle }
func (u *webauthnUser) WebAuthnName() string                       { return u.name }
func (u *webauthnUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
func (u *webauthnUser) WebAuthnIcon() string                       { return "" }

func (v *WebAuthnVerifier) userFor(ctx context.Context, subject, displayName string) (*webauthnUser, error) {
	stored, err := v.creds.ByOwner(ctx, subject)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = subject
	}
	user := &webauthnUser{
		handle:      subjectHandle(subject),
		name:        subject,
		displayName: displayName,
	}
	for _, cred := range stored {
		if !cred.Active {
			continue
		}
		id, err := decodeCredentialID(cred.ID)
		if err != nil {
			continue
		}
		user.credentials = append(user.credentials, webauthn.Credential{
			ID:        id,
			PublicKey: cred.PublicKey,
			Authenticator: webauthn.Authenticator{
				SignCount: cred.SignatureCounter,
			},
		})
	}
	return user, nil
}

func (v *WebAuthnVerifier) BeginRegistration(ctx context.Context, subject, displayName string) (*RegistrationChallenge, error) {
	user, err := v.userFor(ctx, subject, displayName)
	if err != nil {
		return nil, err
	}

	opts := []webauthn.RegistrationOption{}
	if len(user.credentials) > 0 {
		exclusions := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
		for _, cred := range user.credentials {
			exclusions = append(exclusions, protocol.CredentialDescriptor{
				Type:         protocol.PublicKeyCredentialType,
				CredentialID: cred.ID,
			})
		}
		opts = append(opts, webauthn.WithExclusions(exclusions))
	}

	options, session, err := v.web.BeginRegistration(user, opts...)
	if err != nil {
		return nil, err
	}
	v.storeSession("registration", subject, session)

	algorithms := make([]int64, 0, len(options.Response.Parameters))
	for _, param := range options.Response.Parameters {
		algorithms = append(algorithms, int64(param.Algorithm))
	}

	return &RegistrationChallenge{
		Challenge: options.Response.Challenge,
		RelyingParty: RelyingPartyInfo{
			ID:   v.web.Config.RPID,
			Name: v.web.Config.RPDisplayName,
		},
		SubjectHandle: user.handle,
		Algorithms:    algorithms,
	}, nil
}

func (v *WebAuthnVerifier) VerifyRegistration(ctx context.Context, att *Attestation) (*RegistrationResult, error) {
	session, ok := v.takeSession("registration", att.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: no pending registration for subject", ErrRejected)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(att.Response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	user, err := v.userFor(ctx, att.Subject, session.UserDisplayName)
	if err != nil {
		return nil, err
	}

	cred, err := v.web.CreateCredential(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	id := encodeCredentialID(cred.ID)
	for _, existing := range user.credentials {
		if bytes.Equal(existing.ID, cred.ID) {
			return nil, ErrAlreadyRegistered
		}
	}

	return &RegistrationResult{
		CredentialID:   id,
		PublicKey:      cred.PublicKey,
		InitialCounter: cred.Authenticator.SignCount,
	}, nil
}

func (v *WebAuthnVerifier) BeginAuthentication(ctx context.Context, subject string) (*AuthenticationChallenge, error) {
	user, err := v.userFor(ctx, subject, "")
	if err != nil {
		return nil, err
	}
	if len(user.credentials) == 0 {
		return nil, ErrNoCredentials
	}

	allowed := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
	allowedIDs := make([]string, 0, len(user.credentials))
	for _, cred := range user.credentials {
		allowed = append(allowed, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		})
		allowedIDs = append(allowedIDs, encodeCredentialID(cred.ID))
	}

	options, session, err := v.web.BeginLogin(user, webauthn.WithAllowedCredentials(allowed))
	if err != nil {
		return nil, err
	}
	v.storeSession("authentication", subject, session)

	return &AuthenticationChallenge{
		Challenge:            options.Response.Challenge,
		RelyingPartyID:       v.rpID,
		AllowedCredentialIDs: allowedIDs,
	}, nil
}

func (v *WebAuthnVerifier) VerifyAuthentication(ctx context.Context, as *Assertion) (*AuthenticationResult, error) {
	session, ok := v.takeSession("authentication", as.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: no pending authentication for subject", ErrRejected)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(as.Response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	user, err := v.userFor(ctx, as.Subject, "")
	if err != nil {
		return nil, err
	}

	validated, err := v.web.ValidateLogin(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if validated.Authenticator.CloneWarning {
		return nil, fmt.Errorf("%w: clone warning on assertion", ErrRejected)
	}

	return &AuthenticationResult{
		CredentialID: encodeCredentialID(validated.ID),
		NewCounter:   validated.Authenticator.SignCount,
	}, nil
}
