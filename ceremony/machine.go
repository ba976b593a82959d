// Package ceremony drives a single passkey registration or
// authentication attempt from challenge issuance through verification,
// and owns the stores that back it: the in-flight challenge sessions
// and the session tokens minted on success.
package ceremony

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aidarkhanov/nanoid/v2"
	cmap "github.com/orcaman/concurrent-map/v2"

	"passkey-server/authenticator"
	"passkey-server/credential"
	"passkey-server/device"
	"passkey-server/rp"
)

const (
	// DefaultVerifierTimeout bounds each network round-trip to the
	// relying-party verifier, separate from the authenticator prompt
	// timeout.
	DefaultVerifierTimeout = 10 * time.Second

	eventBuffer = 16
)

type Step string

const (
	StepIdle      Step = "idle"
	StepStarted   Step = "started"
	StepPrompting Step = "prompting"
	StepVerifying Step = "verifying"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// Event is one state-machine transition, published to subscribers for
// progress UI.
type Event struct {
	Subject string
	Kind    Kind
	Step    Step
	Error   ErrorKind
}

// RegistrationRequest names the subject and the device being enrolled.
type RegistrationRequest struct {
	Subject     string
	DisplayName string
	DeviceName  string
	Profile     *device.Profile
}

type AuthenticationRequest struct {
	Subject string
	Profile *device.Profile
}

// Machine orchestrates ceremonies against injected collaborators. It
// holds no per-ceremony state of its own; everything in flight lives
// in the session store, so ceremonies for different subjects are fully
// independent.
type Machine struct {
	verifier        rp.Verifier
	sessions        *SessionStore
	credentials     *credential.Manager
	tokens          *TokenStore
	logger          *log.Logger
	promptTimeout   time.Duration
	verifierTimeout time.Duration

	subscribers cmap.ConcurrentMap[string, *subscriber]
	subSeq      uint64
}

// subscriber owns one event channel. Sends and the close race against
// each other, so both go through the mutex and a closed flag; a send
// after cancellation is simply dropped.
type subscriber struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func (s *subscriber) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func NewMachine(verifier rp.Verifier, sessions *SessionStore, credentials *credential.Manager, tokens *TokenStore, logger *log.Logger) *Machine {
	return &Machine{
		verifier:        verifier,
		sessions:        sessions,
		credentials:     credentials,
		tokens:          tokens,
		logger:          logger,
		promptTimeout:   authenticator.DefaultPromptTimeout,
		verifierTimeout: DefaultVerifierTimeout,
		subscribers:     cmap.New[*subscriber](),
	}
}

// SetTimeouts overrides the authenticator prompt and verifier
// round-trip deadlines.
func (m *Machine) SetTimeouts(prompt, verifier time.Duration) {
	if prompt > 0 {
		m.promptTimeout = prompt
	}
	if verifier > 0 {
		m.verifierTimeout = verifier
	}
}

// Subscribe returns a stream of step transitions and a cancel func.
// Slow subscribers drop events rather than stalling a ceremony; the
// channel is closed once cancel returns.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	// The sequence number keeps keys unique even if nanoid ever fails.
	seq := atomic.AddUint64(&m.subSeq, 1)
	prefix, err := nanoid.GenerateString(nanoid.DefaultAlphabet, 8)
	if err != nil {
		prefix = "sub"
	}
	key := prefix + "-" + strconv.FormatUint(seq, 10)

	sub := &subscriber{events: make(chan Event, eventBuffer)}
	m.subscribers.Set(key, sub)
	cancel := func() {
		m.subscribers.Remove(key)
		sub.close()
	}
	return sub.events, cancel
}

func (m *Machine) publish(event Event) {
	for entry := range m.subscribers.IterBuffered() {
		entry.Val.send(event)
	}
}

func (m *Machine) step(subject string, kind Kind, step Step) {
	m.publish(Event{Subject: subject, Kind: kind, Step: step})
}

func (m *Machine) fail(subject string, kind Kind, err error) Outcome {
	outcome := failed(err)
	m.publish(Event{Subject: subject, Kind: kind, Step: StepFailed, Error: outcome.Kind})
	if m.logger != nil {
		m.logger.Printf("ceremony %s failed for %s: %s (%v)", kind, subject, outcome.Kind, err)
	}
	return outcome
}

func (m *Machine) failKind(subject string, kind Kind, errKind ErrorKind) Outcome {
	m.publish(Event{Subject: subject, Kind: kind, Step: StepFailed, Error: errKind})
	return failedKind(errKind)
}

func (m *Machine) cancel(subject string, kind Kind) Outcome {
	// Back to idle: no partial state retained, the live session keeps
	// its TTL so the user can retry immediately.
	m.step(subject, kind, StepIdle)
	return cancelled()
}

func cancelledByUser(err error) bool {
	return errors.Is(err, authenticator.ErrCancelled) || errors.Is(err, context.Canceled)
}

// StartRegistration runs the full registration ceremony and blocks
// until it resolves. The credential cap is checked before the user is
// ever prompted.
func (m *Machine) StartRegistration(ctx context.Context, auth authenticator.Platform, req *RegistrationRequest) Outcome {
	subject := req.Subject

	active, err := m.credentials.ActiveCount(ctx, subject)
	if err != nil {
		return m.fail(subject, KindRegistration, err)
	}
	if active >= credential.MaxActivePerOwner {
		return m.failKind(subject, KindRegistration, KindDeviceLimitReached)
	}

	m.step(subject, KindRegistration, StepStarted)

	beginCtx, cancelBegin := context.WithTimeout(ctx, m.verifierTimeout)
	challenge, err := m.verifier.BeginRegistration(beginCtx, subject, req.DisplayName)
	cancelBegin()
	if err != nil {
		return m.fail(subject, KindRegistration, err)
	}

	session, err := m.sessions.Create(subject, KindRegistration, challenge.Challenge)
	if err != nil {
		return m.fail(subject, KindRegistration, err)
	}

	m.step(subject, KindRegistration, StepPrompting)

	promptCtx, cancelPrompt := context.WithTimeout(ctx, m.promptTimeout)
	attestation, err := auth.Register(promptCtx, &authenticator.CreationRequest{
		Challenge: session.Challenge,
		RelyingParty: authenticator.RelyingParty{
			ID:   challenge.RelyingParty.ID,
			Name: challenge.RelyingParty.Name,
		},
		User: authenticator.UserHandle{
			Handle:      challenge.SubjectHandle,
			Name:        subject,
			DisplayName: req.DisplayName,
		},
		Algorithms: challenge.Algorithms,
	})
	cancelPrompt()
	if err != nil {
		if cancelledByUser(err) {
			return m.cancel(subject, KindRegistration)
		}
		return m.fail(subject, KindRegistration, err)
	}

	if _, err := m.sessions.Consume(session.ID); err != nil {
		return m.fail(subject, KindRegistration, err)
	}

	m.step(subject, KindRegistration, StepVerifying)

	verifyCtx, cancelVerify := context.WithTimeout(ctx, m.verifierTimeout)
	result, err := m.verifier.VerifyRegistration(verifyCtx, &rp.Attestation{
		Subject:  subject,
		Response: attestation.Response,
		Profile:  req.Profile,
	})
	cancelVerify()
	if err != nil {
		return m.fail(subject, KindRegistration, err)
	}

	cred := &credential.Credential{
		ID:               result.CredentialID,
		Owner:            subject,
		PublicKey:        result.PublicKey,
		SignatureCounter: result.InitialCounter,
		DeviceName:       req.DeviceName,
	}
	if req.Profile != nil {
		cred.ProfileSnapshot = *req.Profile
		if req.Profile.Primary != nil {
			cred.BiometricType = req.Profile.Primary.Type
			cred.SecurityClass = req.Profile.Primary.SecurityClass
		}
	}
	if err := m.credentials.Add(ctx, cred); err != nil {
		return m.fail(subject, KindRegistration, err)
	}

	m.step(subject, KindRegistration, StepCompleted)
	return registered(cred)
}

// StartAuthentication runs the full authentication ceremony. A subject
// with zero eligible credentials fails fast without a prompt.
func (m *Machine) StartAuthentication(ctx context.Context, auth authenticator.Platform, req *AuthenticationRequest) Outcome {
	subject := req.Subject

	m.step(subject, KindAuthentication, StepStarted)

	beginCtx, cancelBegin := context.WithTimeout(ctx, m.verifierTimeout)
	challenge, err := m.verifier.BeginAuthentication(beginCtx, subject)
	cancelBegin()
	if err != nil {
		return m.fail(subject, KindAuthentication, err)
	}
	if len(challenge.AllowedCredentialIDs) == 0 {
		return m.failKind(subject, KindAuthentication, KindNoCredentials)
	}

	session, err := m.sessions.Create(subject, KindAuthentication, challenge.Challenge)
	if err != nil {
		return m.fail(subject, KindAuthentication, err)
	}

	m.step(subject, KindAuthentication, StepPrompting)

	promptCtx, cancelPrompt := context.WithTimeout(ctx, m.promptTimeout)
	assertion, err := auth.Sign(promptCtx, &authenticator.AssertionRequest{
		Challenge:            session.Challenge,
		RelyingPartyID:       challenge.RelyingPartyID,
		AllowedCredentialIDs: challenge.AllowedCredentialIDs,
	})
	cancelPrompt()
	if err != nil {
		if cancelledByUser(err) {
			return m.cancel(subject, KindAuthentication)
		}
		return m.fail(subject, KindAuthentication, err)
	}

	if _, err := m.sessions.Consume(session.ID); err != nil {
		return m.fail(subject, KindAuthentication, err)
	}

	m.step(subject, KindAuthentication, StepVerifying)

	verifyCtx, cancelVerify := context.WithTimeout(ctx, m.verifierTimeout)
	result, err := m.verifier.VerifyAuthentication(verifyCtx, &rp.Assertion{
		Subject:  subject,
		Response: assertion.Response,
	})
	cancelVerify()
	if err != nil {
		return m.fail(subject, KindAuthentication, err)
	}

	if _, err := m.credentials.Touch(ctx, result.CredentialID, result.NewCounter); err != nil {
		return m.fail(subject, KindAuthentication, err)
	}

	token, err := m.tokens.Issue(subject, result.CredentialID)
	if err != nil {
		return m.fail(subject, KindAuthentication, err)
	}

	m.step(subject, KindAuthentication, StepCompleted)
	return authenticated(token)
}
