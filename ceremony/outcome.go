package ceremony

import "passkey-server/credential"

type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Outcome is the terminal result handed back to the UI collaborator.
// Success carries the new credential (registration) or a session token
// (authentication); Failed carries the translated error.
type Outcome struct {
	Status       Status
	Credential   *credential.Credential
	SessionToken string
	Kind         ErrorKind
	Retryable    bool
	Message      string
	Recovery     RecoveryAction
}

func registered(cred *credential.Credential) Outcome {
	return Outcome{Status: StatusSuccess, Credential: cred}
}

func authenticated(token string) Outcome {
	return Outcome{Status: StatusSuccess, SessionToken: token}
}

func cancelled() Outcome {
	return Outcome{Status: StatusCancelled, Kind: KindUserCancelled, Retryable: true}
}

func failed(err error) Outcome {
	t := Translate(err)
	return Outcome{
		Status:    StatusFailed,
		Kind:      t.Kind,
		Retryable: t.Retryable,
		Message:   t.Message,
		Recovery:  t.Recovery,
	}
}

// Failure builds the outcome for a known kind directly, for callers
// that reject before a ceremony ever starts.
func Failure(kind ErrorKind) Outcome {
	t := Describe(kind)
	return Outcome{
		Status:    StatusFailed,
		Kind:      t.Kind,
		Retryable: t.Retryable,
		Message:   t.Message,
		Recovery:  t.Recovery,
	}
}

func failedKind(kind ErrorKind) Outcome {
	return Failure(kind)
}
