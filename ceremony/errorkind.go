package ceremony

import (
	"context"
	"errors"
	"net"

	"passkey-server/authenticator"
	"passkey-server/credential"
	"passkey-server/rp"
)

type ErrorKind string

const (
	KindNotSupported               ErrorKind = "not_supported"
	KindUserCancelled              ErrorKind = "user_cancelled"
	KindTimeout                    ErrorKind = "timeout"
	KindDeviceAlreadyRegistered    ErrorKind = "device_already_registered"
	KindNoCredentials              ErrorKind = "no_credentials"
	KindDeviceLimitReached         ErrorKind = "device_limit_reached"
	KindSignatureRejected          ErrorKind = "signature_rejected"
	KindNetworkError               ErrorKind = "network_error"
	KindChallengeExpiredOrConsumed ErrorKind = "challenge_expired_or_consumed"
	KindUnknown                    ErrorKind = "unknown"
)

// RecoveryAction tells the UI what to offer the user next.
type RecoveryAction string

const (
	RecoveryRetry          RecoveryAction = "retry"
	RecoveryUseFallback    RecoveryAction = "use_fallback"
	RecoveryContactSupport RecoveryAction = "contact_support"
	RecoveryManageDevices  RecoveryAction = "manage_devices"
)

type Translation struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
	Recovery  RecoveryAction
}

// One user-facing message per kind; raw protocol errors never reach
// the user.
var translations = map[ErrorKind]Translation{
	KindNotSupported: {
		Kind: KindNotSupported, Retryable: false,
		Message:  "This device does not support biometric sign-in.",
		Recovery: RecoveryUseFallback,
	},
	KindUserCancelled: {
		Kind: KindUserCancelled, Retryable: true,
		Message:  "Sign-in was cancelled.",
		Recovery: RecoveryRetry,
	},
	KindTimeout: {
		Kind: KindTimeout, Retryable: true,
		Message:  "The request timed out before you confirmed.",
		Recovery: RecoveryRetry,
	},
	KindDeviceAlreadyRegistered: {
		Kind: KindDeviceAlreadyRegistered, Retryable: false,
		Message:  "This device is already registered for your account.",
		Recovery: RecoveryManageDevices,
	},
	KindNoCredentials: {
		Kind: KindNoCredentials, Retryable: false,
		Message:  "No passkey is registered for this account on any device.",
		Recovery: RecoveryUseFallback,
	},
	KindDeviceLimitReached: {
		Kind: KindDeviceLimitReached, Retryable: false,
		Message:  "Your account already has the maximum number of registered devices.",
		Recovery: RecoveryManageDevices,
	},
	KindSignatureRejected: {
		Kind: KindSignatureRejected, Retryable: false,
		Message:  "This passkey could not be verified and has been blocked.",
		Recovery: RecoveryContactSupport,
	},
	KindNetworkError: {
		Kind: KindNetworkError, Retryable: true,
		Message:  "Could not reach the server. Check your connection and try again.",
		Recovery: RecoveryRetry,
	},
	KindChallengeExpiredOrConsumed: {
		Kind: KindChallengeExpiredOrConsumed, Retryable: true,
		Message:  "This sign-in attempt expired. Start again.",
		Recovery: RecoveryRetry,
	},
	KindUnknown: {
		Kind: KindUnknown, Retryable: true,
		Message:  "Something went wrong. Try again.",
		Recovery: RecoveryRetry,
	},
}

func Describe(kind ErrorKind) Translation {
	if t, ok := translations[kind]; ok {
		return t
	}
	return translations[KindUnknown]
}

// Translate collapses the open set of platform, storage and verifier
// failures into the closed ErrorKind taxonomy. Anything unrecognized
// becomes a retryable Unknown.
func Translate(err error) Translation {
	switch {
	case errors.Is(err, authenticator.ErrCancelled):
		return Describe(KindUserCancelled)
	case errors.Is(err, authenticator.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return Describe(KindTimeout)
	case errors.Is(err, context.Canceled):
		return Describe(KindUserCancelled)
	case errors.Is(err, authenticator.ErrNotSupported):
		return Describe(KindNotSupported)
	case errors.Is(err, authenticator.ErrUnavailable):
		return Describe(KindNetworkError)
	case errors.Is(err, rp.ErrNoCredentials):
		return Describe(KindNoCredentials)
	case errors.Is(err, rp.ErrAlreadyRegistered):
		return Describe(KindDeviceAlreadyRegistered)
	case errors.Is(err, rp.ErrRejected),
		errors.Is(err, credential.ErrCounterRegression):
		return Describe(KindSignatureRejected)
	case errors.Is(err, rp.ErrNetwork):
		return Describe(KindNetworkError)
	case errors.Is(err, credential.ErrDeviceLimit):
		return Describe(KindDeviceLimitReached)
	case errors.Is(err, ErrSessionNotFound):
		return Describe(KindChallengeExpiredOrConsumed)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Describe(KindTimeout)
		}
		return Describe(KindNetworkError)
	}

	return Describe(KindUnknown)
}
