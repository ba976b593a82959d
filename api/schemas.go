package api

import (
	"passkey-server/ceremony"
	"passkey-server/credential"
	"passkey-server/device"
)

type DetectRequest struct {
	DeviceID string
	Signals  device.RawSignals
}

type DetectResponse struct {
	Profile      *device.Profile
	TableVersion string
}

type RegisterRequest struct {
	Subject     string
	DisplayName string
	DeviceName  string
	DeviceID    string
	Signals     device.RawSignals
}

type AuthenticateRequest struct {
	Subject  string
	DeviceID string
	Signals  device.RawSignals
}

type OutcomeResponse struct {
	Status       ceremony.Status
	SessionToken string                  `json:",omitempty"`
	Credential   *CredentialView         `json:",omitempty"`
	ErrorKind    ceremony.ErrorKind      `json:",omitempty"`
	Retryable    bool
	Message      string                  `json:",omitempty"`
	Recovery     ceremony.RecoveryAction `json:",omitempty"`
}

// CredentialView is the device-management projection of a stored
// credential; key material never leaves the server.
type CredentialView struct {
	CredentialID  string
	DeviceName    string
	BiometricType device.MethodType
	SecurityClass device.SecurityClass
	CreatedAt     int64
	LastUsedAt    int64
	Active        bool
}

type ListCredentialsResponse struct {
	Credentials []CredentialView
}

type RenameRequest struct {
	CredentialID string
	Label        string
}

type RevokeRequest struct {
	CredentialID string
}

func viewOf(cred *credential.Credential) CredentialView {
	view := CredentialView{
		CredentialID:  cred.ID,
		DeviceName:    cred.DeviceName,
		BiometricType: cred.BiometricType,
		SecurityClass: cred.SecurityClass,
		CreatedAt:     cred.CreatedAt.Unix(),
		Active:        cred.Active,
	}
	if !cred.LastUsedAt.IsZero() {
		view.LastUsedAt = cred.LastUsedAt.Unix()
	}
	return view
}

func outcomeResponse(outcome ceremony.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Status:       outcome.Status,
		SessionToken: outcome.SessionToken,
		ErrorKind:    outcome.Kind,
		Retryable:    outcome.Retryable,
		Message:      outcome.Message,
		Recovery:     outcome.Recovery,
	}
	if outcome.Credential != nil {
		view := viewOf(outcome.Credential)
		resp.Credential = &view
	}
	return resp
}
