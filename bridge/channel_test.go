package bridge

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passkey-server/authenticator"
)

func frameWith(t *testing.T, data authenticatorData) *Frame {
	t.Helper()
	raw, err := jsoniter.Marshal(data)
	require.NoError(t, err)
	return &Frame{Op: OpCreateResponse, Key: "abcde", Data: raw}
}

func TestDecodeAuthenticatorData_Success(t *testing.T) {
	data, err := decodeAuthenticatorData(frameWith(t, authenticatorData{
		Status:       StatusSuccessful,
		CredentialID: "cred-1",
		Response:     jsoniter.RawMessage(`{"id":"cred-1"}`),
	}))
	require.NoError(t, err)
	assert.Equal(t, "cred-1", data.CredentialID)
	assert.JSONEq(t, `{"id":"cred-1"}`, string(data.Response))
}

func TestDecodeAuthenticatorData_Cancelled(t *testing.T) {
	_, err := decodeAuthenticatorData(frameWith(t, authenticatorData{Status: StatusCancelled}))
	assert.ErrorIs(t, err, authenticator.ErrCancelled)
}

func TestDecodeAuthenticatorData_Unsupported(t *testing.T) {
	_, err := decodeAuthenticatorData(frameWith(t, authenticatorData{Status: StatusUnsupported}))
	assert.ErrorIs(t, err, authenticator.ErrNotSupported)
}

func TestDecodeAuthenticatorData_DeviceFailure(t *testing.T) {
	_, err := decodeAuthenticatorData(frameWith(t, authenticatorData{Status: StatusUnsuccessful}))
	assert.ErrorIs(t, err, authenticator.ErrUnavailable)
}

func TestDispatch_UnknownKeyIgnored(t *testing.T) {
	channel := newDeviceChannel("device-1", "a@x.com", nil)

	// No pending request registered for this key; must not panic.
	channel.dispatch(&Frame{Op: OpCreateResponse, Key: "nosuch"})
	channel.dispatch(&Frame{Op: OpStepEvent})
}
