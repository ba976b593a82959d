package bridge

import jsoniter "github.com/json-iterator/go"

// Frame ops. Server-initiated requests carry a correlation Key the
// device echoes back in its response frame.
const (
	OpCapabilityQuery    = 3001
	OpCapabilityResponse = 3002
	OpCreateCredential   = 3003
	OpCreateResponse     = 3004
	OpGetAssertion       = 3005
	OpAssertionResponse  = 3006
	OpStepEvent          = 3007
)

const (
	StatusUnsuccessful = 0
	StatusSuccessful   = 1
	StatusCancelled    = 2
	StatusUnsupported  = 3
)

type Frame struct {
	Op   int
	Key  string
	Data jsoniter.RawMessage
}

type capabilityData struct {
	Available bool
}

// authenticatorData is the device's answer to a create-credential or
// get-assertion request: a status plus the raw authenticator response.
type authenticatorData struct {
	Status       int
	CredentialID string
	Response     jsoniter.RawMessage
}

type stepEventData struct {
	Subject string
	Kind    string
	Step    string
	Error   string
}
