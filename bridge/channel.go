package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/aidarkhanov/nanoid/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	cmap "github.com/orcaman/concurrent-map/v2"

	"passkey-server/authenticator"
)

const requestKeyLength = 5

// DeviceChannel is one connected device. It satisfies both
// authenticator.Platform and device.Probe: the ceremony machine's
// prompt and the detector's availability probe travel over the same
// websocket, correlated by key, and resolve when the device answers or
// ctx gives up.
type DeviceChannel struct {
	deviceID string
	subject  string
	ws       *websocket.Conn
	writeMu  sync.Mutex
	pending  cmap.ConcurrentMap[string, chan *Frame]
	closed   chan struct{}
	closeOne sync.Once
}

func newDeviceChannel(deviceID, subject string, ws *websocket.Conn) *DeviceChannel {
	return &DeviceChannel{
		deviceID: deviceID,
		subject:  subject,
		ws:       ws,
		pending:  cmap.New[chan *Frame](),
		closed:   make(chan struct{}),
	}
}

func (ch *DeviceChannel) DeviceID() string {
	return ch.deviceID
}

// Subject is the account this device claimed when it connected.
func (ch *DeviceChannel) Subject() string {
	return ch.subject
}

func (ch *DeviceChannel) write(op int, key string, data any) error {
	raw, err := jsoniter.Marshal(data)
	if err != nil {
		return err
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	b, err := jsoniter.Marshal(Frame{Op: op, Key: key, Data: raw})
	if err != nil {
		return err
	}
	return ch.ws.WriteMessage(websocket.TextMessage, b)
}

// request sends a frame and blocks until the device's response frame
// with the same key arrives, the channel dies, or ctx expires.
func (ch *DeviceChannel) request(ctx context.Context, op int, data any) (*Frame, error) {
	key, err := nanoid.GenerateString(nanoid.DefaultAlphabet, requestKeyLength)
	if err != nil {
		return nil, err
	}

	reply := make(chan *Frame, 1)
	ch.pending.Set(key, reply)
	defer ch.pending.Remove(key)

	if err := ch.write(op, key, data); err != nil {
		return nil, fmt.Errorf("%w: %v", authenticator.ErrUnavailable, err)
	}

	select {
	case frame := <-reply:
		return frame, nil
	case <-ch.closed:
		return nil, authenticator.ErrUnavailable
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, authenticator.ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (ch *DeviceChannel) dispatch(frame *Frame) {
	if frame.Key == "" {
		return
	}
	if reply, ok := ch.pending.Get(frame.Key); ok {
		select {
		case reply <- frame:
		default:
		}
	}
}

func (ch *DeviceChannel) close() {
	ch.closeOne.Do(func() { close(ch.closed) })
}

// Available implements the capability probe.
func (ch *DeviceChannel) Available(ctx context.Context) (bool, error) {
	frame, err := ch.request(ctx, OpCapabilityQuery, struct{}{})
	if err != nil {
		return false, err
	}
	var data capabilityData
	if err := jsoniter.Unmarshal(frame.Data, &data); err != nil {
		return false, err
	}
	return data.Available, nil
}

func (ch *DeviceChannel) Register(ctx context.Context, req *authenticator.CreationRequest) (*authenticator.AttestationResult, error) {
	frame, err := ch.request(ctx, OpCreateCredential, req)
	if err != nil {
		return nil, err
	}
	data, err := decodeAuthenticatorData(frame)
	if err != nil {
		return nil, err
	}
	return &authenticator.AttestationResult{Response: data.Response}, nil
}

func (ch *DeviceChannel) Sign(ctx context.Context, req *authenticator.AssertionRequest) (*authenticator.AssertionResult, error) {
	frame, err := ch.request(ctx, OpGetAssertion, req)
	if err != nil {
		return nil, err
	}
	data, err := decodeAuthenticatorData(frame)
	if err != nil {
		return nil, err
	}
	return &authenticator.AssertionResult{
		CredentialID: data.CredentialID,
		Response:     data.Response,
	}, nil
}

func decodeAuthenticatorData(frame *Frame) (*authenticatorData, error) {
	data := new(authenticatorData)
	if err := jsoniter.Unmarshal(frame.Data, data); err != nil {
		return nil, err
	}
	switch data.Status {
	case StatusSuccessful:
		return data, nil
	case StatusCancelled:
		return nil, authenticator.ErrCancelled
	case StatusUnsupported:
		return nil, authenticator.ErrNotSupported
	default:
		return nil, fmt.Errorf("%w: device reported failure", authenticator.ErrUnavailable)
	}
}

// PushStepEvent forwards a ceremony transition to the device for its
// progress UI. Fire and forget.
func (ch *DeviceChannel) PushStepEvent(subject, kind, step, errKind string) {
	_ = ch.write(OpStepEvent, "", stepEventData{
		Subject: subject,
		Kind:    kind,
		Step:    step,
		Error:   errKind,
	})
}
