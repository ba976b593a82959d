// Package bridge keeps the websocket channels to connected devices.
// The platform authenticator lives on the device; the ceremony machine
// reaches it through the channel registered here for the device ID it
// is serving.
package bridge

import (
	"log"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	cmap "github.com/orcaman/concurrent-map/v2"
)

type Bridge struct {
	channels cmap.ConcurrentMap[string, *DeviceChannel]
	logger   *log.Logger
}

func New(logger *log.Logger) *Bridge {
	return &Bridge{
		channels: cmap.New[*DeviceChannel](),
		logger:   logger,
	}
}

// Channel returns the live channel for a device, if connected.
func (b *Bridge) Channel(deviceID string) (*DeviceChannel, bool) {
	return b.channels.Get(deviceID)
}

// BroadcastStep pushes a ceremony transition to every connected device
// belonging to the subject.
func (b *Bridge) BroadcastStep(subject, kind, step, errKind string) {
	for entry := range b.channels.IterBuffered() {
		if entry.Val.Subject() == subject {
			entry.Val.PushStepEvent(subject, kind, step, errKind)
		}
	}
}

// Serve owns the websocket read loop for one device connection and
// blocks until the connection drops. A reconnect for the same device
// ID replaces the previous channel.
func (b *Bridge) Serve(deviceID, subject string, ws *websocket.Conn) {
	channel := newDeviceChannel(deviceID, subject, ws)

	b.channels.Upsert(deviceID, channel, func(exist bool, prev, next *DeviceChannel) *DeviceChannel {
		if exist {
			prev.close()
		}
		return next
	})

	defer func() {
		channel.close()
		b.channels.RemoveCb(deviceID, func(_ string, current *DeviceChannel, exists bool) bool {
			return exists && current == channel
		})
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := new(Frame)
		if err := jsoniter.Unmarshal(raw, frame); err != nil {
			if b.logger != nil {
				b.logger.Printf("device %s: malformed frame: %v", deviceID, err)
			}
			continue
		}
		channel.dispatch(frame)
	}
}
