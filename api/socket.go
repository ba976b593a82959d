package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// initializeSocket validates the upgrade request and stashes the
// device identity for the websocket handler.
func initializeSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	deviceID := c.Query("deviceid")
	if deviceID == "" {
		return BadRequestResponse(c)
	}

	c.Locals("deviceid", deviceID)
	c.Locals("subject", c.Query("subject"))
	return c.Next()
}

func (api *API) serveSocket() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		deviceID := ws.Locals("deviceid").(string)
		subject, _ := ws.Locals("subject").(string)

		if api.logger != nil {
			api.logger.Printf("device %s connected (subject %q)", deviceID, subject)
		}
		api.bridge.Serve(deviceID, subject, ws)
		if api.logger != nil {
			api.logger.Printf("device %s disconnected", deviceID)
		}
	})
}
