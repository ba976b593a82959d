// Package api is the HTTP/WebSocket surface consumed by the UI: start
// a ceremony, manage registered devices, and hold the device channel
// the ceremony machine prompts through.
package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"passkey-server/bridge"
	"passkey-server/ceremony"
	"passkey-server/credential"
	"passkey-server/device"
)

type API struct {
	detector    *device.Detector
	machine     *ceremony.Machine
	bridge      *bridge.Bridge
	credentials *credential.Manager
	tokens      *ceremony.TokenStore
	logger      *log.Logger
}

func New(detector *device.Detector, machine *ceremony.Machine, br *bridge.Bridge, credentials *credential.Manager, tokens *ceremony.TokenStore, logger *log.Logger) *API {
	api := &API{
		detector:    detector,
		machine:     machine,
		bridge:      br,
		credentials: credentials,
		tokens:      tokens,
		logger:      logger,
	}
	go api.forwardStepEvents()
	return api
}

// forwardStepEvents relays machine transitions to the subject's
// connected devices for progress UI.
func (api *API) forwardStepEvents() {
	events, _ := api.machine.Subscribe()
	for event := range events {
		api.bridge.BroadcastStep(event.Subject, string(event.Kind), string(event.Step), string(event.Error))
	}
}

func (api *API) AttachRoutes(app *fiber.App) {
	app.Get("/connect", initializeSocket, api.serveSocket())

	group := app.Group("/passkey")
	group.Post("/detect", api.DetectApi)
	group.Post("/register", api.RegisterApi)
	group.Post("/authenticate", api.AuthenticateApi)

	devices := app.Group("/devices", api.TokenMiddleware)
	devices.Get("/", api.ListCredentialsApi)
	devices.Post("/rename", api.RenameApi)
	devices.Post("/revoke", api.RevokeApi)
	devices.Post("/logout", api.LogoutApi)
}

func BadRequestResponse(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusBadRequest)
}

func UnauthorizedResponse(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusUnauthorized)
}

// TokenMiddleware guards the device-management routes with the session
// token minted by a completed authentication ceremony.
func (api *API) TokenMiddleware(c *fiber.Ctx) error {
	token := string(c.Request().Header.Peek("x-session-token"))
	if token == "" {
		return UnauthorizedResponse(c)
	}

	data, ok := api.tokens.Verify(token)
	if !ok {
		return UnauthorizedResponse(c)
	}

	c.Locals("subject", data.Subject)
	c.Locals("credentialid", data.CredentialID)
	c.Locals("token", token)
	return c.Next()
}

func (api *API) DetectApi(c *fiber.Ctx) error {
	req := new(DetectRequest)
	if err := c.BodyParser(req); err != nil {
		return BadRequestResponse(c)
	}

	var probe device.Probe
	if channel, ok := api.bridge.Channel(req.DeviceID); ok {
		probe = channel
	}

	profile := api.detector.Detect(c.Context(), &req.Signals, probe)
	return c.JSON(DetectResponse{
		Profile:      profile,
		TableVersion: api.detector.TableVersion(),
	})
}

func (api *API) RegisterApi(c *fiber.Ctx) error {
	req := new(RegisterRequest)
	if err := c.BodyParser(req); err != nil {
		return BadRequestResponse(c)
	}
	if req.Subject == "" || req.DisplayName == "" || req.DeviceID == "" {
		return BadRequestResponse(c)
	}

	channel, ok := api.bridge.Channel(req.DeviceID)
	if !ok {
		return c.JSON(outcomeResponse(ceremony.Failure(ceremony.KindNetworkError)))
	}

	profile := api.detector.Detect(c.Context(), &req.Signals, channel)
	if !profile.BiometricsAvailable() {
		return c.JSON(outcomeResponse(ceremony.Failure(ceremony.KindNotSupported)))
	}

	outcome := api.machine.StartRegistration(c.Context(), channel, &ceremony.RegistrationRequest{
		Subject:     req.Subject,
		DisplayName: req.DisplayName,
		DeviceName:  req.DeviceName,
		Profile:     profile,
	})
	return c.JSON(outcomeResponse(outcome))
}

func (api *API) AuthenticateApi(c *fiber.Ctx) error {
	req := new(AuthenticateRequest)
	if err := c.BodyParser(req); err != nil {
		return BadRequestResponse(c)
	}
	if req.Subject == "" || req.DeviceID == "" {
		return BadRequestResponse(c)
	}

	channel, ok := api.bridge.Channel(req.DeviceID)
	if !ok {
		return c.JSON(outcomeResponse(ceremony.Failure(ceremony.KindNetworkError)))
	}

	profile := api.detector.Detect(c.Context(), &req.Signals, channel)

	outcome := api.machine.StartAuthentication(c.Context(), channel, &ceremony.AuthenticationRequest{
		Subject: req.Subject,
		Profile: profile,
	})
	return c.JSON(outcomeResponse(outcome))
}

func (api *API) ListCredentialsApi(c *fiber.Ctx) error {
	subject := c.Locals("subject").(string)

	creds, err := api.credentials.List(c.Context(), subject)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	views := make([]CredentialView, 0, len(creds))
	for _, cred := range creds {
		views = append(views, viewOf(cred))
	}
	return c.JSON(ListCredentialsResponse{Credentials: views})
}

func (api *API) RenameApi(c *fiber.Ctx) error {
	req := new(RenameRequest)
	if err := c.BodyParser(req); err != nil {
		return BadRequestResponse(c)
	}
	if req.CredentialID == "" || req.Label == "" {
		return BadRequestResponse(c)
	}

	cred, err := api.credentials.Rename(c.Context(), req.CredentialID, req.Label)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(viewOf(cred))
}

func (api *API) RevokeApi(c *fiber.Ctx) error {
	req := new(RevokeRequest)
	if err := c.BodyParser(req); err != nil {
		return BadRequestResponse(c)
	}
	if req.CredentialID == "" {
		return BadRequestResponse(c)
	}

	currentID := c.Locals("credentialid").(string)
	err := api.credentials.Revoke(c.Context(), req.CredentialID, currentID)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrRevokeCurrentDevice):
			return c.SendStatus(fiber.StatusConflict)
		case errors.Is(err, credential.ErrNotFound):
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (api *API) LogoutApi(c *fiber.Ctx) error {
	api.tokens.Revoke(c.Locals("token").(string))
	return c.SendStatus(fiber.StatusOK)
}
