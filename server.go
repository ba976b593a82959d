package main

import (
	"log"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"passkey-server/api"
	"passkey-server/bridge"
	"passkey-server/ceremony"
	"passkey-server/credential"
	"passkey-server/device"
	"passkey-server/rp"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatal("error opening/creating ", cfg.LogFile, ": ", err)
	}
	logger := log.New(logFile, "", log.LstdFlags)

	store, err := credential.OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatal("error opening ", cfg.DBPath, ": ", err)
	}
	defer store.Close()

	manager := credential.NewManager(store, credential.Policy{
		ProtectCurrentDevice: cfg.ProtectCurrentDevice,
		LenientZeroCounter:   cfg.LenientZeroCounter,
	}, logger)

	var verifier rp.Verifier
	if cfg.VerifierBaseURL != "" {
		verifier = rp.NewHTTPVerifier(cfg.VerifierBaseURL, cfg.VerifierTimeout)
	} else {
		webauthnVerifier, err := rp.NewWebAuthnVerifier(rp.WebAuthnConfig{
			RPID:          cfg.RPID,
			RPDisplayName: cfg.RPDisplayName,
			RPOrigins:     cfg.RPOrigins,
		}, store)
		if err != nil {
			log.Fatal("failed to create webauthn verifier: ", err)
		}
		defer webauthnVerifier.Close()
		verifier = webauthnVerifier
	}

	sessions := ceremony.NewSessionStore(cfg.SessionTTL)
	defer sessions.Close()
	tokens := ceremony.NewTokenStore(cfg.TokenTTL)
	defer tokens.Close()

	machine := ceremony.NewMachine(verifier, sessions, manager, tokens, logger)
	machine.SetTimeouts(cfg.PromptTimeout, cfg.VerifierTimeout)

	detector := device.NewDetector()
	deviceBridge := bridge.New(logger)

	app := fiber.New()
	defer app.Shutdown()

	api.New(detector, machine, deviceBridge, manager, tokens, logger).AttachRoutes(app)

	log.Fatal(app.Listen(":" + strconv.Itoa(cfg.Port)))
}
