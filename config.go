package main

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port int `env:"PASSKEY_PORT" envDefault:"8001"`

	RPID          string   `env:"PASSKEY_RP_ID"           envDefault:"localhost"`
	RPDisplayName string   `env:"PASSKEY_RP_DISPLAY_NAME" envDefault:"Loan Servicing"`
	RPOrigins     []string `env:"PASSKEY_RP_ORIGINS"      envSeparator:"," envDefault:"http://localhost:3000"`

	// When set, ceremonies verify against a remote relying party
	// instead of the in-process one.
	VerifierBaseURL string `env:"PASSKEY_VERIFIER_URL"`

	DBPath  string `env:"PASSKEY_DB_PATH"  envDefault:"passkey-credentials.db"`
	LogFile string `env:"PASSKEY_LOG_FILE" envDefault:"logs.txt"`

	SessionTTL      time.Duration `env:"PASSKEY_SESSION_TTL"      envDefault:"5m"`
	PromptTimeout   time.Duration `env:"PASSKEY_PROMPT_TIMEOUT"   envDefault:"60s"`
	VerifierTimeout time.Duration `env:"PASSKEY_VERIFIER_TIMEOUT" envDefault:"10s"`
	TokenTTL        time.Duration `env:"PASSKEY_TOKEN_TTL"        envDefault:"720h"`

	ProtectCurrentDevice bool `env:"PASSKEY_PROTECT_CURRENT_DEVICE" envDefault:"true"`
	LenientZeroCounter   bool `env:"PASSKEY_LENIENT_ZERO_COUNTER"   envDefault:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}
