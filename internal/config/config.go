package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr        string        `env:"SHOPKEEP_ADDR" envDefault:":8080"`
	Env         string        `env:"SHOPKEEP_ENV" envDefault:"development"`
	DatabaseURL string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string        `env:"SHOPKEEP_JWT_SECRET,required,notEmpty"`
	TokenTTL    time.Duration `env:"SHOPKEEP_TOKEN_TTL" envDefault:"168h"`
	FrontendURL string        `env:"SHOPKEEP_FRONTEND_URL" envDefault:"http://localhost:5173"`

	LinuxDoClientID     string `env:"LINUXDO_CLIENT_ID,required,notEmpty"`
	LinuxDoClientSecret string `env:"LINUXDO_CLIENT_SECRET,required,notEmpty"`
	LinuxDoRedirectURI  string `env:"LINUXDO_REDIRECT_URI,required,notEmpty"`

	// DemoLogin exposes POST /auth/demo, which mints a token for the fixed
	// demo account without OAuth. Development only.
	DemoLogin bool `env:"SHOPKEEP_DEMO_LOGIN" envDefault:"false"`
	// SeedDemo creates the demo account's save at startup.
	SeedDemo bool `env:"SHOPKEEP_SEED_DEMO" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Platform-assigned port wins over the configured address.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Env != "development" {
		if strings.HasPrefix(c.LinuxDoRedirectURI, "http://") {
			return fmt.Errorf("LINUXDO_REDIRECT_URI must use https outside development")
		}
		if strings.HasPrefix(c.FrontendURL, "http://") {
			return fmt.Errorf("SHOPKEEP_FRONTEND_URL must use https outside development")
		}
		if c.DemoLogin {
			return fmt.Errorf("SHOPKEEP_DEMO_LOGIN is development-only")
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("SHOPKEEP_TOKEN_TTL must be positive")
	}
	return nil
}
