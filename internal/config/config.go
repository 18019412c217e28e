package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseDSN string `env:"DATABASE_DSN"`
	Dev         bool   `env:"DEV" envDefault:"false"`
}

// Load reads .env when present, then parses the environment. A missing
// DATABASE_DSN is allowed; the server falls back to the in-memory stats
// store.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
