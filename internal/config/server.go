package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":3000"`
	DeckDir   string `env:"DECK_DIR" envDefault:"decks"`
	StaticDir string `env:"STATIC_DIR" envDefault:"public"`

	// Optional deck catalog database. Game state is never persisted.
	PostgresDSN string `env:"POSTGRES_DSN"`

	DisconnectGrace time.Duration `env:"DISCONNECT_GRACE" envDefault:"45s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	WinnerDelay     time.Duration `env:"WINNER_DELAY" envDefault:"5s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
