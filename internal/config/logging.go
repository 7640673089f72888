package config

import "github.com/caarlos0/env/v11"

// LogConfig controls the global zerolog output. File logging is off unless
// LOG_FILE is set; the file is size-capped and rotated in place.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}
