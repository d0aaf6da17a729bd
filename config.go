package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type config struct {
	Addr      string
	StaticDir string
	LogLevel  zerolog.Level
}

// loadConfig reads configuration from the environment, with a local
// .env file as an optional source.
func loadConfig() config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	cfg := config{
		Addr:      ":8000",
		StaticDir: "./static",
		LogLevel:  zerolog.InfoLevel,
	}
	if v := os.Getenv("SNAKE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SNAKE_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("SNAKE_LOG_LEVEL"); v != "" {
		if level, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = level
		} else {
			log.Warn().Str("level", v).Msg("invalid SNAKE_LOG_LEVEL, using info")
		}
	}
	return cfg
}
