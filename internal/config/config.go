package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`
	// DatabaseURL empty means the in-memory store (dev only).
	DatabaseURL    string        `env:"DATABASE_URL"`
	WolfVoteWindow time.Duration `env:"WOLF_VOTE_WINDOW" envDefault:"30s"`
	Dev            bool          `env:"DEV" envDefault:"false"`
}

func Load() (Config, error) {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()
	return env.ParseAs[Config]()
}
