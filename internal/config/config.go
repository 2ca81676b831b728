package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"meme-battle/internal/game"
)

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	PublicURL       string `env:"PUBLIC_URL"`
	DatabaseURL     string `env:"DATABASE_URL"`
	AutoMigrate     bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	NATSURL         string `env:"NATS_URL"`
	NATSSubject     string `env:"NATS_SUBJECT" envDefault:"memebattle"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"json"`
	MemeCatalogPath string `env:"MEME_CATALOG_PATH"`

	TotalRounds    int `env:"TOTAL_ROUNDS" envDefault:"5"`
	SubmitSeconds  int `env:"SUBMIT_SECONDS" envDefault:"60"`
	VoteSeconds    int `env:"VOTE_SECONDS" envDefault:"30"`
	ResultsSeconds int `env:"RESULTS_SECONDS" envDefault:"6"`
	MaxPlayers     int `env:"MAX_PLAYERS" envDefault:"10"`

	DBMaxOpenConns           int `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`
}

// Default returns the configuration used when the environment is empty.
func Default() Config {
	return Config{
		Port:                     8080,
		NATSSubject:              "memebattle",
		LogLevel:                 "info",
		LogFormat:                "json",
		TotalRounds:              game.DefaultTotalRounds,
		SubmitSeconds:            game.DefaultSubmissionSeconds,
		VoteSeconds:              game.DefaultVotingSeconds,
		ResultsSeconds:           game.DefaultResultsSeconds,
		MaxPlayers:               game.MaxPlayers,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

// LoadDotEnv exports the variables in path into the process environment
// without overriding anything already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// Load parses the environment on top of the defaults and validates the
// result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1..65535, got %d", c.Port))
	}
	if c.TotalRounds <= 0 {
		errs = append(errs, fmt.Errorf("TOTAL_ROUNDS must be positive, got %d", c.TotalRounds))
	}
	if c.SubmitSeconds <= 0 {
		errs = append(errs, fmt.Errorf("SUBMIT_SECONDS must be positive, got %d", c.SubmitSeconds))
	}
	if c.VoteSeconds <= 0 {
		errs = append(errs, fmt.Errorf("VOTE_SECONDS must be positive, got %d", c.VoteSeconds))
	}
	if c.ResultsSeconds < 0 {
		errs = append(errs, fmt.Errorf("RESULTS_SECONDS must not be negative, got %d", c.ResultsSeconds))
	}
	if c.MaxPlayers < 1 || c.MaxPlayers > game.MaxPlayers {
		errs = append(errs, fmt.Errorf("MAX_PLAYERS must be 1..%d, got %d", game.MaxPlayers, c.MaxPlayers))
	}
	return errors.Join(errs...)
}

// Settings is the engine configuration carried by c.
func (c Config) Settings() game.Settings {
	return game.Settings{
		TotalRounds:       c.TotalRounds,
		SubmissionSeconds: c.SubmitSeconds,
		VotingSeconds:     c.VoteSeconds,
		ResultsSeconds:    c.ResultsSeconds,
		MaxPlayers:        c.MaxPlayers,
	}
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSeconds) * time.Second
}

func (c Config) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.DBConnMaxIdleTimeSeconds) * time.Second
}
