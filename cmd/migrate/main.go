package main

import (
	"errors"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meme-battle/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	var (
		envFile string
		source  string
		steps   int
	)
	cmd := &cobra.Command{
		Use:           "migrate [up|down]",
		Short:         "Apply or roll back the SQL migrations.",
		Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     []string{"up", "down"},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				log.Warn().Err(err).Str("path", envFile).Msg("failed to load .env")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			return run(source, cfg.DatabaseURL, direction, steps)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	fs.StringVar(&source, "source", "file://db/migrations", "migration source URL")
	fs.IntVarP(&steps, "steps", "n", 0, "number of migrations to apply; 0 means all (down requires it)")
	return cmd
}

func run(source, databaseURL, direction string, steps int) error {
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	switch {
	case direction == "down" && steps <= 0:
		return errors.New("down requires --steps")
	case direction == "down":
		err = m.Steps(-steps)
	case steps > 0:
		err = m.Steps(steps)
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("database already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Str("direction", direction).Msg("database migrations applied")
	return nil
}
