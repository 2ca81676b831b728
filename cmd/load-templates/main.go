package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meme-battle/internal/config"
	"meme-battle/internal/db"
	"meme-battle/internal/game"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	var (
		envFile  string
		file     string
		defaults bool
	)
	cmd := &cobra.Command{
		Use:           "load-templates",
		Short:         "Load a YAML meme template catalog into Postgres.",
		Args:          cobra.NoArgs,
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

			templates := game.DefaultCatalog()
			if !defaults {
				templates, err = game.LoadCatalogFile(file)
				if err != nil {
					return err
				}
			}

			conn, err := db.Open(cfg)
			if err != nil {
				return err
			}
			written, err := db.NewRepository(conn).UpsertTemplates(cmd.Context(), templates)
			if err != nil {
				return err
			}
			log.Info().Int("templates", written).Msg("meme templates loaded")
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	fs.StringVarP(&file, "file", "f", "memes.yaml", "path to the template catalog")
	fs.BoolVar(&defaults, "defaults", false, "load the built-in templates instead of a file")
	return cmd
}
