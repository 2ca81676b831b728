package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meme-battle/internal/bus"
	"meme-battle/internal/config"
	"meme-battle/internal/db"
	"meme-battle/internal/game"
	"meme-battle/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newCmd() *cobra.Command {
	var (
		envFile string
		port    int
	)
	cmd := &cobra.Command{
		Use:           "meme-battle",
		Short:         "Real-time meme caption battle server.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			setupLogging(cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&envFile, "env-file", ".env", "path to a .env file; existing environment wins")
	fs.IntVarP(&port, "port", "p", 8080, "port to listen on (env: PORT)")
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	var (
		opts    []game.Option
		sinks   game.MultiSink
		records server.Records
		repo    *db.Repository
	)

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(conn); err != nil {
				return err
			}
		}
		repo = db.NewRepository(conn)
		opts = append(opts, game.WithPersister(repo))
		sinks = append(sinks, repo)
		records = repo
		log.Info().Msg("persistence enabled")
	} else {
		log.Warn().Msg("DATABASE_URL not set; persistence disabled")
	}

	if cfg.NATSURL != "" {
		busCfg := bus.DefaultConfig()
		busCfg.URL = cfg.NATSURL
		busCfg.SubjectPrefix = cfg.NATSSubject
		publisher, err := bus.Connect(busCfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("close NATS publisher")
			}
		}()
		sinks = append(sinks, publisher)
		log.Info().Str("subject_prefix", cfg.NATSSubject).Msg("lifecycle events on NATS")
	}
	if len(sinks) > 0 {
		opts = append(opts, game.WithEventSink(sinks))
	}

	catalog, err := loadCatalog(ctx, cfg, repo)
	if err != nil {
		return err
	}
	log.Info().Int("templates", len(catalog.Templates())).Msg("meme catalog loaded")

	engine := game.NewEngine(game.NewStore(), catalog, cfg.Settings(), opts...)
	srv := server.New(engine, records, cfg)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("meme-battle server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		engine.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpServer.Shutdown(shutdownCtx)
	engine.Close()
	return err
}

// loadCatalog prefers MEME_CATALOG_PATH, then the database, then the
// built-in templates.
func loadCatalog(ctx context.Context, cfg config.Config, repo *db.Repository) (game.Catalog, error) {
	if cfg.MemeCatalogPath != "" {
		return game.LoadCatalogFile(cfg.MemeCatalogPath)
	}
	if repo != nil {
		catalog, err := repo.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		if len(catalog) > 0 {
			return catalog, nil
		}
		log.Warn().Msg("no templates stored; using built-in catalog")
	}
	return game.DefaultCatalog(), nil
}
