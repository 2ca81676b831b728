package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrationName = regexp.MustCompile(`^[a-z0-9_]+$`)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "migrate-create NAME",
		Short:         "Scaffold an empty up/down migration pair.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, down, err := scaffold(dir, args[0], time.Now().UTC())
			if err != nil {
				return err
			}
			log.Info().Str("up", up).Str("down", down).Msg("migration created")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", filepath.Join("db", "migrations"), "migrations directory")
	return cmd
}

func scaffold(dir, name string, now time.Time) (string, string, error) {
	if !migrationName.MatchString(name) {
		return "", "", fmt.Errorf("migration name %q must be lower_snake_case", name)
	}
	base := fmt.Sprintf("%s_%s", now.Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeFile(upPath, "-- "+name+" (up)\n"); err != nil {
		return "", "", err
	}
	if err := writeFile(downPath, "-- "+name+" (down)\n"); err != nil {
		return "", "", err
	}
	return upPath, downPath, nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
