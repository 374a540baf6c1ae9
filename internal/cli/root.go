// Package cli is the kable command line: submit documents, list group
// choices, seed the local store and serve the HTTP API.
package cli

import (
	"errors"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/kable/internal/choices"
	"github.com/debemdeboas/kable/internal/config"
	"github.com/debemdeboas/kable/internal/db"
	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/logger"
	"github.com/debemdeboas/kable/internal/render"
	"github.com/debemdeboas/kable/internal/server"
	"github.com/debemdeboas/kable/internal/store"
	"github.com/debemdeboas/kable/internal/store/rest"
	"github.com/debemdeboas/kable/internal/submission"
)

var (
	configPath string
	envFile    string

	cfg *config.Config
	cliLogger zerolog.Logger
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kable",
		Short:         "Newsletter submissions for list-based content stores",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(submitCmd(), choicesCmd(), serveCmd(), seedChoicesCmd())
	return root
}

// setup loads the environment and config, then hands every package the
// configured logger.
func setup(stderr io.Writer) error {
	envErr := godotenv.Load(envFile)

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	cliLogger = logger.NewWithWriter(cfg.Logging.Level, logger.Format(cfg.Logging.Format), stderr)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		cliLogger.Warn().Err(envErr).Str("path", envFile).Msg("Failed to load env file")
	}

	config.SetLogger(cliLogger.With().Str("component", "config").Logger())
	db.SetLogger(cliLogger.With().Str("component", "db").Logger())
	store.SetLogger(cliLogger.With().Str("component", "store").Logger())
	rest.SetLogger(cliLogger.With().Str("component", "rest").Logger())
	submission.SetLogger(cliLogger.With().Str("component", "submission").Logger())
	choices.SetLogger(cliLogger.With().Str("component", "choices").Logger())
	form.SetLogger(cliLogger.With().Str("component", "form").Logger())
	render.SetLogger(cliLogger.With().Str("component", "render").Logger())
	server.SetLogger(cliLogger.With().Str("component", "server").Logger())
	return nil
}
