package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/cinefluent/internal/config"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

type commandContext struct {
	envFile  string
	dataDir  string
	logLevel string

	cfg *config.Config
}

// ensureConfig loads the .env file, reads the environment and applies
// flag overrides. It runs once per process.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", c.envFile, err)
	}

	cfg, err := config.NewFromEnv(func(cfg *config.Config) {
		if c.dataDir != "" {
			cfg.System.DataDir = c.dataDir
		}
		if c.logLevel != "" {
			cfg.System.LogLevel = c.logLevel
		}
	})
	if err != nil {
		return nil, err
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "cinefluent",
		Short:         "Turn subtitles into vocabulary-ranked learning segments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&ctx.dataDir, "data-dir", "", "Override DATA_DIR")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))

	return rootCmd
}
