package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/config"
)

var errConfigExists = errors.New("config file already exists")

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings to --config",
	Args:  cobra.NoArgs,
	// the file may not exist yet, so skip the root config loading
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stderr, "info")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if err := writeDefaultConfig(configPath, force); err != nil {
			return err
		}
		log.Info().Str("path", configPath).Msg("Wrote default config")
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", errConfigExists, path)
	}
	return config.Save(path, config.Default())
}
