// Command vutelimu runs a live game session from the terminal.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glosings0n/Vut-Elimu/logger"
)

const envPrefix = "VUTELIMU"

var rootCmd = &cobra.Command{
	Use:           "vutelimu",
	Short:         "Vut Elimu - voice and sign learning games over a live model session",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `Vut Elimu hosts accessible learning games for children: spoken maths,
trivia and language drills for blind players, pronunciation and reading
coaching, and sign practice for Deaf players. Each game is a live audio or
video session with a conversational model that scores attempts through
tool calls.`,
}

// persistentPreRunE is assigned in init to avoid an initialization cycle
// between rootCmd and loadDotEnv.
func persistentPreRunE(cmd *cobra.Command, args []string) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		logger.SetVerbose(verbose)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = persistentPreRunE
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before reading the environment")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadDotEnv loads the env file if it exists. Variables already set in the
// environment win.
func loadDotEnv() error {
	path, err := rootCmd.PersistentFlags().GetString("env-file")
	if err != nil || path == "" {
		return err
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

// Execute runs the root command.
func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
