// Package cmd implements the tokad command-line surface: a cobra root
// command plus serve/token/version subcommands, configured through
// viper from flags, environment variables, and an optional config
// file. Grounded on the teacher's cmd/tarsy/main.go (env-driven
// flag defaults, .env loading via godotenv) enriched with the
// cobra/viper subcommand pattern seen across the rest of the pack.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tokad",
	Short: "tokad runs the Toka OS kernel, event bus, and storage backend",
	Long: `tokad is the reference composition root for Toka OS.

It wires the deterministic kernel, the in-memory event bus, and a
storage backend (in-memory or embedded SQLite) into a single process,
and exposes a thin HTTP surface for submission, health, and metrics.
The kernel and its submission protocol are a library (internal/...);
tokad is one possible way to run them.`,
	Version: fullVersion(),
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml/json/toml); overrides the default search path")
	flags.String("storage", "memory", "storage backend: memory or persistent")
	flags.String("path", "tokad.db", "sqlite file path, used when --storage=persistent")
	flags.Int("bus-capacity", 1024, "per-subscriber event bus channel capacity")
	flags.Int("drain-attempts", 10, "drain task max storage-append retry attempts")
	flags.Int("drain-base-ms", 50, "drain task backoff base, in milliseconds")
	flags.Int("drain-max-ms", 5000, "drain task backoff ceiling, in milliseconds")
	flags.String("addr", ":8080", "HTTP listen address for the serve subcommand")
	flags.String("auth-secret", "", "shared HMAC secret for capability tokens (required; or set TOKAD_AUTH_SECRET)")

	for _, name := range []string{
		"storage", "path", "bus-capacity", "drain-attempts",
		"drain-base-ms", "drain-max-ms", "addr", "auth-secret",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("tokad")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// initConfig loads an optional .env file and an optional config file
// before any subcommand runs. Neither is required: a production
// deployment may configure tokad purely through flags and environment
// variables, matching the teacher's "warn and continue" tolerance for
// a missing .env.
func initConfig() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "tokad: no .env file loaded, continuing with existing environment")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tokad")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "tokad: could not read config file %s: %v\n", cfgFile, err)
		}
	}
}
