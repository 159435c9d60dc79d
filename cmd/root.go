// Package cmd assembles the semquery command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/averros/semquery/cmd/ontology"
	"github.com/averros/semquery/cmd/serve"
	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "semquery",
		Short: "Ontology-driven semantic verse search service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyLogLevel(settings)
		},
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		ontology.Command(settings),
	)

	return rootCmd
}

// setupFlags binds the global flags to viper so command-line arguments
// take precedence over the config file.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Ontology.Storage, "storage", viper.GetString("ontology.storage"),
		"Active storage backend: flatfile or relational")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}

// applyLogLevel lowers the logging threshold when debug output is requested.
func applyLogLevel(settings *conf.Settings) {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
}
