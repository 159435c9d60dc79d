package main

import (
	"fmt"
	"os"

	"github.com/averros/semquery/cmd"
	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/logging"
)

// Populated by the build system.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	logging.SetRotation(settings.Main.Log.MaxSize, settings.Main.Log.MaxBackups, settings.Main.Log.MaxAge)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
