package main

import (
	"os"

	"github.com/stellarfrp/panelsync/cmd"
	"github.com/stellarfrp/panelsync/internal/conf"
	"github.com/stellarfrp/panelsync/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.HumanReadableLogger().Error("error loading configuration", "error", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error
		os.Exit(1)
	}
}
