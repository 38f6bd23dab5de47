package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinygems/tinygems/internal/version"
)

func newRootCmd() *cobra.Command {
	configPath := os.Getenv("TG_CONFIG_PATH")
	if configPath == "" {
		configPath = "tinygems.yaml"
	}

	root := &cobra.Command{
		Use:           "tinygems",
		Short:         "Find one artist across Spotify, SoundCloud, YouTube, Bandcamp, Tidal and Apple Music.",
		Version:       version.Version + " (" + version.Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newResolveCmd(&configPath),
		newClassifyCmd(),
		newDBCmd(&configPath),
	)
	return root
}
