package main

import (
	"github.com/spf13/cobra"

	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/linking"
)

const appName = "linkctl"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operate the adlink service: migrations, providers, authorization URLs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newProvidersCmd(),
		newAuthURLCmd(),
	)
	return cmd
}

// loadRegistry reads the provider registry the same way the service does
func loadRegistry(cfg *config.Config, path string) (*linking.Registry, error) {
	if path == "" {
		path = cfg.ProvidersFile
	}
	return linking.LoadProviders(path, cfg.ExpansionVars())
}
