package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/linking"
)

type providersOptions struct {
	file string
}

func newProvidersCmd() *cobra.Command {
	opts := providersOptions{}
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect the provider registry",
	}
	cmd.PersistentFlags().StringVar(&opts.file, "file", "", "providers yaml path (default PROVIDERS_FILE or the embedded registry)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			registry, err := loadRegistry(cfg, opts.file)
			if err != nil {
				return err
			}
			return printProviders(cmd.OutOrStdout(), registry)
		},
	})
	return cmd
}

func printProviders(out io.Writer, registry *linking.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tMANUAL\tREDIRECT URI\tSCOPES")
	for _, p := range registry.All() {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\n", p.Name, p.DisplayName, p.ManualFallback, p.RedirectURI, len(p.Scopes))
	}
	return tw.Flush()
}
