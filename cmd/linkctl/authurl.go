package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/linking"
)

type authURLOptions struct {
	file       string
	provider   string
	tenantID   string
	leadStatus string
	assignee   string
}

func newAuthURLCmd() *cobra.Command {
	opts := authURLOptions{}
	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the authorization URL a launch would open",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			url, err := buildAuthURL(cfg, opts, clock.NewReal())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.file, "file", "", "providers yaml path (default PROVIDERS_FILE or the embedded registry)")
	fs.StringVar(&opts.provider, "provider", "", "provider name (meta, google, linkedin)")
	fs.StringVar(&opts.tenantID, "tenant", "", "tenant id")
	fs.StringVar(&opts.leadStatus, "lead-status", "new", "default lead status")
	fs.StringVar(&opts.assignee, "assignee", "", "default assignee id")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func buildAuthURL(cfg *config.Config, opts authURLOptions, c clock.Clock) (string, error) {
	if len(cfg.StateSigningKey) < config.MinStateSigningKeyLength {
		return "", errors.New("STATE_SIGNING_KEY must be set to sign the state parameter")
	}

	providerName, err := domain.ParseProvider(opts.provider)
	if err != nil {
		return "", err
	}
	registry, err := loadRegistry(cfg, opts.file)
	if err != nil {
		return "", err
	}
	provider, err := registry.Get(providerName)
	if err != nil {
		return "", err
	}

	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	launcher := linking.NewLauncher(linking.NewStateCodec([]byte(cfg.StateSigningKey), ttl, c), nil)
	return launcher.AuthorizationURL(linking.LaunchRequest{
		Provider:  provider,
		TenantID:  opts.tenantID,
		SessionID: uuid.NewString(),
		DefaultConfig: domain.DefaultConfig{
			LeadStatus: opts.leadStatus,
			AssigneeID: opts.assignee,
		},
	})
}
