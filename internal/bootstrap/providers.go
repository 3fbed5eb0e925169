package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/linking"
)

// LoadProviders loads and validates the provider registry, either from
// cfg.ProvidersFile or the embedded default.
func LoadProviders(cfg *config.Config) (*linking.Registry, error) {
	registry, err := linking.LoadProviders(cfg.ProvidersFile, cfg.ExpansionVars())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedLoadProviders, err)
	}

	names := make([]string, 0, len(registry.All()))
	for _, p := range registry.All() {
		names = append(names, string(p.Name))
	}
	source := cfg.ProvidersFile
	if source == "" {
		source = "embedded"
	}
	slog.Info(LogMsgProvidersLoaded, "source", source, "providers", names)

	return registry, nil
}
