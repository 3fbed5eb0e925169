package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that all required values are present and consistent
func (c *Config) Validate() error {
	var problems []string

	if c.APIKey == "" {
		problems = append(problems, "API_KEY must be set for security")
	}
	if len(c.StateSigningKey) < MinStateSigningKeyLength {
		problems = append(problems, fmt.Sprintf("STATE_SIGNING_KEY must be at least %d bytes", MinStateSigningKeyLength))
	}
	if c.BackendURL == "" {
		problems = append(problems, "BACKEND_URL must be set")
	} else if err := validateAbsoluteURL(c.BackendURL); err != nil {
		problems = append(problems, "BACKEND_URL "+err.Error())
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" && (c.DBHost == "" || c.DBName == "") {
			problems = append(problems, "DATABASE_URL or DB_HOST and DB_NAME must be set for the postgres store")
		}
	case StoreDriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}

	for _, origin := range c.AllowedOrigins() {
		if err := validateAbsoluteURL(origin); err != nil {
			problems = append(problems, fmt.Sprintf("origin %q %s", origin, err.Error()))
		}
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"LINK_TIMEOUT", c.LinkTimeout},
		{"POLL_INTERVAL", c.PollInterval},
		{"POPUP_POLL_INTERVAL", c.PopupPollInterval},
		{"STATE_TTL", c.StateTTL},
		{"DIALOG_RETENTION", c.DialogRetention},
		{"REAPER_INTERVAL", c.ReaperInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			problems = append(problems, d.name+" must be positive")
		}
	}
	if c.PopupClosedGrace < 0 || c.PopupClosedGrace >= c.LinkTimeout {
		problems = append(problems, "POPUP_CLOSED_GRACE must be non-negative and shorter than LINK_TIMEOUT")
	}
	if c.StoreSize <= 0 {
		problems = append(problems, "STORE_SIZE must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Warnings returns non-fatal issues, such as example values left in place
func (c *Config) Warnings() []string {
	var warnings []string

	if c.APIKey == ExampleAPIKey {
		warnings = append(warnings, "API_KEY appears to be using the example value - generate a secure key with: openssl rand -hex 32")
	}
	if c.StateSigningKey == ExampleStateSigningKey {
		warnings = append(warnings, "STATE_SIGNING_KEY appears to be using the example value")
	}
	if c.DBPassword == ExampleDBPassword {
		warnings = append(warnings, "DB_PASSWORD appears to be using the example value - please use a secure password")
	}
	if c.StoreDriver == StoreDriverMemory && c.Environment == "prod" {
		warnings = append(warnings, "STORE_DRIVER=memory loses linked integrations on restart")
	}

	return warnings
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}
