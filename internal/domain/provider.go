package domain

import (
	"fmt"
	"strings"
)

// Provider identifies a supported ad platform.
type Provider string

// Supported ad platforms
const (
	ProviderMeta     Provider = "meta"
	ProviderGoogle   Provider = "google"
	ProviderLinkedIn Provider = "linkedin"
)

// Providers lists the closed set of supported ad platforms in display order.
var Providers = []Provider{ProviderMeta, ProviderGoogle, ProviderLinkedIn}

// ParseProvider normalizes a provider name and checks it against the supported set.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Valid reports whether p is one of the supported ad platforms.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

func (p Provider) String() string {
	return string(p)
}
