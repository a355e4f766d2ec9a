// Package models defines the server-side domain types shared by the linker,
// the token issuer and the account repositories.
package models

import (
	"fmt"

	"github.com/dmitrijs2005/ronnia/internal/common"
)

// Provider names an identity provider. The string value is used on the wire
// (tokens, cookies, routes) and in storage.
type Provider string

const (
	// ProviderOsu is the music-request-bot side. Accounts are keyed by its id.
	ProviderOsu Provider = "osu"
	// ProviderTwitch is the streaming side.
	ProviderTwitch Provider = "twitch"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderOsu, ProviderTwitch}

// ParseProvider validates a provider name.
func ParseProvider(name string) (Provider, error) {
	p := Provider(name)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownProvider, name)
	}
	return p, nil
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderOsu || p == ProviderTwitch
}

// Other returns the provider on the other side of a link.
func (p Provider) Other() Provider {
	if p == ProviderOsu {
		return ProviderTwitch
	}
	return ProviderOsu
}

func (p Provider) String() string { return string(p) }

// Identity is a provider-scoped user profile as returned by one OAuth login.
type Identity struct {
	Provider    Provider
	ExternalID  int64
	DisplayName string
	AvatarURL   string
}
