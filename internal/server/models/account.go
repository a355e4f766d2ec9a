package models

import (
	"encoding/json"
	"time"
)

// ProviderProfile is the persisted half of a LinkedAccount for one provider.
type ProviderProfile struct {
	ExternalID  int64
	DisplayName string
	AvatarURL   string
}

// LinkedAccount joins one osu! identity with one Twitch identity.
// Both halves are always present once the account exists.
type LinkedAccount struct {
	ID            string
	Osu           ProviderProfile
	Twitch        ProviderProfile
	ExcludedPeers []string
	// Settings is opaque to the linking core.
	Settings  json.RawMessage
	IsLive    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSettings is stored for freshly linked accounts.
var DefaultSettings = json.RawMessage(`{}`)

// Profile returns the account half that belongs to p.
func (a *LinkedAccount) Profile(p Provider) ProviderProfile {
	if p == ProviderTwitch {
		return a.Twitch
	}
	return a.Osu
}

// NewLinkedAccount merges two identities from different providers.
// The caller guarantees that a and b are for different providers.
func NewLinkedAccount(a, b Identity) *LinkedAccount {
	acc := &LinkedAccount{Settings: DefaultSettings, ExcludedPeers: []string{}}
	for _, id := range []Identity{a, b} {
		profile := ProviderProfile{ExternalID: id.ExternalID, DisplayName: id.DisplayName, AvatarURL: id.AvatarURL}
		if id.Provider == ProviderTwitch {
			acc.Twitch = profile
		} else {
			acc.Osu = profile
		}
	}
	return acc
}
