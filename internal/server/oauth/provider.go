// Package oauth talks to the two identity providers: it builds authorization
// URLs, exchanges authorization codes and fetches the user profile. Both
// providers go through the same code, described by ProviderConfig.
package oauth

import (
	"github.com/dmitrijs2005/ronnia/internal/server/models"
)

// ProviderConfig describes one provider. Profile fields are located with
// gjson paths so that differently shaped responses map onto one Identity.
type ProviderConfig struct {
	Name       models.Provider
	AuthURL    string
	TokenURL   string
	ProfileURL string
	Scopes     []string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	// ExtraHeaders are sent with the profile request. A value of
	// HeaderClientID is replaced with the client id.
	ExtraHeaders map[string]string

	IDPath     string
	NamePath   string
	AvatarPath string
}

// HeaderClientID is a placeholder for ExtraHeaders values.
const HeaderClientID = "{client_id}"

// OsuProvider returns the osu! API v2 endpoints.
func OsuProvider(clientID, clientSecret, redirectURI string) ProviderConfig {
	return ProviderConfig{
		Name:         models.ProviderOsu,
		AuthURL:      "https://osu.ppy.sh/oauth/authorize",
		TokenURL:     "https://osu.ppy.sh/oauth/token",
		ProfileURL:   "https://osu.ppy.sh/api/v2/me",
		Scopes:       []string{"identify"},
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		IDPath:       "id",
		NamePath:     "username",
		AvatarPath:   "avatar_url",
	}
}

// TwitchProvider returns the Twitch Helix endpoints. Helix rejects requests
// without a Client-Id header.
func TwitchProvider(clientID, clientSecret, redirectURI string) ProviderConfig {
	return ProviderConfig{
		Name:         models.ProviderTwitch,
		AuthURL:      "https://id.twitch.tv/oauth2/authorize",
		TokenURL:     "https://id.twitch.tv/oauth2/token",
		ProfileURL:   "https://api.twitch.tv/helix/users",
		Scopes:       []string{"user:read:email"},
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		ExtraHeaders: map[string]string{"Client-Id": HeaderClientID},
		IDPath:       "data.0.id",
		NamePath:     "data.0.login",
		AvatarPath:   "data.0.profile_image_url",
	}
}
