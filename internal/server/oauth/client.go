package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// maxProfileBytes caps the profile response body.
const maxProfileBytes = 1 << 20

// Token is the result of a code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scope        string
}

type provider struct {
	cfg    ProviderConfig
	oauth2 *oauth2.Config
}

// Client performs the provider calls. It is safe for concurrent use.
type Client struct {
	providers  map[models.Provider]*provider
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient registers the given providers. Every outbound call is bounded by
// timeout; zero means no per-call bound beyond the caller's context.
func NewClient(httpClient *http.Client, timeout time.Duration, configs ...ProviderConfig) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		providers:  make(map[models.Provider]*provider, len(configs)),
		httpClient: httpClient,
		timeout:    timeout,
	}
	for _, cfg := range configs {
		c.providers[cfg.Name] = &provider{
			cfg: cfg,
			oauth2: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURI,
				Scopes:       cfg.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:   cfg.AuthURL,
					TokenURL:  cfg.TokenURL,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
		}
	}
	return c
}

func (c *Client) lookup(p models.Provider) (*provider, error) {
	pr, ok := c.providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownProvider, string(p))
	}
	return pr, nil
}

// GenerateAuthURL builds the authorization URL. state is carried through
// unchanged and comes back on the callback.
func (c *Client) GenerateAuthURL(p models.Provider, state string) (string, error) {
	pr, err := c.lookup(p)
	if err != nil {
		return "", err
	}
	return pr.oauth2.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, p models.Provider, code string) (*Token, error) {
	pr, err := c.lookup(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := pr.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrOAuthExchange, p, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s: empty access_token", common.ErrOAuthExchange, p)
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		Scope:        scopeString(tok.Extra("scope")),
	}, nil
}

// FetchProfile loads the profile of the token owner and maps it to an
// Identity. The avatar is optional; id and display name are not.
func (c *Client) FetchProfile(ctx context.Context, p models.Provider, accessToken string) (*models.Identity, error) {
	pr, err := c.lookup(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pr.cfg.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrProfileFetch, p, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for k, v := range pr.cfg.ExtraHeaders {
		if v == HeaderClientID {
			v = pr.cfg.ClientID
		}
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrProfileFetch, p, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrProfileFetch, p, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", common.ErrProfileFetch, p, resp.StatusCode)
	}

	return parseProfile(pr.cfg, body)
}

func parseProfile(cfg ProviderConfig, body []byte) (*models.Identity, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: malformed json", common.ErrProfileFetch, cfg.Name)
	}

	id := gjson.GetBytes(body, cfg.IDPath)
	if id.Type != gjson.Number && id.Type != gjson.String {
		return nil, fmt.Errorf("%w: %s: missing %s", common.ErrProfileFetch, cfg.Name, cfg.IDPath)
	}
	externalID := id.Int()
	if externalID <= 0 {
		return nil, fmt.Errorf("%w: %s: bad id %q", common.ErrProfileFetch, cfg.Name, id.Raw)
	}

	name := gjson.GetBytes(body, cfg.NamePath)
	if name.Type != gjson.String || name.Str == "" {
		return nil, fmt.Errorf("%w: %s: missing %s", common.ErrProfileFetch, cfg.Name, cfg.NamePath)
	}

	var avatar string
	if cfg.AvatarPath != "" {
		if a := gjson.GetBytes(body, cfg.AvatarPath); a.Type == gjson.String {
			avatar = a.Str
		}
	}

	return &models.Identity{
		Provider:    cfg.Name,
		ExternalID:  externalID,
		DisplayName: name.Str,
		AvatarURL:   avatar,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// scopeString flattens the "scope" token field, which osu! returns as a
// string and Twitch as an array.
func scopeString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		parts := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
