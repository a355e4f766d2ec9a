package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves the token and profile endpoints of one provider.
type fakeProvider struct {
	tokenStatus   int
	tokenBody     string
	profileStatus int
	profileBody   string
	delay         time.Duration

	mu         sync.Mutex
	gotForm    url.Values
	gotHeaders http.Header
}

func (f *fakeProvider) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotForm
}

func (f *fakeProvider) headers() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotHeaders
}

func (f *fakeProvider) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.gotForm = r.PostForm
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.gotHeaders = r.Header.Clone()
		f.mu.Unlock()
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.profileStatus)
		_, _ = w.Write([]byte(f.profileBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pointAt(cfg ProviderConfig, srv *httptest.Server) ProviderConfig {
	cfg.TokenURL = srv.URL + "/token"
	cfg.ProfileURL = srv.URL + "/me"
	return cfg
}

func TestGenerateAuthURL(t *testing.T) {
	c := NewClient(nil, time.Second,
		OsuProvider("osu-client", "osu-secret", "https://ronnia.me/oauth2/osu/callback"),
		TwitchProvider("tw-client", "tw-secret", "https://ronnia.me/oauth2/twitch/callback"),
	)
	state := "/settings?tab=a&b=c d"

	raw, err := c.GenerateAuthURL(models.ProviderTwitch, state)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "id.twitch.tv", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "tw-client", q.Get("client_id"))
	assert.Equal(t, "https://ronnia.me/oauth2/twitch/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "user:read:email", q.Get("scope"))
	assert.Equal(t, state, q.Get("state"))
}

func TestGenerateAuthURL_UnknownProvider(t *testing.T) {
	c := NewClient(nil, time.Second, OsuProvider("a", "b", "c"))

	_, err := c.GenerateAuthURL(models.Provider("github"), "/")
	assert.True(t, errors.Is(err, common.ErrUnknownProvider))

	_, err = c.GenerateAuthURL(models.ProviderTwitch, "/")
	assert.True(t, errors.Is(err, common.ErrUnknownProvider))
}

func TestExchangeCode_Success(t *testing.T) {
	fp := &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"at","refresh_token":"rt","expires_in":3600,"token_type":"bearer","scope":["user:read:email","chat:read"]}`,
	}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(TwitchProvider("tw-client", "tw-secret", "https://cb"), srv))

	tok, err := c.ExchangeCode(context.Background(), models.ProviderTwitch, "the-code")
	require.NoError(t, err)
	assert.Equal(t, &Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600, Scope: "user:read:email chat:read"}, tok)

	assert.Equal(t, "authorization_code", fp.form().Get("grant_type"))
	assert.Equal(t, "the-code", fp.form().Get("code"))
	assert.Equal(t, "tw-client", fp.form().Get("client_id"))
	assert.Equal(t, "tw-secret", fp.form().Get("client_secret"))
	assert.Equal(t, "https://cb", fp.form().Get("redirect_uri"))
}

func TestExchangeCode_StringScope(t *testing.T) {
	fp := &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"at","token_type":"Bearer","expires_in":86400,"scope":"identify"}`,
	}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(OsuProvider("id", "secret", "https://cb"), srv))

	tok, err := c.ExchangeCode(context.Background(), models.ProviderOsu, "code")
	require.NoError(t, err)
	assert.Equal(t, "identify", tok.Scope)
	assert.Empty(t, tok.RefreshToken)
}

func TestExchangeCode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "rejected code", status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "missing access token", status: http.StatusOK, body: `{"token_type":"bearer"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProvider{tokenStatus: tt.status, tokenBody: tt.body}
			srv := fp.server(t)
			c := NewClient(srv.Client(), time.Second, pointAt(OsuProvider("id", "secret", "https://cb"), srv))

			_, err := c.ExchangeCode(context.Background(), models.ProviderOsu, "code")
			if !errors.Is(err, common.ErrOAuthExchange) {
				t.Fatalf("expected ErrOAuthExchange, got %v", err)
			}
		})
	}
}

func TestExchangeCode_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := pointAt(OsuProvider("id", "secret", "https://cb"), srv)
	srv.Close()

	c := NewClient(nil, time.Second, cfg)
	_, err := c.ExchangeCode(context.Background(), models.ProviderOsu, "code")
	assert.True(t, errors.Is(err, common.ErrOAuthExchange), "got %v", err)
}

func TestFetchProfile_Osu(t *testing.T) {
	fp := &fakeProvider{
		profileStatus: http.StatusOK,
		profileBody:   `{"id":100,"username":"cookiezi","avatar_url":"https://a.ppy.sh/100","country_code":"KR"}`,
	}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(OsuProvider("osu-client", "s", "https://cb"), srv))

	id, err := c.FetchProfile(context.Background(), models.ProviderOsu, "at")
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{Provider: models.ProviderOsu, ExternalID: 100, DisplayName: "cookiezi", AvatarURL: "https://a.ppy.sh/100"}, id)

	assert.Equal(t, "Bearer at", fp.headers().Get("Authorization"))
	assert.Empty(t, fp.headers().Get("Client-Id"))
}

func TestFetchProfile_Twitch(t *testing.T) {
	fp := &fakeProvider{
		profileStatus: http.StatusOK,
		profileBody:   `{"data":[{"id":"200","login":"shigetora","display_name":"Shigetora","profile_image_url":"https://cdn/200.png"}]}`,
	}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(TwitchProvider("tw-client", "s", "https://cb"), srv))

	id, err := c.FetchProfile(context.Background(), models.ProviderTwitch, "at")
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{Provider: models.ProviderTwitch, ExternalID: 200, DisplayName: "shigetora", AvatarURL: "https://cdn/200.png"}, id)

	assert.Equal(t, "Bearer at", fp.headers().Get("Authorization"))
	assert.Equal(t, "tw-client", fp.headers().Get("Client-Id"))
}

func TestFetchProfile_MissingAvatarIsAllowed(t *testing.T) {
	fp := &fakeProvider{profileStatus: http.StatusOK, profileBody: `{"id":7,"username":"x"}`}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(OsuProvider("a", "b", "c"), srv))

	id, err := c.FetchProfile(context.Background(), models.ProviderOsu, "at")
	require.NoError(t, err)
	assert.Empty(t, id.AvatarURL)
}

func TestFetchProfile_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad token"}`},
		{name: "malformed json", status: http.StatusOK, body: `{"id":`},
		{name: "missing id", status: http.StatusOK, body: `{"username":"x"}`},
		{name: "non numeric id", status: http.StatusOK, body: `{"id":"abc","username":"x"}`},
		{name: "zero id", status: http.StatusOK, body: `{"id":0,"username":"x"}`},
		{name: "missing name", status: http.StatusOK, body: `{"id":5}`},
		{name: "empty name", status: http.StatusOK, body: `{"id":5,"username":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProvider{profileStatus: tt.status, profileBody: tt.body}
			srv := fp.server(t)
			c := NewClient(srv.Client(), time.Second, pointAt(OsuProvider("a", "b", "c"), srv))

			_, err := c.FetchProfile(context.Background(), models.ProviderOsu, "at")
			if !errors.Is(err, common.ErrProfileFetch) {
				t.Fatalf("expected ErrProfileFetch, got %v", err)
			}
		})
	}
}

func TestFetchProfile_EmptyTwitchData(t *testing.T) {
	fp := &fakeProvider{profileStatus: http.StatusOK, profileBody: `{"data":[]}`}
	srv := fp.server(t)
	c := NewClient(srv.Client(), time.Second, pointAt(TwitchProvider("a", "b", "c"), srv))

	_, err := c.FetchProfile(context.Background(), models.ProviderTwitch, "at")
	assert.True(t, errors.Is(err, common.ErrProfileFetch), "got %v", err)
}

func TestFetchProfile_Timeout(t *testing.T) {
	fp := &fakeProvider{profileStatus: http.StatusOK, profileBody: `{"id":1,"username":"x"}`, delay: time.Second}
	srv := fp.server(t)
	c := NewClient(srv.Client(), 50*time.Millisecond, pointAt(OsuProvider("a", "b", "c"), srv))

	_, err := c.FetchProfile(context.Background(), models.ProviderOsu, "at")
	assert.True(t, errors.Is(err, common.ErrProfileFetch), "got %v", err)
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "identify", scopeString("identify"))
	assert.Equal(t, "a b", scopeString([]any{"a", "b"}))
	assert.Equal(t, "", scopeString(nil))
	assert.Equal(t, "", scopeString(42.0))
}
