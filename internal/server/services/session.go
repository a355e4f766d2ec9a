package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/logging"
	"github.com/dmitrijs2005/ronnia/internal/server/auth"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
)

// Live listing page bounds.
const (
	DefaultLiveLimit = 5
	MaxLiveLimit     = 50
)

// CookieChange is a cookie the transport has to set, or clear when Clear is
// true.
type CookieChange struct {
	Name    string
	Value   string
	Expires time.Time
	Clear   bool
}

// FinishResult tells the transport what to do after a callback.
type FinishResult struct {
	Outcome     OutcomeKind
	Cookies     []CookieChange
	RedirectURL string
}

// SessionService exposes the login flow and the operations of a signed-in
// account. Every privileged call re-resolves the account from storage.
type SessionService struct {
	linker *AccountLinker
	oauth  OAuthClient
	store  AccountStore
	issuer *auth.Issuer
	log    logging.Logger
}

func NewSessionService(linker *AccountLinker, client OAuthClient, store AccountStore, issuer *auth.Issuer, log logging.Logger) *SessionService {
	return &SessionService{
		linker: linker,
		oauth:  client,
		store:  store,
		issuer: issuer,
		log:    log.With("module", "session"),
	}
}

// BeginLogin returns the provider authorization URL. The referer travels as
// the OAuth state and is where the user lands once the flow is done.
func (s *SessionService) BeginLogin(provider, referer string) (string, error) {
	p, err := models.ParseProvider(provider)
	if err != nil {
		return "", err
	}
	return s.oauth.GenerateAuthURL(p, localRedirect(referer))
}

// FinishLogin completes a provider callback. referer is the OAuth state and
// signupCookie the pending SignupToken, if any.
func (s *SessionService) FinishLogin(ctx context.Context, provider, code, referer, signupCookie string) (*FinishResult, error) {
	p, err := models.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", common.ErrorValidation)
	}
	referer = localRedirect(referer)

	outcome, err := s.linker.CompleteLogin(ctx, p, code, signupCookie)
	if err != nil {
		return nil, err
	}

	if outcome.Kind == OutcomeSignupPending {
		next, err := s.oauth.GenerateAuthURL(p.Other(), referer)
		if err != nil {
			return nil, err
		}
		return &FinishResult{
			Outcome: outcome.Kind,
			Cookies: []CookieChange{
				{Name: common.SignupDetailsCookieName, Value: outcome.Token},
				{Name: common.SignupProviderCookieName, Value: p.String()},
			},
			RedirectURL: next,
		}, nil
	}

	return &FinishResult{
		Outcome: outcome.Kind,
		Cookies: []CookieChange{
			{Name: common.SessionCookieName, Value: outcome.Token, Expires: outcome.ExpiresAt},
			{Name: common.SignupDetailsCookieName, Clear: true},
			{Name: common.SignupProviderCookieName, Clear: true},
		},
		RedirectURL: referer,
	}, nil
}

// Whoami resolves a SessionToken to its current account.
func (s *SessionService) Whoami(ctx context.Context, sessionToken string) (*models.LinkedAccount, error) {
	claims, err := s.issuer.VerifySession(sessionToken)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	osuID, err := claims.OsuID()
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	account, err := s.store.FindByProviderID(ctx, models.ProviderOsu, osuID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error looking up account: %w", err)
	}
	// relinked to another twitch account since the token was issued
	if account.Twitch.ExternalID != claims.TwitchID {
		return nil, common.ErrorUnauthorized
	}
	return account, nil
}

// Logout only acknowledges; there is no server-side revocation and the
// transport clears the cookie.
func (s *SessionService) Logout(sessionToken string) error {
	if claims, err := s.issuer.VerifySession(sessionToken); err == nil {
		s.log.Debug(context.Background(), "logout", "osu_id", claims.Subject)
	}
	return nil
}

// RemoveAccount deletes the requester's own account.
func (s *SessionService) RemoveAccount(ctx context.Context, sessionToken string) error {
	account, err := s.Whoami(ctx, sessionToken)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteByProviderID(ctx, models.ProviderOsu, account.Osu.ExternalID)
	if err != nil {
		return err
	}
	if !deleted {
		return common.ErrorUnauthorized
	}
	s.log.Info(ctx, "account removed", "account_id", account.ID)
	return nil
}

func (s *SessionService) AddExcludedPeer(ctx context.Context, sessionToken, peer string) error {
	return s.changeExcludedPeer(ctx, sessionToken, peer, s.store.AddExcludedPeer)
}

func (s *SessionService) RemoveExcludedPeer(ctx context.Context, sessionToken, peer string) error {
	return s.changeExcludedPeer(ctx, sessionToken, peer, s.store.RemoveExcludedPeer)
}

func (s *SessionService) changeExcludedPeer(ctx context.Context, sessionToken, peer string, apply func(ctx context.Context, accountID, peer string) error) error {
	peer = strings.ToLower(strings.TrimSpace(peer))
	if peer == "" {
		return fmt.Errorf("%w: empty peer name", common.ErrorValidation)
	}

	account, err := s.Whoami(ctx, sessionToken)
	if err != nil {
		return err
	}
	return apply(ctx, account.ID, peer)
}

// ListLive pages through the Twitch names of accounts that are live now.
func (s *SessionService) ListLive(ctx context.Context, limit, offset int) ([]string, error) {
	switch {
	case limit <= 0:
		limit = DefaultLiveLimit
	case limit > MaxLiveLimit:
		limit = MaxLiveLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListLive(ctx, limit, offset)
}

// localRedirect keeps only the path, query and fragment of a referer so that
// the final redirect never leaves the site.
func localRedirect(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	local := url.URL{Path: u.Path, RawQuery: u.RawQuery, Fragment: u.Fragment}
	return local.String()
}
