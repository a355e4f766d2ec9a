// Package services contains the server-side business logic: the account
// linking state machine, the session operations built on it and the
// storage-backed AccountStore.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/logging"
	"github.com/dmitrijs2005/ronnia/internal/server/auth"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/dmitrijs2005/ronnia/internal/server/oauth"
)

// OAuthClient is the provider-facing side of a login.
type OAuthClient interface {
	GenerateAuthURL(provider models.Provider, state string) (string, error)
	ExchangeCode(ctx context.Context, provider models.Provider, code string) (*oauth.Token, error)
	FetchProfile(ctx context.Context, provider models.Provider, accessToken string) (*models.Identity, error)
}

// OutcomeKind tells a finished login apart from one waiting for its second
// provider.
type OutcomeKind string

const (
	OutcomeSession       OutcomeKind = "session"
	OutcomeSignupPending OutcomeKind = "signup_pending"
)

// LoginOutcome is the result of CompleteLogin. Account is nil for
// OutcomeSignupPending, and Token is then a SignupToken.
type LoginOutcome struct {
	Kind      OutcomeKind
	Provider  models.Provider
	Account   *models.LinkedAccount
	Token     string
	ExpiresAt time.Time
}

// AccountLinker resolves one OAuth callback into either a session for a
// known account, a pending signup, or a freshly linked account.
type AccountLinker struct {
	oauth  OAuthClient
	store  AccountStore
	issuer *auth.Issuer
	log    logging.Logger
	// timeout bounds the steps that run after the code has been consumed.
	timeout time.Duration
}

func NewAccountLinker(client OAuthClient, store AccountStore, issuer *auth.Issuer, log logging.Logger, timeout time.Duration) *AccountLinker {
	return &AccountLinker{
		oauth:   client,
		store:   store,
		issuer:  issuer,
		log:     log.With("module", "linker"),
		timeout: timeout,
	}
}

// CompleteLogin runs exchange, profile fetch and lookup strictly in that
// order. pendingSignup is the SignupToken from an earlier half-finished
// login, or empty.
//
// Once the exchange succeeds the code is spent at the provider, so the
// remaining steps ignore cancellation of ctx and are bounded by the linker
// timeout instead.
func (l *AccountLinker) CompleteLogin(ctx context.Context, provider models.Provider, code, pendingSignup string) (*LoginOutcome, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownProvider, string(provider))
	}

	token, err := l.oauth.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	identity, err := l.oauth.FetchProfile(ctx, provider, token.AccessToken)
	if err != nil {
		return nil, err
	}

	account, err := l.store.FindByProviderID(ctx, provider, identity.ExternalID)
	switch {
	case err == nil:
		l.log.Info(ctx, "login resolved", "provider", provider, "account_id", account.ID)
		return l.session(account, provider)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error looking up account: %w", err)
	}

	pending := l.pendingIdentity(ctx, pendingSignup)
	if pending == nil {
		return l.signupPending(ctx, identity)
	}
	if pending.Provider == provider {
		return nil, fmt.Errorf("%w: both halves are %s", common.ErrCrossProviderMismatch, provider)
	}

	stored, err := l.store.Upsert(ctx, models.NewLinkedAccount(*identity, *pending))
	if err != nil {
		return nil, fmt.Errorf("error storing linked account: %w", err)
	}
	l.log.Info(ctx, "accounts linked", "provider", provider, "account_id", stored.ID)
	return l.session(stored, provider)
}

// pendingIdentity decodes the pending SignupToken. Bad or stale tokens are
// treated as absent.
func (l *AccountLinker) pendingIdentity(ctx context.Context, token string) *models.Identity {
	if token == "" {
		return nil
	}
	identity, err := l.issuer.VerifySignup(token)
	if err != nil {
		l.log.Warn(ctx, "ignoring pending signup token", "error", err)
		return nil
	}
	return identity
}

func (l *AccountLinker) signupPending(ctx context.Context, identity *models.Identity) (*LoginOutcome, error) {
	token, err := l.issuer.IssueSignup(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	l.log.Info(ctx, "signup pending", "provider", identity.Provider, "external_id", identity.ExternalID)
	return &LoginOutcome{Kind: OutcomeSignupPending, Provider: identity.Provider, Token: token}, nil
}

func (l *AccountLinker) session(account *models.LinkedAccount, provider models.Provider) (*LoginOutcome, error) {
	token, expires, err := l.issuer.IssueSession(account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &LoginOutcome{Kind: OutcomeSession, Provider: provider, Account: account, Token: token, ExpiresAt: expires}, nil
}
