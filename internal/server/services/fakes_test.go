package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/logging"
	"github.com/dmitrijs2005/ronnia/internal/server/auth"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/dmitrijs2005/ronnia/internal/server/oauth"
	"github.com/dmitrijs2005/ronnia/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var (
	osu100    = &models.Identity{Provider: models.ProviderOsu, ExternalID: 100, DisplayName: "cookiezi", AvatarURL: "https://a.ppy.sh/100"}
	osu101    = &models.Identity{Provider: models.ProviderOsu, ExternalID: 101, DisplayName: "rafis"}
	twitch200 = &models.Identity{Provider: models.ProviderTwitch, ExternalID: 200, DisplayName: "shigetora", AvatarURL: "https://cdn/200.png"}
	twitch201 = &models.Identity{Provider: models.ProviderTwitch, ExternalID: 201, DisplayName: "whitecat"}
)

func newTestIssuer() *auth.Issuer {
	return auth.NewIssuer("test-secret", 30*time.Minute, 365*24*time.Hour)
}

// fakeOAuth hands out identities by code. Codes are single-use, like at the
// real providers.
type fakeOAuth struct {
	mu         sync.Mutex
	codes      map[string]*models.Identity
	used       map[string]bool
	profileErr error
	calls      []string

	// afterExchange runs once the code has been accepted.
	afterExchange func()
}

func newFakeOAuth(codes map[string]*models.Identity) *fakeOAuth {
	return &fakeOAuth{codes: codes, used: map[string]bool{}}
}

func (f *fakeOAuth) GenerateAuthURL(p models.Provider, state string) (string, error) {
	if !p.Valid() {
		return "", common.ErrUnknownProvider
	}
	return "https://" + p.String() + ".example/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, p models.Provider, code string) (*oauth.Token, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "exchange")
	id, ok := f.codes[code]
	if !ok || f.used[code] || id.Provider != p {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: invalid_grant", common.ErrOAuthExchange, p)
	}
	f.used[code] = true
	hook := f.afterExchange
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &oauth.Token{AccessToken: "at:" + code}, nil
}

func (f *fakeOAuth) FetchProfile(ctx context.Context, p models.Provider, accessToken string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "profile")
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProfileFetch, err)
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	id := *f.codes[accessToken[len("at:"):]]
	return &id, nil
}

// memStore is an in-memory AccountStore that counts mutations.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.LinkedAccount
	upserts  int
	deletes  int
	findErr  error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]*models.LinkedAccount{}}
}

func (m *memStore) lookup(p models.Provider, id int64) *models.LinkedAccount {
	for _, a := range m.accounts {
		if a.Profile(p).ExternalID == id {
			return a
		}
	}
	return nil
}

func (m *memStore) FindByProviderID(ctx context.Context, p models.Provider, id int64) (*models.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a := m.lookup(p, id)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	cp := *a
	cp.ExcludedPeers = append([]string{}, a.ExcludedPeers...)
	return &cp, nil
}

func (m *memStore) Upsert(ctx context.Context, a *models.LinkedAccount) (*models.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if existing := m.lookup(models.ProviderOsu, a.Osu.ExternalID); existing != nil {
		cp := *existing
		return &cp, nil
	}
	if m.lookup(models.ProviderTwitch, a.Twitch.ExternalID) != nil {
		return nil, common.ErrorAlreadyExists
	}
	cp := *a
	cp.ID = uuid.NewString()
	m.accounts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) DeleteByProviderID(ctx context.Context, p models.Provider, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	a := m.lookup(p, id)
	if a == nil {
		return false, nil
	}
	delete(m.accounts, a.ID)
	return true, nil
}

func (m *memStore) AddExcludedPeer(ctx context.Context, accountID, peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[accountID]
	for _, p := range a.ExcludedPeers {
		if p == peer {
			return nil
		}
	}
	a.ExcludedPeers = append(a.ExcludedPeers, peer)
	sort.Strings(a.ExcludedPeers)
	return nil
}

func (m *memStore) RemoveExcludedPeer(ctx context.Context, accountID, peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[accountID]
	kept := a.ExcludedPeers[:0]
	for _, p := range a.ExcludedPeers {
		if p != peer {
			kept = append(kept, p)
		}
	}
	a.ExcludedPeers = kept
	return nil
}

func (m *memStore) SetLive(ctx context.Context, twitchID int64, live bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.lookup(models.ProviderTwitch, twitchID)
	if a == nil {
		return false, nil
	}
	a.IsLive = live
	return true, nil
}

func (m *memStore) ListLive(ctx context.Context, limit, offset int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := []string{}
	for _, a := range m.accounts {
		if a.IsLive {
			names = append(names, a.Twitch.DisplayName)
		}
	}
	sort.Strings(names)
	if offset >= len(names) {
		return []string{}, nil
	}
	names = names[offset:]
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (m *memStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func newSQLiteStore(t *testing.T) *SQLAccountStore {
	t.Helper()
	db, err := sql.Open(repomanager.DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.New(repomanager.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(context.Background(), db))

	return NewSQLAccountStore(db, rm)
}

func newTestLinker(client OAuthClient, store AccountStore) *AccountLinker {
	return NewAccountLinker(client, store, newTestIssuer(), logging.Nop{}, 5*time.Second)
}
