// Package accounts provides SQL repositories for linked accounts and their
// excluded peers. PostgreSQL and SQLite share the same statements and differ
// only in placeholder syntax.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/ronnia/internal/server/models"
)

// Repository is bound to a single dbx.DBTX, so the same methods run either
// directly on the pool or inside a transaction.
type Repository interface {
	// FindByProviderID returns the account owning (provider, externalID),
	// without its excluded peers. Misses yield common.ErrorNotFound.
	FindByProviderID(ctx context.Context, provider models.Provider, externalID int64) (*models.LinkedAccount, error)
	// Insert creates the account unless one of its unique keys already
	// exists. It reports whether a row was written.
	Insert(ctx context.Context, account *models.LinkedAccount) (bool, error)
	// Delete removes the account owning (provider, externalID) along with its
	// excluded peers and reports whether an account existed.
	Delete(ctx context.Context, provider models.Provider, externalID int64) (bool, error)

	ListExcludedPeers(ctx context.Context, accountID string) ([]string, error)
	AddExcludedPeer(ctx context.Context, accountID, peer string) error
	RemoveExcludedPeer(ctx context.Context, accountID, peer string) error

	// SetLive flips the live flag by Twitch id and reports whether a row matched.
	SetLive(ctx context.Context, twitchID int64, live bool) (bool, error)
	// ListLive returns Twitch usernames of live accounts ordered by name.
	ListLive(ctx context.Context, limit, offset int) ([]string, error)
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*SQLiteRepository)(nil)
)
