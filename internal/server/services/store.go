package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/dbx"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/dmitrijs2005/ronnia/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AccountStore is the persistence boundary of the linking core.
type AccountStore interface {
	// FindByProviderID returns common.ErrorNotFound on a miss.
	FindByProviderID(ctx context.Context, provider models.Provider, externalID int64) (*models.LinkedAccount, error)
	// Upsert stores the account unless one keyed by the same osu! id already
	// exists, and returns whichever record is stored. A Twitch id owned by a
	// different osu! account yields common.ErrorAlreadyExists.
	Upsert(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error)
	DeleteByProviderID(ctx context.Context, provider models.Provider, externalID int64) (bool, error)

	AddExcludedPeer(ctx context.Context, accountID, peer string) error
	RemoveExcludedPeer(ctx context.Context, accountID, peer string) error

	SetLive(ctx context.Context, twitchID int64, live bool) (bool, error)
	ListLive(ctx context.Context, limit, offset int) ([]string, error)
}

// SQLAccountStore implements AccountStore on top of the driver-specific
// account repositories.
type SQLAccountStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

var _ AccountStore = (*SQLAccountStore)(nil)

func NewSQLAccountStore(db *sql.DB, m repomanager.RepositoryManager) *SQLAccountStore {
	return &SQLAccountStore{db: db, repomanager: m, now: time.Now}
}

func (s *SQLAccountStore) FindByProviderID(ctx context.Context, provider models.Provider, externalID int64) (*models.LinkedAccount, error) {
	return s.find(ctx, s.db, provider, externalID)
}

func (s *SQLAccountStore) find(ctx context.Context, db dbx.DBTX, provider models.Provider, externalID int64) (*models.LinkedAccount, error) {
	repo := s.repomanager.Accounts(db)

	account, err := repo.FindByProviderID(ctx, provider, externalID)
	if err != nil {
		return nil, err
	}

	peers, err := repo.ListExcludedPeers(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing excluded peers: %w", err)
	}
	account.ExcludedPeers = peers
	return account, nil
}

func (s *SQLAccountStore) Upsert(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error) {
	candidate := *account
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = s.now().UTC()
	}
	if candidate.UpdatedAt.IsZero() {
		candidate.UpdatedAt = candidate.CreatedAt
	}

	var stored *models.LinkedAccount
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Accounts(tx).Insert(ctx, &candidate); err != nil {
			return fmt.Errorf("error inserting account: %w", err)
		}

		var err error
		stored, err = s.find(ctx, tx, models.ProviderOsu, candidate.Osu.ExternalID)
		if errors.Is(err, common.ErrorNotFound) {
			// nothing stored under this osu! id, so the twitch id clashed
			return fmt.Errorf("twitch id %d: %w", candidate.Twitch.ExternalID, common.ErrorAlreadyExists)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQLAccountStore) DeleteByProviderID(ctx context.Context, provider models.Provider, externalID int64) (bool, error) {
	var deleted bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		deleted, err = s.repomanager.Accounts(tx).Delete(ctx, provider, externalID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("error deleting account: %w", err)
	}
	return deleted, nil
}

func (s *SQLAccountStore) AddExcludedPeer(ctx context.Context, accountID, peer string) error {
	return s.repomanager.Accounts(s.db).AddExcludedPeer(ctx, accountID, peer)
}

func (s *SQLAccountStore) RemoveExcludedPeer(ctx context.Context, accountID, peer string) error {
	return s.repomanager.Accounts(s.db).RemoveExcludedPeer(ctx, accountID, peer)
}

func (s *SQLAccountStore) SetLive(ctx context.Context, twitchID int64, live bool) (bool, error) {
	return s.repomanager.Accounts(s.db).SetLive(ctx, twitchID, live)
}

func (s *SQLAccountStore) ListLive(ctx context.Context, limit, offset int) ([]string, error) {
	return s.repomanager.Accounts(s.db).ListLive(ctx, limit, offset)
}
