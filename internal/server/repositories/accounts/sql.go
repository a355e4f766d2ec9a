package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/dbx"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
)

const accountColumns = `id, osu_id, osu_username, osu_avatar_url,
		twitch_id, twitch_username, twitch_avatar_url,
		settings, is_live, created_at, updated_at`

// sqlRepository holds the statements shared by every dialect. Queries are
// written with $n placeholders and rebound for drivers that need '?'.
type sqlRepository struct {
	db     dbx.DBTX
	rebind func(query string) string
}

// idColumn maps a provider to its unique id column. Only validated
// providers reach the query text.
func idColumn(p models.Provider) (string, error) {
	switch p {
	case models.ProviderOsu:
		return "osu_id", nil
	case models.ProviderTwitch:
		return "twitch_id", nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownProvider, string(p))
	}
}

func (r *sqlRepository) FindByProviderID(ctx context.Context, provider models.Provider, externalID int64) (*models.LinkedAccount, error) {
	column, err := idColumn(provider)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE ` + column + ` = $1`

	var (
		a                    models.LinkedAccount
		settings             string
		createdAt, updatedAt int64
	)
	err = r.db.QueryRowContext(ctx, r.rebind(query), externalID).Scan(
		&a.ID, &a.Osu.ExternalID, &a.Osu.DisplayName, &a.Osu.AvatarURL,
		&a.Twitch.ExternalID, &a.Twitch.DisplayName, &a.Twitch.AvatarURL,
		&settings, &a.IsLive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Settings = []byte(settings)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func (r *sqlRepository) Insert(ctx context.Context, a *models.LinkedAccount) (bool, error) {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING`

	settings := string(a.Settings)
	if settings == "" {
		settings = string(models.DefaultSettings)
	}

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.Osu.ExternalID, a.Osu.DisplayName, a.Osu.AvatarURL,
		a.Twitch.ExternalID, a.Twitch.DisplayName, a.Twitch.AvatarURL,
		settings, a.IsLive, a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *sqlRepository) Delete(ctx context.Context, provider models.Provider, externalID int64) (bool, error) {
	column, err := idColumn(provider)
	if err != nil {
		return false, err
	}

	peers := `DELETE FROM excluded_peers
		WHERE account_id IN (SELECT id FROM accounts WHERE ` + column + ` = $1)`
	if _, err := r.db.ExecContext(ctx, r.rebind(peers), externalID); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	query := `DELETE FROM accounts WHERE ` + column + ` = $1`
	res, err := r.db.ExecContext(ctx, r.rebind(query), externalID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *sqlRepository) ListExcludedPeers(ctx context.Context, accountID string) ([]string, error) {
	query := `SELECT peer FROM excluded_peers
		WHERE account_id = $1
		ORDER BY peer`
	return r.selectStrings(ctx, r.rebind(query), accountID)
}

func (r *sqlRepository) AddExcludedPeer(ctx context.Context, accountID, peer string) error {
	query := `INSERT INTO excluded_peers (account_id, peer)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, r.rebind(query), accountID, peer); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *sqlRepository) RemoveExcludedPeer(ctx context.Context, accountID, peer string) error {
	query := `DELETE FROM excluded_peers
		WHERE account_id = $1 AND peer = $2`
	if _, err := r.db.ExecContext(ctx, r.rebind(query), accountID, peer); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *sqlRepository) SetLive(ctx context.Context, twitchID int64, live bool) (bool, error) {
	query := `UPDATE accounts SET is_live = $1, updated_at = $2
		WHERE twitch_id = $3`
	res, err := r.db.ExecContext(ctx, r.rebind(query), live, time.Now().Unix(), twitchID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *sqlRepository) ListLive(ctx context.Context, limit, offset int) ([]string, error) {
	query := `SELECT twitch_username FROM accounts
		WHERE is_live = $1
		ORDER BY twitch_username
		LIMIT $2 OFFSET $3`
	return r.selectStrings(ctx, r.rebind(query), true, limit, offset)
}

func (r *sqlRepository) selectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// questionPlaceholders rewrites $1..$n into '?' in order of appearance.
// Every statement above uses each placeholder exactly once, ascending.
func questionPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		j := i + 1
		for query[i] == '$' && j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j > i+1 {
			b.WriteByte('?')
			i = j - 1
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
