package accounts

import "github.com/dmitrijs2005/ronnia/internal/dbx"

// PostgresRepository implements Repository for the pgx driver.
type PostgresRepository struct {
	sqlRepository
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{sqlRepository{db: db, rebind: func(q string) string { return q }}}
}
