package accounts

import "github.com/dmitrijs2005/ronnia/internal/dbx"

// SQLiteRepository implements Repository for modernc.org/sqlite.
type SQLiteRepository struct {
	sqlRepository
}

// NewSQLiteRepository constructs a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlRepository{db: db, rebind: questionPlaceholders}}
}
