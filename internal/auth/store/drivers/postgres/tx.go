package postgres

import (
	"database/sql"

	"github.com/aussiebroadwan/affworld/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Accounts() store.Accounts { return &accountsRepo{db: t.tx} }
