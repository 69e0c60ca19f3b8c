// Package postgres is the PostgreSQL driver for the auth store, using pgx
// through database/sql.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/sqlstore"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store is the postgres backed store.Store.
type Store struct {
	*sqlstore.Store
}

// Dialect is the postgres flavour of the shared SQL layer.
var Dialect = sqlstore.Dialect{
	Name:              "pgx",
	Rebind:            sqlstore.DollarRebind,
	IsUniqueViolation: isUniqueViolation,
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig is used when NewStore is given a zero PoolConfig.
var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    10,
	MaxIdleConns:    10,
	ConnMaxLifetime: 30 * time.Minute,
}

// NewStore opens a pool for a postgres:// DSN.
func NewStore(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open(Dialect.Name, dsn)
	if err != nil {
		return nil, err
	}

	if pool == (PoolConfig{}) {
		pool = DefaultPoolConfig
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an already opened pool.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{Store: sqlstore.New(db, Dialect)}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
