package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
)

const userColumns = `id, email, password_hash, given_name, family_name, phone, status, verified, created_at, updated_at`

type usersRepo struct {
	q *queries
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scan(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return r.scan(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.GivenName,
		u.FamilyName,
		nullString(u.Phone),
		string(u.Status),
		u.Verified,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	return err
}

func (r *usersRepo) TouchLastAccess(ctx context.Context, userID string, at time.Time) error {
	res, err := r.q.exec(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) scan(row *sql.Row) (domain.User, error) {
	var (
		u      domain.User
		phone  sql.NullString
		status string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.GivenName,
		&u.FamilyName,
		&phone,
		&status,
		&u.Verified,
		scanTime{&u.CreatedAt},
		scanTime{&u.UpdatedAt},
	)
	if err != nil {
		return domain.User{}, r.q.mapErr(err)
	}
	u.Phone = stringPtr(phone)
	u.Status = domain.UserStatus(status)
	return u, nil
}

// requireRow turns an update that matched nothing into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
