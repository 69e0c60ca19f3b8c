package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
)

const sessionColumns = `id, user_id, access_token_hash, refresh_token_hash, ip_address, user_agent, device_type, created_at, expires_at, active`

type sessionsRepo struct {
	q *queries
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.AccessTokenHash,
		s.RefreshTokenHash,
		s.IPAddress,
		s.UserAgent,
		s.DeviceType,
		s.CreatedAt.UTC(),
		s.ExpiresAt.UTC(),
		s.Active,
	)
	return err
}

func (r *sessionsRepo) GetActiveSessionByAccessHash(ctx context.Context, hash string) (domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE access_token_hash = ? AND active = TRUE
		ORDER BY created_at DESC LIMIT 1`, hash)
}

func (r *sessionsRepo) GetActiveSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE refresh_token_hash = ? AND active = TRUE
		ORDER BY created_at DESC LIMIT 1`, hash)
}

func (r *sessionsRepo) RotateAccessToken(ctx context.Context, sessionID, accessHash string, expiresAt time.Time) error {
	res, err := r.q.exec(ctx, `
		UPDATE sessions SET access_token_hash = ?, expires_at = ?
		WHERE id = ? AND active = TRUE`,
		accessHash, expiresAt.UTC(), sessionID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) DeactivateSessionByAccessHash(ctx context.Context, hash string) error {
	_, err := r.q.exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE access_token_hash = ? AND active = TRUE`, hash)
	return err
}

func (r *sessionsRepo) DeactivateUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE user_id = ? AND active = TRUE`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE active = TRUE AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) ListActiveUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.q.query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND active = TRUE
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) getOne(ctx context.Context, query string, args ...any) (domain.Session, error) {
	s, err := scanSession(r.q.queryRow(ctx, query, args...))
	if err != nil {
		return domain.Session{}, r.q.mapErr(err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.AccessTokenHash,
		&s.RefreshTokenHash,
		&s.IPAddress,
		&s.UserAgent,
		&s.DeviceType,
		scanTime{&s.CreatedAt},
		scanTime{&s.ExpiresAt},
		&s.Active,
	)
	return s, err
}
