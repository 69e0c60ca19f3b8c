package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
)

const defaultAuditLimit = 100

type auditRepo struct {
	q *queries
}

func (r *auditRepo) AppendAuditRecord(ctx context.Context, rec domain.AuditRecord) error {
	details := rec.Details
	if details == nil {
		details = map[string]string{}
	}
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	_, err = r.q.exec(ctx, `
		INSERT INTO auth_events (id, user_id, event, outcome, ip_address, user_agent, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullString(rec.UserID),
		string(rec.Event),
		string(rec.Outcome),
		rec.IPAddress,
		nullString(rec.UserAgent),
		string(blob),
		rec.CreatedAt.UTC(),
	)
	return err
}

func (r *auditRepo) ListAuditRecords(ctx context.Context, f store.AuditFilter) ([]domain.AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, string(f.Event))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `SELECT id, user_id, event, outcome, ip_address, user_agent, details, created_at FROM auth_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			userID    sql.NullString
			userAgent sql.NullString
			event     string
			outcome   string
			blob      []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&userID,
			&event,
			&outcome,
			&rec.IPAddress,
			&userAgent,
			&blob,
			scanTime{&rec.CreatedAt},
		); err != nil {
			return nil, err
		}
		rec.UserID = stringPtr(userID)
		rec.UserAgent = stringPtr(userAgent)
		rec.Event = domain.AuditEvent(event)
		rec.Outcome = domain.AuditOutcome(outcome)
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &rec.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
