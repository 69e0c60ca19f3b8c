package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/idx"
)

type AuditService struct {
	Store        store.Store
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Record appends r, filling in the id and timestamp when unset.
func (s *AuditService) Record(ctx context.Context, r domain.AuditRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = clock(s.Now).now()
	}
	if r.ID == "" {
		r.ID = idx.NewAt(r.CreatedAt).String()
	}
	if r.Details == nil {
		r.Details = map[string]string{}
	}

	err := exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Audit().AppendAuditRecord(ctx, r)
	})
	if err != nil {
		return unavailable("audit record", err)
	}
	return nil
}

// List returns records newest first.
func (s *AuditService) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditRecord, error) {
	recs, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.AuditRecord, error) {
		return s.Store.Audit().ListAuditRecords(ctx, f)
	})
	if err != nil {
		return nil, unavailable("audit list", err)
	}
	return recs, nil
}
