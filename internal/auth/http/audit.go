package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/authsdk"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditHandler struct {
	Audit *service.AuditService
}

// ServeHTTP returns audit records, newest first.
//
//	@Summary		Read the audit log
//	@Description	Lists authentication events. Requires the admin role.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			user_id	query		string	false	"Only records for this user"
//	@Param			event	query		string	false	"login or failed_login"
//	@Param			limit	query		int		false	"Maximum records (default 100, max 1000)"
//	@Success		200		{object}	authsdk.AuditResponse
//	@Failure		400		{object}	authsdk.ValidationErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"insufficient_scope"
//	@Failure		503		{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/audit [get].
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AuditFilter{
		UserID: q.Get("user_id"),
		Event:  domain.AuditEvent(q.Get("event")),
		Limit:  defaultAuditLimit,
	}

	errs := map[string]string{}
	switch filter.Event {
	case "", domain.AuditEventLogin, domain.AuditEventFailedLogin:
	default:
		errs["event"] = "must be login or failed_login"
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			errs["limit"] = "must be between 1 and 1000"
		}
		filter.Limit = n
	}
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	records, err := h.Audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.AuditResponse{Records: make([]authsdk.AuditRecord, 0, len(records))}
	for _, rec := range records {
		out.Records = append(out.Records, authsdk.AuditRecord{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Event:     string(rec.Event),
			Outcome:   string(rec.Outcome),
			IPAddress: rec.IPAddress,
			UserAgent: rec.UserAgent,
			Details:   rec.Details,
			CreatedAt: rec.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
