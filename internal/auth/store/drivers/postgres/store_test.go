package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return postgres.NewStoreFromDB(db), mock
}

func TestCreateUserUsesDollarPlaceholders(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)")).
		WithArgs("u1", "alice@example.com", "hash", "Alice", "Smith", nil, "active", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := st.Users().CreateUser(context.Background(), domain.User{
		ID:           "u1",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		GivenName:    "Alice",
		FamilyName:   "Smith",
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
}

func TestUniqueViolationMapsToAlreadyExists(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})

	err := st.Users().CreateUser(context.Background(), domain.User{ID: "u1", Email: "dup@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestOtherErrorsPassThrough(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	err := st.Users().CreateUser(context.Background(), domain.User{ID: "u1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrAlreadyExists)
}

func TestMissingRowMapsToNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.Users().GetUserByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeactivateExpiredSessions(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET active = FALSE WHERE active = TRUE AND expires_at < $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.Sessions().DeactivateExpiredSessions(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestListAuditRecordsBuildsFilter(t *testing.T) {
	st, mock := newMockStore(t)

	cols := []string{"id", "user_id", "event", "outcome", "ip_address", "user_agent", "details", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND event = $2 ORDER BY created_at DESC, id DESC LIMIT $3")).
		WithArgs("u1", "login", 5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "u1", "login", "success", "10.0.0.1", nil, []byte(`{"device":"web"}`), time.Now()))

	recs, err := st.Audit().ListAuditRecords(context.Background(), store.AuditFilter{
		UserID: "u1",
		Event:  domain.AuditEventLogin,
		Limit:  5,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "web", recs[0].Details["device"])
	require.Nil(t, recs[0].UserAgent)
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Roles().AssignRole(ctx, "u1", "r1", time.Now())
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = st.WithTx(ctx, func(tx store.Tx) error {
		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}
