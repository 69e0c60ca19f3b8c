package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDollarRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM users WHERE id = ?", "SELECT * FROM users WHERE id = $1"},
		{"VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DollarRebind(tt.in))
	}
}

func TestScanTime(t *testing.T) {
	for _, in := range []any{
		"2025-01-02 03:04:05",
		"2025-01-02 03:04:05.5+00:00",
		"2025-01-02 03:04:05.5 +0000 UTC",
		[]byte("2025-01-02T03:04:05Z"),
		time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	} {
		var got time.Time
		require.NoError(t, scanTime{&got}.Scan(in), "%v", in)
		require.Equal(t, 2025, got.Year())
		require.Equal(t, 4, got.Minute())
		require.Equal(t, time.UTC, got.Location())
	}

	var got time.Time
	require.Error(t, scanTime{&got}.Scan("yesterday"))
	require.Error(t, scanTime{&got}.Scan(3.14))
}
