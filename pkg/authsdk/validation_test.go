package authsdk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validRegister() RegisterRequest {
	return RegisterRequest{
		Email:      "ana@example.com",
		Password:   "Password1",
		GivenName:  "Ana",
		FamilyName: "Lopez",
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	t.Parallel()

	phone := func(s string) *string { return &s }

	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
		field  string
	}{
		{"valid", func(*RegisterRequest) {}, ""},
		{"valid with phone", func(r *RegisterRequest) { r.Phone = phone("+61412345678") }, ""},
		{"missing email", func(r *RegisterRequest) { r.Email = "" }, "email"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"display name email", func(r *RegisterRequest) { r.Email = "Ana <ana@example.com>" }, "email"},
		{"email without domain dot", func(r *RegisterRequest) { r.Email = "ana@localhost" }, "email"},
		{"long email", func(r *RegisterRequest) { r.Email = strings.Repeat("a", 250) + "@x.io" }, "email"},
		{"short password", func(r *RegisterRequest) { r.Password = "Pa1" }, "password"},
		{"long password", func(r *RegisterRequest) { r.Password = "Aa1" + strings.Repeat("x", 126) }, "password"},
		{"no upper", func(r *RegisterRequest) { r.Password = "password1" }, "password"},
		{"no lower", func(r *RegisterRequest) { r.Password = "PASSWORD1" }, "password"},
		{"no digit", func(r *RegisterRequest) { r.Password = "Passwordx" }, "password"},
		{"short given name", func(r *RegisterRequest) { r.GivenName = "A" }, "given_name"},
		{"blank family name", func(r *RegisterRequest) { r.FamilyName = "  " }, "family_name"},
		{"long family name", func(r *RegisterRequest) { r.FamilyName = strings.Repeat("b", 101) }, "family_name"},
		{"short phone", func(r *RegisterRequest) { r.Phone = phone("12345") }, "phone"},
		{"phone letters", func(r *RegisterRequest) { r.Phone = phone("04123abc78") }, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := validRegister()
			tt.mutate(&req)
			errs := req.Validate()
			if tt.field == "" {
				require.Nil(t, errs)
				return
			}
			require.Contains(t, errs, tt.field)
			require.Len(t, errs, 1)
		})
	}
}

func TestLoginAndRefreshValidate(t *testing.T) {
	t.Parallel()

	require.Nil(t, LoginRequest{Email: "a@b.co", Password: "x"}.Validate())
	errs := LoginRequest{}.Validate()
	require.Contains(t, errs, "email")
	require.Contains(t, errs, "password")

	require.Nil(t, RefreshRequest{RefreshToken: "tok"}.Validate())
	require.Contains(t, RefreshRequest{}.Validate(), "refresh_token")
}
