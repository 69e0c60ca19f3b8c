package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBcryptHashAndVerify(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	h := Bcrypt{Cost: 4}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$2a$04$"))
			require.NotContains(t, hash, tt.password)

			require.NoError(t, h.Verify(tt.password, hash))
			require.ErrorIs(t, h.Verify(tt.password+"x", hash), ErrPasswordMismatch)
		})
	}
}

func TestBcryptDefaultCost(t *testing.T) {
	hash, err := Bcrypt{}.Hash("Password1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2a$10$"))
}

func TestArgon2idHashAndVerify(t *testing.T) {
	h := Argon2id{Pepper: "pepper"}

	hash, err := h.Hash("Password1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be in PHC format")
	require.Len(t, strings.Split(hash, "$"), 6)

	require.NoError(t, h.Verify("Password1", hash))
	require.ErrorIs(t, h.Verify("Password2", hash), ErrPasswordMismatch)

	// A different pepper must not verify.
	require.ErrorIs(t, Argon2id{Pepper: "other"}.Verify("Password1", hash), ErrPasswordMismatch)
}

func TestArgon2idSaltsDiffer(t *testing.T) {
	h := Argon2id{}
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestArgon2idMalformed(t *testing.T) {
	h := Argon2id{}
	for _, in := range []string{
		"",
		"$argon2id$v=19$bad",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
	} {
		require.Error(t, h.Verify("x", in), in)
	}
	require.Error(t, h.Verify("x", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA"))
	require.Error(t, h.Verify("x", "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA"))
}

func TestHashersVerifyAcrossAlgorithms(t *testing.T) {
	bc, err := NewHashers(AlgorithmBcrypt, 4, "pep")
	require.NoError(t, err)
	ar, err := NewHashers(AlgorithmArgon2id, 4, "pep")
	require.NoError(t, err)

	bHash, err := bc.Hash("Password1")
	require.NoError(t, err)
	aHash, err := ar.Hash("Password1")
	require.NoError(t, err)

	// Either configuration verifies both formats.
	for _, h := range []*Hashers{bc, ar} {
		require.NoError(t, h.Verify("Password1", bHash))
		require.NoError(t, h.Verify("Password1", aHash))
		require.ErrorIs(t, h.Verify("nope", bHash), ErrPasswordMismatch)
		require.ErrorIs(t, h.Verify("nope", aHash), ErrPasswordMismatch)
		require.ErrorIs(t, h.Verify("Password1", "plaintext"), ErrUnknownHashFormat)
	}
}

func TestNewHashersRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewHashers("md5", 0, "")
	require.Error(t, err)

	h, err := NewHashers("", 0, "")
	require.NoError(t, err)
	require.IsType(t, Bcrypt{}, h.Primary)
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	require.NoError(t, err)
	b, err := GenerateSecret(32)
	require.NoError(t, err)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}
