package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundtrip(t *testing.T) {
	hash, err := HashPassword("Sulfuric-Acid-98")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("Sulfuric-Acid-98", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("Correct-Horse-1")
	require.NoError(t, err)

	ok, err := VerifyPassword("Wrong-Horse-1", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h1, err := HashPassword("Same-Password-1")
	require.NoError(t, err)
	h2, err := HashPassword("Same-Password-1")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ")
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "$argon2id$v=19$garbage")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("anything", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestCheckPasswordStrength(t *testing.T) {
	assert.NoError(t, CheckPasswordStrength("Abcdef12"))
	assert.ErrorIs(t, CheckPasswordStrength("short1A"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordStrength("alllowercase1"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordStrength("ALLUPPERCASE1"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordStrength("NoNumbersHere"), ErrWeakPassword)
}
