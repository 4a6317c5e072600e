package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateTokenLength(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

func TestGenerateReferralCode(t *testing.T) {
	code, err := GenerateReferralCode(8)
	require.NoError(t, err)
	require.Len(t, code, 8)

	for _, r := range code {
		require.True(t, strings.ContainsRune(referralAlphabet, r), "unexpected rune %q", r)
	}
}

func TestGenerateReferralCodeRejectsNonPositiveLength(t *testing.T) {
	_, err := GenerateReferralCode(0)
	require.Error(t, err)

	_, err = GenerateReferralCode(-3)
	require.Error(t, err)
}
