package cryptox_test

import (
	"strings"
	"testing"

	"github.com/acornbank/acorn/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := cryptox.HashSecret("hunter2")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, cryptox.VerifySecret("hunter2", hash))
	require.Error(t, cryptox.VerifySecret("hunter3", hash))
}

func TestHashesAreSalted(t *testing.T) {
	a, err := cryptox.HashSecret("same-secret")
	require.NoError(t, err)
	b, err := cryptox.HashSecret("same-secret")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifySecretRejectsMalformedHash(t *testing.T) {
	require.Error(t, cryptox.VerifySecret("x", "not-a-hash"))
	require.Error(t, cryptox.VerifySecret("x", "$bcrypt$v=19$m=1,t=1,p=1$AA$AA"))
}

func TestFingerprintTokenIsDeterministic(t *testing.T) {
	a := cryptox.FingerprintToken("opaque-value")
	b := cryptox.FingerprintToken("opaque-value")
	require.Equal(t, a, b)
	require.NotEqual(t, a, cryptox.FingerprintToken("other-value"))
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := cryptox.GenerateNumericCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		require.True(t, r >= '0' && r <= '9')
	}

	_, err = cryptox.GenerateNumericCode(0)
	require.Error(t, err)
}
