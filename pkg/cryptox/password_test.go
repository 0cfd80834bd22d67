package cryptox_test

import (
	"testing"

	"github.com/cardfile/cardfile/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	h := cryptox.NewHasher("")

	hash, err := h.Hash("pw123456")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.True(t, h.Verify("pw123456", hash))
	require.False(t, h.Verify("wrong-password", hash))
}

func TestHashIsSalted(t *testing.T) {
	t.Parallel()

	h := cryptox.NewHasher("")

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second, "salt must differ between calls")
	require.True(t, h.Verify("same-password", first))
	require.True(t, h.Verify("same-password", second))
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	t.Parallel()

	h := cryptox.NewHasher("")

	cases := []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$only-four-parts",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=zzz,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	}
	for _, bad := range cases {
		require.False(t, h.Verify("pw123456", bad), "hash %q should not verify", bad)
	}
}

func TestPepperChangesDigest(t *testing.T) {
	t.Parallel()

	plain := cryptox.NewHasher("")
	peppered := cryptox.NewHasher("table-salt")

	hash, err := peppered.Hash("pw123456")
	require.NoError(t, err)

	require.True(t, peppered.Verify("pw123456", hash))
	require.False(t, plain.Verify("pw123456", hash))
}

func TestGenerateNumericCode(t *testing.T) {
	t.Parallel()

	code, err := cryptox.GenerateNumericCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		require.True(t, c >= '0' && c <= '9')
	}

	_, err = cryptox.GenerateNumericCode(0)
	require.Error(t, err)
}
