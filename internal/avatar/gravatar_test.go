package avatar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGravatarURL(t *testing.T) {
	t.Parallel()

	// well-known reference hash from the Gravatar docs
	require.Equal(t,
		"https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346?d=identicon",
		GravatarURL("MyEmailAddress@example.com "),
	)

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		require.Equal(t, GravatarURL("alice@example.com"), GravatarURL("  ALICE@example.com  "))
	})

	t.Run("distinct emails yield distinct urls", func(t *testing.T) {
		require.NotEqual(t, GravatarURL("alice@example.com"), GravatarURL("bob@example.com"))
	})
}
