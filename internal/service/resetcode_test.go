package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResetCodeStore(t *testing.T) {
	t.Parallel()

	t.Run("issue then redeem", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()

		code, err := s.Issue("alice@example.com")
		require.NoError(t, err)
		require.Len(t, code, 6)

		require.True(t, s.Redeem("alice@example.com", code))
	})

	t.Run("codes are single use", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()

		code, err := s.Issue("alice@example.com")
		require.NoError(t, err)

		require.True(t, s.Redeem("alice@example.com", code))
		require.False(t, s.Redeem("alice@example.com", code))
	})

	t.Run("wrong code keeps entry alive", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()

		code, err := s.Issue("alice@example.com")
		require.NoError(t, err)

		require.False(t, s.Redeem("alice@example.com", "000000"))
		require.True(t, s.Redeem("alice@example.com", code))
	})

	t.Run("reissue invalidates prior code", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()

		first, err := s.Issue("alice@example.com")
		require.NoError(t, err)
		second, err := s.Issue("alice@example.com")
		require.NoError(t, err)

		if first != second {
			require.False(t, s.Redeem("alice@example.com", first))
		}
		require.True(t, s.Redeem("alice@example.com", second))
	})

	t.Run("unknown email fails", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()

		require.False(t, s.Redeem("nobody@example.com", "123456"))
	})

	t.Run("expired codes fail", func(t *testing.T) {
		s := NewResetCodeStore()
		defer s.Close()
		s.ttl = time.Millisecond

		code, err := s.Issue("alice@example.com")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		require.False(t, s.Redeem("alice@example.com", code))
	})
}
