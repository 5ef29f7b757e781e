package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "code %q is not decimal", code)
		}
		// 6 digits means no leading zero.
		assert.NotEqual(t, byte('0'), code[0])
	}
}

func TestKeysNamespaceAccountKinds(t *testing.T) {
	assert.Equal(t, "reset:user:a@gmail.com", ResetKey("user", " A@Gmail.com "))
	assert.Equal(t, "reset:caregiver:a@gmail.com", ResetKey("caregiver", "a@gmail.com"))
	assert.NotEqual(t, ResetKey("user", "a@gmail.com"), VerifyKey("user", "a@gmail.com"))
}

func TestMemoryStoreConsumeIsOneTime(t *testing.T) {
	s := NewMemoryStore(TTL)
	defer s.Close()
	ctx := context.Background()

	code, err := s.Issue(ctx, ResetKey("user", "a@gmail.com"))
	require.NoError(t, err)

	require.NoError(t, s.Consume(ctx, ResetKey("user", "a@gmail.com"), code))
	assert.ErrorIs(t, s.Consume(ctx, ResetKey("user", "a@gmail.com"), code), ErrInvalidOrExpired)
}

func TestMemoryStoreRejectsWrongCode(t *testing.T) {
	s := NewMemoryStore(TTL)
	defer s.Close()
	ctx := context.Background()

	code, err := s.Issue(ctx, "k")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Consume(ctx, "k", "000000"), ErrInvalidOrExpired)
	// A failed attempt does not burn the pending code.
	assert.NoError(t, s.Consume(ctx, "k", code))
}

func TestMemoryStoreReissueOverwrites(t *testing.T) {
	s := NewMemoryStore(TTL)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.IssueWith(ctx, "k", "111111"))
	require.NoError(t, s.IssueWith(ctx, "k", "222222"))

	assert.ErrorIs(t, s.Consume(ctx, "k", "111111"), ErrInvalidOrExpired)
	assert.NoError(t, s.Consume(ctx, "k", "222222"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.IssueWith(ctx, "k", "123456"))
	time.Sleep(25 * time.Millisecond)

	assert.ErrorIs(t, s.Consume(ctx, "k", "123456"), ErrInvalidOrExpired)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore(TTL)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.IssueWith(ctx, VerifyKey("user", "a@gmail.com"), "111111"))
	require.NoError(t, s.IssueWith(ctx, VerifyKey("caregiver", "a@gmail.com"), "222222"))

	assert.NoError(t, s.Consume(ctx, VerifyKey("user", "a@gmail.com"), "111111"))
	assert.NoError(t, s.Consume(ctx, VerifyKey("caregiver", "a@gmail.com"), "222222"))
}

func TestMemoryStoreCloseIsIdempotentAndKeepsStoreUsable(t *testing.T) {
	s := NewMemoryStore(TTL)
	ctx := context.Background()

	s.Close()
	s.Close()

	require.NoError(t, s.IssueWith(ctx, "k", "123456"))
	assert.NoError(t, s.Consume(ctx, "k", "123456"))
}

func TestNewStoreFallsBackWithoutRedis(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
