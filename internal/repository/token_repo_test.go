package repository

import (
	"context"
	"testing"
	"time"

	"sessionauth/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenRepo() *TokenRepository {
	return NewTokenRepository(kv.NewMemoryStore())
}

func TestTokenRepository_StoreAndGet(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	err := repo.StoreTokens(ctx, "alice", "access-1", "refresh-1", time.Minute, time.Hour)
	require.NoError(t, err)

	access, err := repo.AccessToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	refresh, err := repo.RefreshToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	// Unknown subject reads back empty, not an error.
	access, err = repo.AccessToken(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestTokenRepository_StoreOverwritesSession(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	require.NoError(t, repo.StoreTokens(ctx, "alice", "access-1", "refresh-1", time.Minute, time.Hour))
	require.NoError(t, repo.StoreTokens(ctx, "alice", "access-2", "refresh-2", time.Minute, time.Hour))

	access, _ := repo.AccessToken(ctx, "alice")
	refresh, _ := repo.RefreshToken(ctx, "alice")
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestTokenRepository_DeleteSessionReturnsTokens(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	require.NoError(t, repo.StoreTokens(ctx, "alice", "access-1", "refresh-1", time.Minute, time.Hour))

	access, refresh, err := repo.DeleteSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)

	gone, _ := repo.AccessToken(ctx, "alice")
	assert.Empty(t, gone)

	// Deleting an absent session returns empties.
	access, refresh, err = repo.DeleteSession(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestTokenRepository_Blacklist(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	require.NoError(t, repo.Blacklist(ctx, "some-token", time.Minute))

	revoked, err := repo.IsBlacklisted(ctx, "some-token")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.IsBlacklisted(ctx, "other-token")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenRepository_BlacklistSkipsExpired(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	// A token past its own expiry needs no blacklist entry.
	require.NoError(t, repo.Blacklist(ctx, "dead-token", -time.Second))
	require.NoError(t, repo.Blacklist(ctx, "", time.Minute))

	revoked, err := repo.IsBlacklisted(ctx, "dead-token")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenRepository_BlacklistEntryExpires(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	require.NoError(t, repo.Blacklist(ctx, "short-lived", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	revoked, err := repo.IsBlacklisted(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenRepository_SessionTTLExpires(t *testing.T) {
	repo := newTokenRepo()
	ctx := context.Background()

	require.NoError(t, repo.StoreTokens(ctx, "alice", "access-1", "refresh-1", 20*time.Millisecond, time.Hour))
	time.Sleep(40 * time.Millisecond)

	access, err := repo.AccessToken(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, access)

	// Refresh half of the record has its own, longer TTL.
	refresh, err := repo.RefreshToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)
}
