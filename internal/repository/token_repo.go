package repository

import (
	"context"
	"time"

	"sessionauth/internal/kv"
)

// Key layout in the shared store. One session record per subject (two keys,
// one per token) plus one self-expiring entry per revoked token.
const (
	accessTokenKeyPrefix  = "user:access:"
	refreshTokenKeyPrefix = "user:refresh:"
	blacklistKeyPrefix    = "blacklist:"

	blacklistMarker = "revoked"

	// Every store round-trip gets a bounded deadline; a timeout surfaces as a
	// store-unavailable error to the caller.
	opTimeout = 2 * time.Second
)

// TokenRepository is the revocation store: it tracks the single active
// token pair per subject and the blacklist of revoked tokens. All TTLs are
// aligned with token lifetimes, so the store prunes itself and never needs
// a background sweep.
type TokenRepository struct {
	store kv.Store
}

func NewTokenRepository(store kv.Store) *TokenRepository {
	return &TokenRepository{store: store}
}

// StoreTokens overwrites the subject's session record. Each token is written
// with its own TTL so a stale entry dies on its own even if never cleaned up.
func (r *TokenRepository) StoreTokens(ctx context.Context, subject, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.store.Set(ctx, accessTokenKeyPrefix+subject, accessToken, accessTTL); err != nil {
		return err
	}
	return r.store.Set(ctx, refreshTokenKeyPrefix+subject, refreshToken, refreshTTL)
}

// AccessToken returns the subject's current access token, or "" when absent.
func (r *TokenRepository) AccessToken(ctx context.Context, subject string) (string, error) {
	return r.getToken(ctx, accessTokenKeyPrefix+subject)
}

// RefreshToken returns the subject's current refresh token, or "" when absent.
func (r *TokenRepository) RefreshToken(ctx context.Context, subject string) (string, error) {
	return r.getToken(ctx, refreshTokenKeyPrefix+subject)
}

func (r *TokenRepository) getToken(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	value, _, err := r.store.Get(ctx, key)
	return value, err
}

// DeleteSession removes the subject's session record and returns the tokens
// that were present so the caller can blacklist them. Read-then-delete: the
// window between the two is accepted since deletion only narrows what a
// stolen token can do.
func (r *TokenRepository) DeleteSession(ctx context.Context, subject string) (accessToken, refreshToken string, err error) {
	accessToken, err = r.AccessToken(ctx, subject)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = r.RefreshToken(ctx, subject)
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err = r.store.Delete(ctx, accessTokenKeyPrefix+subject); err != nil {
		return "", "", err
	}
	if err = r.store.Delete(ctx, refreshTokenKeyPrefix+subject); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Blacklist marks a token revoked for ttl, which must be the token's own
// remaining lifetime: longer wastes store space, shorter is a safety gap.
// An already-expired token (ttl <= 0) needs no entry at all.
func (r *TokenRepository) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.store.Set(ctx, blacklistKeyPrefix+token, blacklistMarker, ttl)
}

func (r *TokenRepository) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.store.Exists(ctx, blacklistKeyPrefix+token)
}
