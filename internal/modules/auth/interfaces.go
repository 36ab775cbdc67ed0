package auth

import (
	"context"
	"time"

	"sessionauth/internal/domain"
)

// UserRepositoryInterface — only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// TokenRepositoryInterface — the revocation store: session records plus the
// blacklist. The auth service is its sole writer.
type TokenRepositoryInterface interface {
	StoreTokens(ctx context.Context, subject, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) error
	AccessToken(ctx context.Context, subject string) (string, error)
	RefreshToken(ctx context.Context, subject string) (string, error)
	DeleteSession(ctx context.Context, subject string) (accessToken, refreshToken string, err error)
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}
