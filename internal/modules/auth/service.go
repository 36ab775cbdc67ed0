package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type jwtService interface {
	GeneratePair(subject, role string) (*jwt.TokenPair, error)
	GenerateAccessToken(subject, role string) (string, error)
	GenerateRefreshToken(subject string) (string, error)
	ParseAndVerify(token string) (*jwt.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Service owns the credential lifecycle: it is the only writer of session
// records and blacklist entries. At most one live token pair exists per
// subject; every path that displaces a pair also blacklists it.
type Service struct {
	users  UserRepositoryInterface
	tokens TokenRepositoryInterface
	jwt    jwtService

	// rotateRefreshTokens enables the hardened variant where refresh mints a
	// new refresh token instead of reusing the presented one.
	rotateRefreshTokens bool
}

// AuthResult is what every successful register/login/refresh returns.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Role         domain.UserRole
}

func NewService(users UserRepositoryInterface, tokens TokenRepositoryInterface, jwt jwtService, rotateRefreshTokens bool) *Service {
	return &Service{
		users:               users,
		tokens:              tokens,
		jwt:                 jwt,
		rotateRefreshTokens: rotateRefreshTokens,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	username := strings.TrimSpace(req.Username)

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := domain.UserRole(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleUser
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.establishSession(ctx, user.Username, user.Role)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.establishSession(ctx, user.Username, user.Role)
}

// establishSession mints a fresh pair and makes it the subject's only live
// one. Any displaced pair is blacklisted for its remaining lifetime: the
// record overwrite alone already breaks lookups, but without the blacklist
// the old access token would still structurally verify until expiry.
func (s *Service) establishSession(ctx context.Context, subject string, role domain.UserRole) (*AuthResult, error) {
	pair, err := s.jwt.GeneratePair(subject, string(role))
	if err != nil {
		return nil, err
	}

	oldAccess, oldRefresh, err := s.tokens.DeleteSession(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := s.blacklistForRemaining(ctx, oldAccess); err != nil {
		return nil, err
	}
	if err := s.blacklistForRemaining(ctx, oldRefresh); err != nil {
		return nil, err
	}

	if err := s.tokens.StoreTokens(ctx, subject, pair.AccessToken, pair.RefreshToken, pair.AccessTTL, pair.RefreshTTL); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Username:     subject,
		Role:         role,
	}, nil
}

// Logout tears down the subject's session and blacklists both tokens for
// whatever validity they have left.
func (s *Service) Logout(ctx context.Context, subject string) error {
	accessToken, refreshToken, err := s.tokens.DeleteSession(ctx, subject)
	if err != nil {
		return err
	}
	if err := s.blacklistForRemaining(ctx, accessToken); err != nil {
		return err
	}
	return s.blacklistForRemaining(ctx, refreshToken)
}

// Refresh trades a live refresh token for a new access token. Checks run in
// a fixed order: structural verification, blacklist, then comparison against
// the subject's stored refresh token — so a token that was valid but has
// been superseded by a later login is rejected as a mismatch.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.jwt.ParseAndVerify(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Kind != jwt.KindRefresh {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.IsBlacklisted(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	subject := claims.Subject
	stored, err := s.tokens.RefreshToken(ctx, subject)
	if err != nil {
		return nil, err
	}
	if stored == "" || stored != refreshToken {
		return nil, ErrTokenMismatch
	}

	user, err := s.users.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Account deleted since login; the stored pair can never become
			// current again, which is what mismatch means.
			return nil, ErrTokenMismatch
		}
		return nil, err
	}

	newAccessToken, err := s.jwt.GenerateAccessToken(subject, string(user.Role))
	if err != nil {
		return nil, err
	}

	oldAccessToken, err := s.tokens.AccessToken(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := s.blacklistForRemaining(ctx, oldAccessToken); err != nil {
		return nil, err
	}

	// Baseline policy reuses the refresh token; its record TTL shrinks to the
	// token's remaining lifetime so the key never outlives the token.
	newRefreshToken := refreshToken
	refreshTTL := claims.Remaining(time.Now())
	if s.rotateRefreshTokens {
		newRefreshToken, err = s.jwt.GenerateRefreshToken(subject)
		if err != nil {
			return nil, err
		}
		if err := s.blacklistForRemaining(ctx, refreshToken); err != nil {
			return nil, err
		}
		refreshTTL = s.jwt.RefreshTTL()
	}

	if err := s.tokens.StoreTokens(ctx, subject, newAccessToken, newRefreshToken, s.jwt.AccessTTL(), refreshTTL); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
		Username:     subject,
		Role:         user.Role,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, subject)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// blacklistForRemaining blacklists a displaced token for the validity it has
// left. A token that no longer verifies is already harmless and is skipped.
func (s *Service) blacklistForRemaining(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.jwt.ParseAndVerify(token)
	if err != nil {
		return nil
	}
	return s.tokens.Blacklist(ctx, token, claims.Remaining(time.Now()))
}
