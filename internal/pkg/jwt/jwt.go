package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind tags a token as access or refresh via the "typ" claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Verification failures, one per way a presented token can be bad.
var (
	ErrMalformed        = errors.New("token is malformed")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrUnsupported      = errors.New("token is unsupported")
)

type Claims struct {
	Kind TokenKind `json:"typ"`
	Role string    `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// Remaining reports how long the token is still structurally valid.
// Zero or negative means it has already expired.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// TokenPair is an access+refresh pair minted together for one subject.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// Service signs and verifies tokens with a single shared HS256 key.
// It holds no mutable state and performs no store access.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(secret, issuer string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) GenerateAccessToken(subject, role string) (string, error) {
	return s.generate(subject, KindAccess, role, s.accessTTL)
}

func (s *Service) GenerateRefreshToken(subject string) (string, error) {
	return s.generate(subject, KindRefresh, "", s.refreshTTL)
}

// GeneratePair mints both tokens for a subject at once.
func (s *Service) GeneratePair(subject, role string) (*TokenPair, error) {
	accessToken, err := s.GenerateAccessToken(subject, role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.GenerateRefreshToken(subject)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
	}, nil
}

func (s *Service) generate(subject string, kind TokenKind, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			// JTI keeps two tokens minted in the same second distinct strings.
			ID: uuid.NewString(),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseAndVerify decodes a token and checks signature, expiry and kind.
// Claims are returned only when every check passes.
func (s *Service) ParseAndVerify(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, classifyError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, ErrUnsupported
	}

	return claims, nil
}

func classifyError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return ErrUnsupported
	default:
		return ErrMalformed
	}
}
