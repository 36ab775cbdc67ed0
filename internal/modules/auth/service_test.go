package auth

import (
	"context"
	"testing"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/kv"
	jwtsvc "sessionauth/internal/pkg/jwt"
	"sessionauth/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Mock user repository implementing the interface
type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// testEnv wires the service with a real codec and a real token repository on
// the in-memory store, so lifecycle tests exercise actual tokens.
type testEnv struct {
	service *Service
	users   *mockUserRepo
	tokens  *repository.TokenRepository
	jwt     *jwtsvc.Service
}

func newTestEnv(rotate bool) *testEnv {
	users := new(mockUserRepo)
	tokens := repository.NewTokenRepository(kv.NewMemoryStore())
	codec := jwtsvc.New("test-secret-123", "sessionauth-test", 15*time.Minute, 7*24*time.Hour)
	return &testEnv{
		service: NewService(users, tokens, codec, rotate),
		users:   users,
		tokens:  tokens,
		jwt:     codec,
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestService_Register_Success(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("ExistsByUsername", mock.Anything, "alice").Return(false, nil)
	env.users.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := env.service.Register(ctx, RegisterRequest{
		Username: "alice",
		Password: "securepass123",
		Role:     "admin",
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, domain.RoleAdmin, result.Role)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	// The store must hold exactly the returned tokens.
	storedAccess, _ := env.tokens.AccessToken(ctx, "alice")
	storedRefresh, _ := env.tokens.RefreshToken(ctx, "alice")
	assert.Equal(t, result.AccessToken, storedAccess)
	assert.Equal(t, result.RefreshToken, storedRefresh)

	env.users.AssertExpectations(t)
}

func TestService_Register_UsernameTaken(t *testing.T) {
	env := newTestEnv(false)

	env.users.On("ExistsByUsername", mock.Anything, "alice").Return(true, nil)

	_, err := env.service.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Password: "securepass123",
	})

	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestService_Login_Success(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		ID:           1,
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
		Role:         domain.RoleUser,
	}, nil)

	result, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	storedAccess, _ := env.tokens.AccessToken(ctx, "alice")
	storedRefresh, _ := env.tokens.RefreshToken(ctx, "alice")
	assert.Equal(t, result.AccessToken, storedAccess)
	assert.Equal(t, result.RefreshToken, storedRefresh)
}

func TestService_Login_WrongPassword(t *testing.T) {
	env := newTestEnv(false)

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
	}, nil)

	_, err := env.service.Login(context.Background(), LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Login_UnknownUser(t *testing.T) {
	env := newTestEnv(false)

	env.users.On("GetByUsername", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)

	_, err := env.service.Login(context.Background(), LoginRequest{Username: "ghost", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Login_DisplacesPriorSession(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
		Role:         domain.RoleUser,
	}, nil)

	first, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	second, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	// Exactly one session record, holding the second pair.
	storedAccess, _ := env.tokens.AccessToken(ctx, "alice")
	storedRefresh, _ := env.tokens.RefreshToken(ctx, "alice")
	assert.Equal(t, second.AccessToken, storedAccess)
	assert.Equal(t, second.RefreshToken, storedRefresh)

	// The displaced pair is blacklisted, not just overwritten.
	revoked, _ := env.tokens.IsBlacklisted(ctx, first.AccessToken)
	assert.True(t, revoked)
	revoked, _ = env.tokens.IsBlacklisted(ctx, first.RefreshToken)
	assert.True(t, revoked)
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
	}, nil)

	result, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, "alice"))

	storedAccess, _ := env.tokens.AccessToken(ctx, "alice")
	assert.Empty(t, storedAccess)

	revoked, _ := env.tokens.IsBlacklisted(ctx, result.AccessToken)
	assert.True(t, revoked)
	revoked, _ = env.tokens.IsBlacklisted(ctx, result.RefreshToken)
	assert.True(t, revoked)

	// Logging out an absent session is not an error.
	assert.NoError(t, env.service.Logout(ctx, "alice"))
}

func TestService_Refresh_Success(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
		Role:         domain.RoleUser,
	}, nil)

	loggedIn, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	refreshed, err := env.service.Refresh(ctx, loggedIn.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, loggedIn.AccessToken, refreshed.AccessToken)
	assert.Equal(t, loggedIn.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, "alice", refreshed.Username)

	// Old access token is revoked, new one is the current record.
	revoked, _ := env.tokens.IsBlacklisted(ctx, loggedIn.AccessToken)
	assert.True(t, revoked)
	storedAccess, _ := env.tokens.AccessToken(ctx, "alice")
	assert.Equal(t, refreshed.AccessToken, storedAccess)
}

func TestService_Refresh_Garbage(t *testing.T) {
	env := newTestEnv(false)

	_, err := env.service.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Refresh_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
	}, nil)

	loggedIn, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, loggedIn.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Refresh_AfterLogoutIsRevoked(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
	}, nil)

	loggedIn, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, env.service.Logout(ctx, "alice"))

	_, err = env.service.Refresh(ctx, loggedIn.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Rejection is idempotent: the same presentation fails the same way.
	_, err = env.service.Refresh(ctx, loggedIn.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestService_Refresh_MismatchWhenNotCurrent(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	// Structurally valid refresh token that was never stored as current.
	stray, err := env.jwt.GenerateRefreshToken("alice")
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, stray)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestService_Refresh_UserDeleted(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	refreshToken, err := env.jwt.GenerateRefreshToken("alice")
	require.NoError(t, err)
	require.NoError(t, env.tokens.StoreTokens(ctx, "alice", "stale-access", refreshToken, time.Minute, time.Hour))

	env.users.On("GetByUsername", mock.Anything, "alice").Return(nil, gorm.ErrRecordNotFound)

	_, err = env.service.Refresh(ctx, refreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestService_Refresh_RotationEnabled(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()

	env.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
		Username:     "alice",
		PasswordHash: hashPassword(t, "pw"),
		Role:         domain.RoleUser,
	}, nil)

	loggedIn, err := env.service.Login(ctx, LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	refreshed, err := env.service.Refresh(ctx, loggedIn.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, loggedIn.RefreshToken, refreshed.RefreshToken)

	revoked, _ := env.tokens.IsBlacklisted(ctx, loggedIn.RefreshToken)
	assert.True(t, revoked)

	// The superseded refresh token can never be replayed.
	_, err = env.service.Refresh(ctx, loggedIn.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
