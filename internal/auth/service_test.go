package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abduss/blogapi/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "blog-api-test",
	}
}

func newTestService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	service, err := NewService(store, testAuthConfig(), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return service, store
}

func registerUser(t *testing.T, service *Service) AuthResult {
	t.Helper()
	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "a@x.com",
		Password: "Secret123",
		Name:     "A",
	})
	require.NoError(t, err)
	return result
}

func TestNewServiceRequiresSecrets(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AccessTokenSecret = ""

	_, err := NewService(newMemoryStore(), cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	cfg = testAuthConfig()
	cfg.RefreshTokenSecret = ""
	_, err = NewService(newMemoryStore(), cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	cfg = testAuthConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret
	_, err = NewService(newMemoryStore(), cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	// Startup validation reports the same sentinel.
	require.ErrorIs(t, config.Config{Auth: cfg}.Validate(), ErrConfiguration)
	cfg.AccessTokenSecret = ""
	require.ErrorIs(t, config.Config{Auth: cfg}.Validate(), ErrConfiguration)
}

func TestNewServiceBcryptCostFloor(t *testing.T) {
	for _, configured := range []int{0, bcrypt.MinCost, 11, 40} {
		cfg := testAuthConfig()
		cfg.BcryptCost = configured
		service, err := NewService(newMemoryStore(), cfg)
		require.NoError(t, err)
		require.GreaterOrEqual(t, service.bcryptCost, minBcryptCost, "configured %d", configured)
		require.LessOrEqual(t, service.bcryptCost, bcrypt.MaxCost, "configured %d", configured)
	}

	cfg := testAuthConfig()
	cfg.BcryptCost = 14
	service, err := NewService(newMemoryStore(), cfg)
	require.NoError(t, err)
	require.Equal(t, 14, service.bcryptCost)

	service, err = NewService(newMemoryStore(), cfg, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, service.bcryptCost)
}

func TestRegisterSuccess(t *testing.T) {
	service, store := newTestService(t)

	result := registerUser(t, service)

	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.Equal(t, RoleUser, result.User.Role)
	require.Equal(t, "a@x.com", result.User.Email)

	stored := store.byID[result.User.ID]
	require.NotEqual(t, "Secret123", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret123")))
	require.NotNil(t, stored.RefreshToken)
	require.Equal(t, result.Tokens.RefreshToken, *stored.RefreshToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _ := newTestService(t)
	registerUser(t, service)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "A@X.com ",
		Password: "AnotherPass2!",
		Name:     "Other",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegisterCreateRaceMapsToConflict(t *testing.T) {
	service, store := newTestService(t)
	store.createErr = ErrEmailAlreadyExists

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "race@x.com",
		Password: "Secret123",
		Name:     "Race",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	service, _ := newTestService(t)

	long := make([]byte, maxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "long@x.com",
		Password: string(long),
		Name:     "Long",
	})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestLoginIssuesTokensForStoredIdentity(t *testing.T) {
	service, _ := newTestService(t)
	registered := registerUser(t, service)

	result, err := service.Login(context.Background(), LoginInput{
		Email:    "a@x.com",
		Password: "Secret123",
	})
	require.NoError(t, err)

	claims, err := service.tokens.ParseAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID.String(), claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, RoleUser, claims.Role)
	require.Equal(t, "A", claims.Name)
}

func TestLoginInvalidPassword(t *testing.T) {
	service, _ := newTestService(t)
	registerUser(t, service)

	_, err := service.Login(context.Background(), LoginInput{
		Email:    "a@x.com",
		Password: "WrongPass",
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginUnknownEmail(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Login(context.Background(), LoginInput{
		Email:    "nobody@x.com",
		Password: "Secret123",
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginDiscardsPriorSession(t *testing.T) {
	service, _ := newTestService(t)
	registered := registerUser(t, service)

	_, err := service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), registered.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRotatesToken(t *testing.T) {
	service, _ := newTestService(t)
	registerUser(t, service)

	login, err := service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	refreshed, err := service.Refresh(context.Background(), login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

	_, err = service.Refresh(context.Background(), login.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = service.Refresh(context.Background(), refreshed.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestConcurrentRefreshLastWriteWins(t *testing.T) {
	service, store := newTestService(t)
	registered := registerUser(t, service)
	ctx := context.Background()

	// Both refreshes read the original session before either rotates it.
	var arrived sync.WaitGroup
	arrived.Add(2)
	store.mu.Lock()
	store.afterGetRefresh = func() {
		arrived.Done()
		arrived.Wait()
	}
	store.mu.Unlock()

	var (
		wg      sync.WaitGroup
		results [2]AuthResult
		errs    [2]error
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Refresh(ctx, registered.Tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	store.mu.Lock()
	store.afterGetRefresh = nil
	store.mu.Unlock()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotEqual(t, results[0].Tokens.RefreshToken, results[1].Tokens.RefreshToken)

	stored, err := store.GetRefreshToken(ctx, registered.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	winner, loser := results[0], results[1]
	if *stored == results[1].Tokens.RefreshToken {
		winner, loser = results[1], results[0]
	}
	require.Equal(t, winner.Tokens.RefreshToken, *stored)

	valid, err := service.sessions.ValidateSession(ctx, registered.User.ID, loser.Tokens.RefreshToken)
	require.NoError(t, err)
	require.False(t, valid)

	_, err = service.Refresh(ctx, loser.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = service.Refresh(ctx, winner.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshSignsFullIdentity(t *testing.T) {
	service, _ := newTestService(t)
	registered := registerUser(t, service)

	refreshed, err := service.Refresh(context.Background(), registered.Tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := service.tokens.ParseAccessToken(refreshed.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID.String(), claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "A", claims.Name)
	require.Equal(t, RoleUser, claims.Role)
}

func TestRefreshAfterLogoutFails(t *testing.T) {
	service, store := newTestService(t)
	registered := registerUser(t, service)

	require.NoError(t, service.Logout(context.Background(), registered.User.ID))
	require.Nil(t, store.byID[registered.User.ID].RefreshToken)

	_, err := service.Refresh(context.Background(), registered.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRequiresToken(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Refresh(context.Background(), "  ")
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestRefreshRejectsInvalidTokens(t *testing.T) {
	service, store := newTestService(t)
	registered := registerUser(t, service)

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := service.Refresh(context.Background(), registered.Tokens.AccessToken)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := service.Refresh(context.Background(), "not-a-jwt")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		service.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		pair, err := service.tokens.IssuePair(registered.User)
		service.tokens.now = time.Now
		require.NoError(t, err)
		require.NoError(t, service.sessions.RecordSession(context.Background(), registered.User.ID, pair.RefreshToken))

		_, err = service.Refresh(context.Background(), pair.RefreshToken)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("user deleted", func(t *testing.T) {
		current := store.byID[registered.User.ID].RefreshToken
		require.NotNil(t, current)
		store.delete(registered.User.ID)

		_, err := service.Refresh(context.Background(), *current)
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestAuthenticate(t *testing.T) {
	service, store := newTestService(t)
	registered := registerUser(t, service)
	ctx := context.Background()

	t.Run("valid bearer token", func(t *testing.T) {
		identity, err := service.Authenticate(ctx, "Bearer "+registered.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, registered.User.ID, identity.ID)
		require.Equal(t, "a@x.com", identity.Email)
	})

	t.Run("absent header", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "Basic "+registered.Tokens.AccessToken)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("bearer without token", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "Bearer ")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("tampered token", func(t *testing.T) {
		token := registered.Tokens.AccessToken
		tampered := token[:len(token)-2] + flip(token[len(token)-2:])
		_, err := service.Authenticate(ctx, "Bearer "+tampered)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		service.tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := service.tokens.IssueAccessToken(registered.User)
		service.tokens.now = time.Now
		require.NoError(t, err)

		_, err = service.Authenticate(ctx, "Bearer "+token)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "Bearer "+registered.Tokens.RefreshToken)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("refresh token signed with the access secret", func(t *testing.T) {
		refreshSecret := service.tokens.cfg.RefreshSecret
		service.tokens.cfg.RefreshSecret = service.tokens.cfg.AccessSecret
		defer func() { service.tokens.cfg.RefreshSecret = refreshSecret }()

		token, _, err := service.tokens.IssueRefreshToken(registered.User.ID)
		require.NoError(t, err)

		_, err = service.Authenticate(ctx, "Bearer "+token)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("user no longer exists", func(t *testing.T) {
		store.delete(registered.User.ID)
		_, err := service.Authenticate(ctx, "Bearer "+registered.Tokens.AccessToken)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func flip(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b == 'A' {
			out[i] = 'B'
		} else {
			out[i] = 'A'
		}
	}
	return string(out)
}

// memoryStore implements userStore for tests.
type memoryStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]User
	byEmail   map[string]uuid.UUID
	createErr error
	// afterGetRefresh runs once the stored token has been read, outside the lock.
	afterGetRefresh func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byID:    make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *memoryStore) CreateUser(ctx context.Context, email, passwordHash, name string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return User{}, m.createErr
	}
	if _, ok := m.byEmail[email]; ok {
		return User{}, ErrEmailAlreadyExists
	}
	now := time.Now().UTC()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Role:         RoleUser,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[user.ID] = user
	m.byEmail[email] = user.ID
	return user, nil
}

func (m *memoryStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *memoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	if token != nil {
		copied := *token
		token = &copied
	}
	user.RefreshToken = token
	m.byID[userID] = user
	return nil
}

func (m *memoryStore) GetRefreshToken(ctx context.Context, userID uuid.UUID) (*string, error) {
	m.mu.Lock()
	user, ok := m.byID[userID]
	var token *string
	if ok && user.RefreshToken != nil {
		value := *user.RefreshToken
		token = &value
	}
	hook := m.afterGetRefresh
	m.mu.Unlock()

	if !ok {
		return nil, ErrUserNotFound
	}
	if hook != nil {
		hook()
	}
	return token, nil
}

func (m *memoryStore) delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.byID[id]; ok {
		delete(m.byEmail, user.Email)
		delete(m.byID, id)
	}
}
