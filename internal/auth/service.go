package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abduss/blogapi/internal/config"
	"github.com/abduss/blogapi/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPasswordLength = 72 // bcrypt limit
	minBcryptCost     = 12
)

// userStore abstracts the persistence layer.
type userStore interface {
	sessionStore
	CreateUser(ctx context.Context, email, passwordHash, name string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

// Service encapsulates authentication use cases.
type Service struct {
	store      userStore
	tokens     *TokenIssuer
	sessions   *SessionTracker
	bcryptCost int
}

// Option customizes a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost, bypassing the production floor.
// Out-of-range costs are ignored.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewService creates a Service. It fails with ErrConfiguration when the
// signing configuration is unusable. The configured bcrypt cost is raised to
// at least 12.
func NewService(store userStore, cfg config.AuthConfig, opts ...Option) (*Service, error) {
	tokens, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:      store,
		tokens:     tokens,
		sessions:   NewSessionTracker(store),
		bcryptCost: min(max(cfg.BcryptCost, minBcryptCost), bcrypt.MaxCost),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult contains the caller identity and a freshly recorded token pair.
type AuthResult struct {
	User   Identity
	Tokens TokenPair
}

// Register creates a new user, hashing the password and opening a session.
func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("%w: email and password are required", ErrBadRequest)
	}
	if len(input.Password) > maxPasswordLength {
		return AuthResult{}, fmt.Errorf("%w: password exceeds %d bytes", ErrBadRequest, maxPasswordLength)
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		metrics.ObserveAuth("register", "conflict")
		return AuthResult{}, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, string(hashed), strings.TrimSpace(input.Name))
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.ObserveAuth("register", "conflict")
			return AuthResult{}, ErrEmailAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}
	metrics.ObserveAuth("register", "success")
	return result, nil
}

// Login authenticates credentials and replaces any prior session.
func (s *Service) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.ObserveAuth("login", "rejected")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		metrics.ObserveAuth("login", "rejected")
		return AuthResult{}, ErrInvalidCredentials
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}
	metrics.ObserveAuth("login", "success")
	return result, nil
}

// Refresh exchanges the current refresh token for a new pair and rotates
// the session. The signature is verified before the stored token is compared.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, ErrRefreshTokenRequired
	}

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		metrics.ObserveAuth("refresh", "rejected")
		return AuthResult{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		metrics.ObserveAuth("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefreshToken
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.ObserveAuth("refresh", "rejected")
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	valid, err := s.sessions.ValidateSession(ctx, user.ID, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}
	if !valid {
		metrics.ObserveAuth("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefreshToken
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}
	metrics.ObserveAuth("refresh", "success")
	return result, nil
}

// Logout clears the caller's session.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.ClearSession(ctx, userID); err != nil {
		return err
	}
	metrics.ObserveAuth("logout", "success")
	return nil
}

// Authenticate validates an Authorization header value of the form
// "Bearer <token>" and resolves the identity it names.
func (s *Service) Authenticate(ctx context.Context, header string) (Identity, error) {
	token, ok := extractBearerToken(header)
	if !ok {
		metrics.ObserveAuth("authenticate", "rejected")
		return Identity{}, ErrMissingAccessToken
	}

	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		metrics.ObserveAuth("authenticate", "rejected")
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		metrics.ObserveAuth("authenticate", "rejected")
		return Identity{}, ErrInvalidAccessToken
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.ObserveAuth("authenticate", "user_not_found")
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("find user: %w", err)
	}
	return user.Identity(), nil
}

func (s *Service) openSession(ctx context.Context, user User) (AuthResult, error) {
	identity := user.Identity()

	pair, err := s.tokens.IssuePair(identity)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.sessions.RecordSession(ctx, user.ID, pair.RefreshToken); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{User: identity, Tokens: pair}, nil
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
