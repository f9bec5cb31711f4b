package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "blog-api"

// Audience values stamped on each token kind.
const (
	accessAudience  = "access"
	refreshAudience = "refresh"
)

// TokenConfig parameterizes token signing. The two secrets must differ, and
// each token kind carries its own audience, so neither is accepted as the other.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// AccessClaims is the identity projection carried by an access token.
type AccessClaims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the user id; jti keeps consecutive tokens distinct.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	cfg           TokenConfig
	now           func() time.Time
	accessParser  *jwt.Parser
	refreshParser *jwt.Parser
}

// NewTokenIssuer validates cfg and returns an issuer bound to it.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, ErrMissingSigningSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSharedSigningSecret
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrInvalidTokenLifetimes
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}

	issuer := &TokenIssuer{cfg: cfg, now: time.Now}
	issuer.accessParser = issuer.newParser(accessAudience)
	issuer.refreshParser = issuer.newParser(refreshAudience)
	return issuer, nil
}

func (i *TokenIssuer) newParser(audience string) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
}

// IssueAccessToken signs the identity projection {id, name, email, role}.
func (i *TokenIssuer) IssueAccessToken(identity Identity) (string, time.Time, error) {
	if i == nil || i.cfg.AccessSecret == "" {
		return "", time.Time{}, ErrMissingSigningSecret
	}

	now := i.now()
	expiresAt := now.Add(i.cfg.AccessTTL)
	claims := AccessClaims{
		UserID: identity.ID.String(),
		Name:   identity.Name,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{accessAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a token bound to userID only.
func (i *TokenIssuer) IssueRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	if i == nil || i.cfg.RefreshSecret == "" {
		return "", time.Time{}, ErrMissingSigningSecret
	}

	now := i.now()
	expiresAt := now.Add(i.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{refreshAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssuePair mints a fresh access/refresh pair for identity.
func (i *TokenIssuer) IssuePair(identity Identity) (TokenPair, error) {
	access, accessExpiry, err := i.IssueAccessToken(identity)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExpiry, err := i.IssueRefreshToken(identity.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

// ParseAccessToken verifies signature, algorithm, issuer and expiry.
func (i *TokenIssuer) ParseAccessToken(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(token, i.cfg.AccessSecret, i.accessParser, &claims); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token against the refresh secret.
func (i *TokenIssuer) ParseRefreshToken(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(token, i.cfg.RefreshSecret, i.refreshParser, &claims); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

func (i *TokenIssuer) parse(token, secret string, parser *jwt.Parser, claims jwt.Claims) error {
	if i == nil || secret == "" || parser == nil {
		return ErrMissingSigningSecret
	}

	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}
