package auth

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	tokenCacheSize = 1024
	tokenCacheTTL  = 5 * time.Minute
)

var workspacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// AuthService issues and validates workspace scoped bearer tokens.
type AuthService struct {
	config *Config
	// validated tokens, so that hot clients skip signature checks
	tokens *expirable.LRU[string, *Claims]
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{
		config: config,
		tokens: expirable.NewLRU[string, *Claims](tokenCacheSize, nil, tokenCacheTTL),
	}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

func (s *AuthService) DefaultWorkspace() string {
	return s.config.DefaultWorkspace
}

// ValidWorkspace reports whether id can be used as a workspace id.
func ValidWorkspace(id string) bool {
	return workspacePattern.MatchString(id)
}

// IssueToken mints an access token for workspace. A zero expiry falls back to
// the configured one; a negative expiry means the token never expires.
func (s *AuthService) IssueToken(workspace string, expiry time.Duration) (string, error) {
	if !ValidWorkspace(workspace) {
		return "", ErrInvalidWorkspace
	}
	if expiry == 0 {
		expiry = s.config.AccessTokenExpiry
	}
	return newToken(workspace, s.config.TokenIssuer, s.config.AccessTokenSecret, expiry)
}

func (s *AuthService) ValidateAccessToken(_ context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	if claims, ok := s.tokens.Get(accessToken); ok {
		if claims.ExpiresAt == nil || claims.ExpiresAt.After(time.Now()) {
			return claims, nil
		}
		s.tokens.Remove(accessToken)
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret, s.config.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.Type)
	}
	if !ValidWorkspace(claims.Workspace()) {
		return nil, ErrInvalidWorkspace
	}

	s.tokens.Add(accessToken, claims)
	return claims, nil
}

func newToken(subject, issuer, jwtSecret string, expiry time.Duration) (string, error) {
	var expiryTime *jwt.NumericDate
	if expiry > 0 {
		expiryTime = jwt.NewNumericDate(time.Now().Add(expiry))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Type: AccessToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
