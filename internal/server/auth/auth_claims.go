package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type AuthTokenType string

const AccessToken AuthTokenType = "access"

// Claims carry the workspace id as the JWT subject.
type Claims struct {
	Type AuthTokenType `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) Workspace() string {
	return c.Subject
}

func ParseClaims(tokenString, jwtSecret, issuer string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
