package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClass distinguishes short-lived access tokens from long-lived refresh tokens
type TokenClass string

const (
	TokenClassAccess  TokenClass = "access"
	TokenClassRefresh TokenClass = "refresh"
)

// TokenClaims is the signed payload of every issued token.
// Subject carries the account ID and ID carries the unique token identifier (jti).
type TokenClaims struct {
	Class TokenClass `json:"class"`
	jwt.RegisteredClaims
}

// TokenPair is returned on successful authentication
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
