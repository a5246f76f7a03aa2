package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the JWT claims carried by a session token.
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
