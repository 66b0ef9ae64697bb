// Package auth provides access-token validation. Token issuance, 2FA and the
// RBAC store are external collaborators; this service only needs to verify a
// presented credential and extract the caller identity.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kassa/internal/core/appctx"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "kassa",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string   `json:"uid"`
	CompanyID    string   `json:"cid"`
	StoreID      string   `json:"sid,omitempty"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"perms,omitempty"`
	IsSuperAdmin bool     `json:"adm,omitempty"`
	Active       bool     `json:"act"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateAccessToken generates a new access token.
// Used by the seed tool and tests; production tokens come from the identity
// service sharing the same secret.
func (s *JWTService) GenerateAccessToken(
	userID, companyID, storeID, email string,
	roles, permissions []string,
	isSuperAdmin bool,
) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:       userID,
		CompanyID:    companyID,
		StoreID:      storeID,
		Email:        email,
		Roles:        roles,
		Permissions:  permissions,
		IsSuperAdmin: isSuperAdmin,
		Active:       true,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates JWT and returns user context.
// Inactive accounts are rejected here so the realtime handshake and the HTTP
// middleware share the same gate.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if !claims.Active {
		return nil, fmt.Errorf("account is inactive")
	}

	return &appctx.UserContext{
		UserID:       claims.UserID,
		CompanyID:    claims.CompanyID,
		StoreID:      claims.StoreID,
		Email:        claims.Email,
		Roles:        claims.Roles,
		Permissions:  claims.Permissions,
		IsSuperAdmin: claims.IsSuperAdmin,
		Active:       claims.Active,
	}, nil
}
