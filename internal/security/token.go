// Package security issues and verifies admin credentials.
package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenIssuer = "namebot-admin"

// ErrInvalidCredentials is returned when a username or password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminClaims are the JWT claims carried by admin tokens.
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an admin token valid for expiry.
func IssueAdminToken(secret, username string, expiry time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	claims := AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminTokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// ParseAdminToken validates a signed admin token and returns its claims.
func ParseAdminToken(secret, tokenString string) (*AdminClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("security: empty jwt secret")
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(adminTokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("security: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("security: invalid token")
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("security: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckAdminCredentials compares a login attempt against the configured admin.
func CheckAdminCredentials(wantUsername, passwordHash, username, password string) error {
	if strings.TrimSpace(wantUsername) == "" || strings.TrimSpace(passwordHash) == "" {
		return ErrInvalidCredentials
	}
	if strings.TrimSpace(username) != wantUsername {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}
