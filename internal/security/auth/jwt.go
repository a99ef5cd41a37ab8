package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// ErrMissingToken is returned when no bearer credential is present
var ErrMissingToken = errors.New("missing bearer token")

// Claims are the verified identity claims. The tenant and role custom claims
// have two spellings each; the first non-empty one wins.
type Claims struct {
	Email            string `json:"email"`
	OrganizationType string `json:"organizationType,omitempty"`
	OrgType          string `json:"orgType,omitempty"`
	Role             string `json:"role,omitempty"`
	UserRole         string `json:"userRole,omitempty"`
	jwt.RegisteredClaims
}

// TenantClaim returns the tenant named by the token, if any
func (c *Claims) TenantClaim() string {
	if v := strings.TrimSpace(c.OrganizationType); v != "" {
		return v
	}
	return strings.TrimSpace(c.OrgType)
}

// RoleClaim returns the role named by the token, if any
func (c *Claims) RoleClaim() string {
	if v := strings.TrimSpace(c.Role); v != "" {
		return v
	}
	return strings.TrimSpace(c.UserRole)
}

// Identity returns the authenticated subject carried by the token
func (c *Claims) Identity() domain.Subject {
	return domain.Subject{ID: c.RegisteredClaims.Subject, Email: domain.NormalizeEmail(c.Email)}
}

// TokenManager issues and verifies HS256 identity tokens
type TokenManager struct {
	secret string
	issuer string
}

// NewTokenManager creates a token manager. An empty secret falls back to a
// development value; config refuses that outside development.
func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "complaintdesk"
	}
	return &TokenManager{secret: secret, issuer: issuer}
}

// TokenRequest describes a token to mint
type TokenRequest struct {
	SubjectID string
	Email     string
	Tenant    string
	Role      string
	ExpiresIn time.Duration
}

// GenerateToken mints a signed token. Used by the CLI and tests.
func (tm *TokenManager) GenerateToken(req TokenRequest) (string, error) {
	if req.SubjectID == "" {
		return "", fmt.Errorf("subject id required")
	}
	if req.ExpiresIn <= 0 {
		req.ExpiresIn = time.Hour
	}
	now := time.Now()
	claims := Claims{
		Email:            req.Email,
		OrganizationType: req.Tenant,
		Role:             req.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.ExpiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secret))
}

// ValidateToken verifies signature, expiry, issuer and subject
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.RegisteredClaims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// ExtractToken pulls the credential out of an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if strings.TrimSpace(authHeader) == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
