package services

import (
	"fmt"
	"strconv"
	"time"

	"tip-gate-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

// AuthService issues and validates session tokens bound to a Farcaster fid
type AuthService struct {
	jwtSecret string
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// IssueToken generates a JWT token for fid
func (s *AuthService) IssueToken(fid models.FID) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"fid": fid.String(),
		"exp": now.Add(tokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the fid it was issued for
func (s *AuthService) ValidateToken(tokenString string) (models.FID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	raw, ok := claims["fid"].(string)
	if !ok {
		return 0, fmt.Errorf("fid not found in token")
	}

	fid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || fid == 0 {
		return 0, fmt.Errorf("invalid fid in token")
	}

	return models.FID(fid), nil
}
