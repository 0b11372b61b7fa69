package utils

import (
	"errors"                   // Error values
	"tabletop/internal/domain" // Identity carried in the token
	"time"                     // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// SessionTTL is how long a login stays valid
const SessionTTL = 24 * time.Hour

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"`  // Custom claim for user ID
	Username             string `json:"username"` // Custom claim for username
	Role                 string `json:"role"`     // Custom claim for role at login time
	jwt.RegisteredClaims        // Standard JWT claims
}

// Identity converts the claims into the caller identity
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{UserID: c.UserID, Username: c.Username, Role: domain.Role(c.Role)}
}

// GenerateJWT creates a signed session token for the identity
func GenerateJWT(id domain.Identity, secret string) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		UserID:   id.UserID,       // Custom claim for user ID
		Username: id.Username,     // Custom claim for username
		Role:     string(id.Role), // Custom claim for role
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)), // Token expires in 24 hours
			IssuedAt:  jwt.NewNumericDate(now),                 // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == 0 || claims.Username == "" {
			return nil, errors.New("token carries no identity")
		}
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
