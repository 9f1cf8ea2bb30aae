package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"socialchat/internal/config"
)

// Claims are the custom JWT claims, embedding jwt.RegisteredClaims
// (ExpiresAt, IssuedAt, ID and friends).
type Claims struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken issues a new JWT for the given user. Each token carries a
// random JTI so it can be individually revoked via the blacklist.
func GenerateToken(userID uint, username string, authCfg config.AuthConfig) (string, error) {
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating JWT ID: %w", err)
	}

	expirationTime := time.Now().Add(authCfg.JWTExpiry)
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        jwtID.String(),
			Issuer:    "socialchat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("signing JWT: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies the given JWT string and, when a blacklist is
// provided, rejects revoked tokens. Returns the parsed claims on success.
func ValidateToken(ctx context.Context, tokenString, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, fmt.Errorf("JWT missing JTI claim, cannot check blacklist")
		}
		revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// Fail closed: an unreachable blacklist rejects the token.
			return nil, fmt.Errorf("checking token blacklist: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("JWT has been revoked")
		}
	}

	return claims, nil
}
