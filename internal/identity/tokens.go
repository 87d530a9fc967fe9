package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"budgettracker/internal/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "budgettracker"
)

// Claims represents the claims in tokens minted by LocalProvider.
type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (p *LocalProvider) signToken(userID, email, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	return signed, expiresAt, err
}

// parseToken validates signature, expiry and issuer, and rejects tokens of
// the wrong type so a refresh token can never be used as an access token.
func (p *LocalProvider) parseToken(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid %s token: %w", wantType, err)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("token is not a %s token", wantType)
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
