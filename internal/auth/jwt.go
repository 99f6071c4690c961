package auth

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

// JWTValidator verifies bearer tokens issued by the auth provider.
// The platform signs with RS256 in production; HS256 is kept for local
// development.
type JWTValidator struct {
	secret []byte
	pubKey *rsa.PublicKey
}

func NewHS256Validator(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	return &JWTValidator{secret: []byte(secret)}, nil
}

func NewRS256Validator(publicKeyPath string) (*JWTValidator, error) {
	b, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &JWTValidator{pubKey: key}, nil
}

// Validate parses the token and returns the stable profile id.
func (v *JWTValidator) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if v.secret == nil {
				return nil, errors.New("unexpected signing method")
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA:
			if v.pubKey == nil {
				return nil, errors.New("unexpected signing method")
			}
			return v.pubKey, nil
		default:
			return nil, errors.New("unexpected signing method")
		}
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.ProfileID != "" {
		return claims.ProfileID, nil
	}
	return claims.Subject, nil
}

// ParseBearer extracts the token from an Authorization header.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
