package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim identifies the operator or system calling the admin API.
type JwtCustomClaim struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

var ErrEmptyJwtSecret = errors.New("jwt secret is empty")

func JwtGenerate(secret []byte, subject, role string, lifespan time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptyJwtSecret
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		Name: subject,
		Role: role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	return t.SignedString(secret)
}

func JwtValidate(secret []byte, token string) (*JwtCustomClaim, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyJwtSecret
	}
	claims := &JwtCustomClaim{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
