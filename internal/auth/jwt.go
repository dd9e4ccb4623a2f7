package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims representa la información presente en un JWT de acceso.
type Claims struct {
	Roles []string `json:"roles"`
	Email string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager encapsula generación y validación de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager crea el gestor con secreto y TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccessToken crea un JWT HS256 con los claims estándar.
func (m *JWTManager) GenerateAccessToken(subject, email string, roles []string) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	claims := Claims{
		Roles: roles,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// ParseAndValidate verifica firma y expiración.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}
