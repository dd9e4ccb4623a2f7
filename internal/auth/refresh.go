package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRefresh se devuelve cuando el refresh token es inválido o expiró.
	ErrInvalidRefresh = errors.New("refresh token inválido")
)

// GenerateRefreshToken crea un token aleatorio seguro y su hash persistible.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashToken(raw)
	return raw, hashed, nil
}

// HashToken produce un hash SHA-256 en base64.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey arma la clave donde se guarda el estado del refresh.
func RefreshRedisKey(hash string) string {
	return fmt.Sprintf("refresh:%s", hash)
}
