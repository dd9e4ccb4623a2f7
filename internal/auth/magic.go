package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateMagicToken crea el token de un enlace mágico y su hash persistible.
// El token viaja por correo; en redis solo se guarda el hash.
func GenerateMagicToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashToken(raw)
	return raw, hashed, nil
}

// MagicRedisKey arma la clave del estado de un enlace mágico pendiente.
func MagicRedisKey(hash string) string {
	return fmt.Sprintf("magic:%s", hash)
}
