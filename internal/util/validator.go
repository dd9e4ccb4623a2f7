package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidarEmail devuelve error para correos inválidos.
func ValidarEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obligatorio")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidarPassword verifica requisitos mínimos de contraseña.
func ValidarPassword(password string) error {
	if len(password) < 8 {
		return errors.New("la contraseña debe tener al menos 8 caracteres")
	}
	return nil
}

// RequerirTexto garantiza cadena no vacía.
func RequerirTexto(valor, campo string) error {
	if strings.TrimSpace(valor) == "" {
		return errors.New(campo + " obligatorio")
	}
	return nil
}
