package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jpeduti/gestiondehoras/internal/sesion"
)

const refreshCookieName = "refresh"

// Login autentica con email y contraseña.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Password) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email y contraseña son obligatorios", nil)
		return
	}

	result, err := h.sesiones.IniciarSesion(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// ActivarEnlace consume un enlace mágico de invitación y abre sesión.
func (h *Handler) ActivarEnlace(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.Token) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "token es obligatorio", nil)
		return
	}

	result, err := h.sesiones.ActivarConEnlace(r.Context(), payload.Token)
	if err != nil {
		if errors.Is(err, sesion.ErrEnlaceInvalido) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "enlace inválido o expirado", nil)
			return
		}
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Refresh rota el token de acceso usando el refresh vigente.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.sesiones.Refrescar(r.Context(), token)
	if err != nil {
		if errors.Is(err, sesion.ErrRefreshInvalido) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
			return
		}
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Logout revoca el refresh token actual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := getRefreshFromRequest(r); err == nil {
		_ = h.sesiones.CerrarSesion(r.Context(), token)
	}

	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me devuelve el perfil del usuario autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	perfil, err := h.usuarios.PorID(r.Context(), subject)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo cargar el perfil", nil)
		return
	}
	if perfil == nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "perfil no encontrado", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sesion.ErrCredencialesInvalidas):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, sesion.ErrCuentaDeshabilitada):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "error al autenticar", nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *sesion.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, time.Now().Add(h.cfg.JWTRefreshTTL))

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Perfil,
	})
}

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
