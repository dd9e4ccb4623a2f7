package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jpeduti/gestiondehoras/internal/auth"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyEmail   contextKey = "email"
	ContextKeyRoles   contextKey = "roles"
)

// Auth valida el JWT de acceso e inyecta los claims en el contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyEmail, claims.Email)
			ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera el subject del contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetEmail recupera el correo del contexto.
func GetEmail(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyEmail).(string)
	return val
}

// GetRoles recupera los roles del contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// RequireRoles exige que el usuario posea al menos uno de los roles.
func RequireRoles(requiredRoles ...string) func(http.Handler) http.Handler {
	normalized := make([]string, 0, len(requiredRoles))
	for _, role := range requiredRoles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			normalized = append(normalized, role)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles := GetRoles(r.Context())
			for _, role := range roles {
				roleLower := strings.ToLower(strings.TrimSpace(role))
				for _, required := range normalized {
					if roleLower == required {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "acceso restringido")
		})
	}
}

// RequireAdmin exige el rol admin.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRoles("admin")(next)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
