package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS aplica una política restrictiva basada en ALLOW_ORIGINS.
// Soporta:
// - coincidencia exacta del Origin (ej.: https://horas.ejemplo.com)
// - comodín de subdominio cuando la entrada empieza con *. (ej.: *.ejemplo.com)
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowExact := make(map[string]struct{}, len(allowedOrigins))
	var allowSuffix []string // solo sufijo de host (sin esquema), comenzando con .

	for _, entry := range allowedOrigins {
		e := strings.TrimSpace(entry)
		if e == "" {
			continue
		}
		if strings.HasPrefix(e, "*.") {
			allowSuffix = append(allowSuffix, strings.TrimPrefix(e, "*")) // conserva ".dominio"
			continue
		}
		allowExact[e] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			return false
		}
		if _, ok := allowExact[origin]; ok {
			return true
		}

		// Evalúa el comodín contra el host del Origin
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, suf := range allowSuffix {
			// suf ya empieza con '.' (ej.: ".ejemplo.com")
			if strings.HasSuffix(host, strings.ToLower(suf)) {
				// exige subdominio: host != raíz del sufijo
				base := strings.TrimPrefix(strings.ToLower(suf), ".")
				if host == base {
					continue
				}
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if isAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
