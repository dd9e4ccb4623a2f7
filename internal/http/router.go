package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jpeduti/gestiondehoras/internal/config"
	httpmiddleware "github.com/jpeduti/gestiondehoras/internal/http/middleware"
	"github.com/jpeduti/gestiondehoras/internal/proyecto"
	"github.com/jpeduti/gestiondehoras/internal/registro"
	"github.com/jpeduti/gestiondehoras/internal/rol"
	"github.com/jpeduti/gestiondehoras/internal/sesion"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	sesiones      *sesion.Service
	usuarios      *usuario.Service
	proyectos     *proyecto.Service
	registros     *registro.Service
	roles         *rol.Repository
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devuelve el enrutador configurado con todos los módulos.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, sesiones *sesion.Service, correo usuario.Mailer) http.Handler {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	rolesRepo := rol.NewRepository(pool)
	usuariosRepo := usuario.NewRepository(pool)
	usuariosService := usuario.NewService(usuariosRepo, redisClient, correo, cfg.MagicLinkTTL, cfg.MagicLinkBase)

	proyectosRepo := proyecto.NewRepository(pool)
	proyectosService := proyecto.NewService(proyectosRepo, redisClient)

	registrosRepo := registro.NewRepository(pool)
	registrosService := registro.NewService(registrosRepo, proyectosRepo)

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		sesiones:      sesiones,
		usuarios:      usuariosService,
		proyectos:     proyectosService,
		registros:     registrosService,
		roles:         rolesRepo,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/activar", h.ActivarEnlace)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(sesiones.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Get("/roles", h.ListRoles)

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAdmin)

			admin.Route("/usuarios", func(u chi.Router) {
				u.Get("/", h.ListUsuarios)
				u.Post("/", h.CreateUsuario)
				u.Post("/invitar", h.InvitarUsuario)
				u.Get("/estadisticas", h.EstadisticasUsuarios)
				u.Get("/{id}", h.GetUsuario)
				u.Patch("/{id}", h.UpdateUsuario)
				u.Post("/{id}/activar", h.ActivarUsuario)
				u.Post("/{id}/bloquear", h.BloquearUsuario)
				u.Delete("/{id}", h.EliminarUsuario)
			})

			admin.Route("/proyectos", func(p chi.Router) {
				p.Get("/", h.ListProyectos)
				p.Post("/", h.CreateProyecto)
				p.Get("/jps-disponibles", h.JPsDisponibles)
				p.Get("/codigo-disponible", h.CodigoDisponible)
				p.Get("/{id}", h.GetProyecto)
				p.Patch("/{id}", h.UpdateProyecto)
				p.Delete("/{id}", h.DeleteProyecto)
				p.Put("/{id}/asignaciones", h.UpdateAsignaciones)
			})
		})

		private.Group(func(jp chi.Router) {
			jp.Use(httpmiddleware.RequireRoles("jp", "admin"))

			jp.Get("/mis-proyectos", h.MisProyectos)

			jp.Route("/registros", func(t chi.Router) {
				t.Get("/", h.ListRegistros)
				t.Post("/", h.CreateRegistro)
				t.Get("/resumen", h.ResumenSemanas)
				t.Get("/validar", h.ValidarHoras)
				t.Post("/enviar", h.EnviarSemana)
				t.Patch("/{id}", h.UpdateRegistro)
				t.Delete("/{id}", h.DeleteRegistro)
			})
		})
	})

	return r
}

// Health responde estado simple.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexiones con Postgres y Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependencias no disponibles", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (h *Handler) subjectUUID(r *http.Request) (uuid.UUID, error) {
	subjectStr := httpmiddleware.GetSubject(r.Context())
	if strings.TrimSpace(subjectStr) == "" {
		return uuid.Nil, errors.New("subject ausente")
	}
	return uuid.Parse(subjectStr)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func esAdmin(r *http.Request) bool {
	for _, nombre := range httpmiddleware.GetRoles(r.Context()) {
		if strings.EqualFold(nombre, "admin") {
			return true
		}
	}
	return false
}
