package sesion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jpeduti/gestiondehoras/internal/auth"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

var (
	// ErrCredencialesInvalidas indica fallo de autenticación.
	ErrCredencialesInvalidas = errors.New("credenciales inválidas")
	// ErrCuentaDeshabilitada indica cuenta no activa.
	ErrCuentaDeshabilitada = errors.New("cuenta deshabilitada")
	// ErrRefreshInvalido indica refresh token inválido o expirado.
	ErrRefreshInvalido = errors.New("refresh token inválido")
	// ErrEnlaceInvalido indica enlace mágico inválido o ya consumido.
	ErrEnlaceInvalido = errors.New("enlace mágico inválido")
)

// canalEventos es el canal redis donde se publican los cambios de sesión.
const canalEventos = "auth:eventos"

// Eventos de sesión publicados en el canal.
const (
	EventoSignedIn  = "SIGNED_IN"
	EventoSignedOut = "SIGNED_OUT"
)

type credencialRepository interface {
	GetByEmail(ctx context.Context, email string) (*auth.Credencial, error)
}

type perfilRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*usuario.Perfil, error)
	ActivarInvitado(ctx context.Context, email string) (*usuario.Perfil, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Service concentra autenticación y sesiones.
type Service struct {
	creds      credencialRepository
	perfiles   perfilRepository
	redis      redisCommander
	subscriber *redis.Client
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewService crea el servicio de sesiones.
func NewService(creds credencialRepository, perfiles perfilRepository, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *Service {
	return &Service{
		creds:      creds,
		perfiles:   perfiles,
		redis:      redisClient,
		subscriber: redisClient,
		jwt:        jwtMgr,
		refreshTTL: refreshTTL,
	}
}

// JWT expone el gestor de JWT (útil en middlewares).
func (s *Service) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult es el retorno estándar de las autenticaciones.
type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Perfil       *usuario.Perfil `json:"profile"`
}

// Sesion es la vista de la sesión vigente extraída del token.
type Sesion struct {
	Subject uuid.UUID `json:"subject"`
	Email   string    `json:"email"`
	Roles   []string  `json:"roles"`
	Expira  time.Time `json:"expires_at"`
}

// EventoSesion es la carga publicada en los cambios de sesión.
type EventoSesion struct {
	Evento  string    `json:"event"`
	Subject uuid.UUID `json:"subject"`
	Email   string    `json:"email"`
}

// IniciarSesion autentica con correo y contraseña.
func (s *Service) IniciarSesion(ctx context.Context, email, password string) (*LoginResult, error) {
	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrCredencialNotFound) {
			log.Warn().Msg("login: credencial no encontrada")
			return nil, ErrCredencialesInvalidas
		}
		return nil, err
	}
	if cred.PasswordHash == nil {
		// Cuenta solo con enlace mágico.
		return nil, ErrCredencialesInvalidas
	}

	ok, err := auth.Verify(password, *cred.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificación de contraseña falló")
		return nil, ErrCredencialesInvalidas
	}
	if !ok {
		log.Warn().Msg("login: contraseña inválida")
		return nil, ErrCredencialesInvalidas
	}

	return s.emitirSesion(ctx, cred.ID)
}

// ActivarConEnlace consume un enlace mágico: vincula la credencial al
// perfil pendiente y abre sesión. Cada enlace sirve una sola vez.
func (s *Service) ActivarConEnlace(ctx context.Context, token string) (*LoginResult, error) {
	key := auth.MagicRedisKey(auth.HashToken(token))

	email, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEnlaceInvalido
		}
		return nil, err
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return nil, err
	}

	perfil, err := s.perfiles.ActivarInvitado(ctx, email)
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			return nil, ErrEnlaceInvalido
		}
		return nil, err
	}

	return s.emitirSesion(ctx, perfil.ID)
}

func (s *Service) emitirSesion(ctx context.Context, subject uuid.UUID) (*LoginResult, error) {
	perfil, err := s.perfiles.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !perfil.Estado.EsActivo() {
		return nil, ErrCuentaDeshabilitada
	}

	var roles []string
	if perfil.Rol != nil {
		roles = []string{perfil.Rol.Nombre}
	}

	access, _, err := s.jwt.GenerateAccessToken(subject.String(), perfil.Email, roles)
	if err != nil {
		return nil, err
	}

	refreshRaw, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, auth.RefreshRedisKey(refreshHash), subject.String(), s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	s.publicar(ctx, EventoSesion{Evento: EventoSignedIn, Subject: subject, Email: perfil.Email})

	return &LoginResult{AccessToken: access, RefreshToken: refreshRaw, Perfil: perfil}, nil
}

// Refrescar rota el refresh token y emite un acceso nuevo.
func (s *Service) Refrescar(ctx context.Context, refreshRaw string) (*LoginResult, error) {
	key := auth.RefreshRedisKey(auth.HashToken(refreshRaw))

	subjectStr, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshInvalido
		}
		return nil, err
	}

	subject, err := uuid.Parse(subjectStr)
	if err != nil {
		return nil, ErrRefreshInvalido
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return nil, err
	}

	return s.emitirSesion(ctx, subject)
}

// CerrarSesion revoca el refresh token y notifica el cierre.
func (s *Service) CerrarSesion(ctx context.Context, refreshRaw string) error {
	key := auth.RefreshRedisKey(auth.HashToken(refreshRaw))

	subjectStr, err := s.redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return err
	}

	evento := EventoSesion{Evento: EventoSignedOut}
	if subject, err := uuid.Parse(subjectStr); err == nil {
		evento.Subject = subject
	}
	s.publicar(ctx, evento)
	return nil
}

// SesionActual reconstruye la vista de sesión desde el token de acceso.
// Devuelve nil sin error cuando no hay sesión válida.
func (s *Service) SesionActual(ctx context.Context, accessToken string) (*Sesion, error) {
	if accessToken == "" {
		return nil, nil
	}
	claims, err := s.jwt.ParseAndValidate(accessToken)
	if err != nil {
		return nil, nil
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil
	}

	ses := &Sesion{Subject: subject, Email: claims.Email, Roles: claims.Roles}
	if claims.ExpiresAt != nil {
		ses.Expira = claims.ExpiresAt.Time
	}
	return ses, nil
}

// UsuarioActual devuelve el perfil del token; nil si no hay sesión.
func (s *Service) UsuarioActual(ctx context.Context, accessToken string) (*usuario.Perfil, error) {
	ses, err := s.SesionActual(ctx, accessToken)
	if err != nil || ses == nil {
		return nil, err
	}
	return s.perfiles.GetByID(ctx, ses.Subject)
}

// Suscribir entrega los cambios de sesión publicados en redis. El
// callback recibe el nombre del evento y su carga; la suscripción vive
// hasta que el contexto se cancela.
func (s *Service) Suscribir(ctx context.Context, fn func(evento string, carga EventoSesion)) error {
	if s.subscriber == nil {
		return errors.New("suscripción no disponible sin redis")
	}

	sub := s.subscriber.Subscribe(ctx, canalEventos)
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var carga EventoSesion
				if err := json.Unmarshal([]byte(msg.Payload), &carga); err != nil {
					log.Warn().Err(err).Msg("evento de sesión ilegible")
					continue
				}
				fn(carga.Evento, carga)
			}
		}
	}()

	return nil
}

func (s *Service) publicar(ctx context.Context, evento EventoSesion) {
	payload, err := json.Marshal(evento)
	if err != nil {
		return
	}
	if err := s.redis.Publish(ctx, canalEventos, payload).Err(); err != nil {
		log.Warn().Err(err).Str("evento", evento.Evento).Msg("no se pudo publicar evento de sesión")
	}
}
