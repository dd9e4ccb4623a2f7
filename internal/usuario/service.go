package usuario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jpeduti/gestiondehoras/internal/auth"
	"github.com/jpeduti/gestiondehoras/internal/util"
)

var (
	// ErrEstadoInvalido indica un valor fuera del dominio del enum.
	ErrEstadoInvalido = errors.New("estado de usuario inválido")
	// ErrEmailEnUso indica que el correo ya tiene un perfil no pendiente.
	ErrEmailEnUso = errors.New("el correo ya está en uso")
)

// PerfilRepository abstrae el acceso a user_profiles.
type PerfilRepository interface {
	ListActivos(ctx context.Context) ([]Perfil, error)
	ListTodos(ctx context.Context) ([]Perfil, error)
	ListByEstado(ctx context.Context, estado EstadoUsuario) ([]Perfil, error)
	ListByRol(ctx context.Context, rolID uuid.UUID) ([]Perfil, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Perfil, error)
	GetByEmail(ctx context.Context, email string) (*Perfil, error)
	GetEstado(ctx context.Context, id uuid.UUID) (EstadoUsuario, error)
	Create(ctx context.Context, input CrearPerfilInput, estado EstadoUsuario) (*Perfil, error)
	CrearConCredencial(ctx context.Context, input CrearPerfilInput, passwordHash string) (*Perfil, error)
	ActivarInvitado(ctx context.Context, email string) (*Perfil, error)
	Update(ctx context.Context, id uuid.UUID, patch ActualizarPerfilInput) (*Perfil, error)
	CambiarEstado(ctx context.Context, id uuid.UUID, estado EstadoUsuario) (*Perfil, error)
	EstadoStats(ctx context.Context) (*EstadisticasEstado, error)
}

// Mailer envía la invitación con enlace mágico.
type Mailer interface {
	EnviarEnlaceMagico(email, nombre, enlace string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Service concentra las operaciones sobre usuarios y sus estados.
type Service struct {
	repo      PerfilRepository
	redis     redisCommander
	mailer    Mailer
	magicTTL  time.Duration
	magicBase string
}

// NewService crea el servicio de usuarios.
func NewService(repo PerfilRepository, redisClient *redis.Client, mailer Mailer, magicTTL time.Duration, magicBase string) *Service {
	return &Service{repo: repo, redis: redisClient, mailer: mailer, magicTTL: magicTTL, magicBase: magicBase}
}

// ListActivos devuelve los usuarios con estado ACTIVO.
func (s *Service) ListActivos(ctx context.Context) ([]Perfil, error) {
	return s.repo.ListActivos(ctx)
}

// ListTodos devuelve todos los usuarios sin importar estado.
func (s *Service) ListTodos(ctx context.Context) ([]Perfil, error) {
	return s.repo.ListTodos(ctx)
}

// ListPorEstado devuelve usuarios con un estado concreto.
func (s *Service) ListPorEstado(ctx context.Context, estado EstadoUsuario) ([]Perfil, error) {
	if !estado.Valido() {
		return nil, ErrEstadoInvalido
	}
	return s.repo.ListByEstado(ctx, estado)
}

// ListPorRol devuelve usuarios activos de un rol.
func (s *Service) ListPorRol(ctx context.Context, rolID uuid.UUID) ([]Perfil, error) {
	return s.repo.ListByRol(ctx, rolID)
}

// PorID busca un perfil; devuelve nil sin error cuando no existe.
func (s *Service) PorID(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// PorEmail busca un perfil por correo; nil sin error cuando no existe.
func (s *Service) PorEmail(ctx context.Context, email string) (*Perfil, error) {
	p, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Crear inserta un perfil para una identidad ya existente.
func (s *Service) Crear(ctx context.Context, input CrearPerfilInput) (*Perfil, error) {
	if err := validarPerfil(input); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, input, EstadoActivo)
}

// CrearConCuenta da de alta credencial y perfil en una sola transacción.
type CrearConCuentaInput struct {
	Email          string
	Password       string
	NombreCompleto string
	RolID          uuid.UUID
	Departamento   *string
	EmployeeID     *string
}

func (s *Service) CrearConCuenta(ctx context.Context, input CrearConCuentaInput) (*Perfil, error) {
	perfil := CrearPerfilInput{
		ID:             uuid.New(),
		Email:          input.Email,
		NombreCompleto: input.NombreCompleto,
		RolID:          input.RolID,
		Departamento:   input.Departamento,
		EmployeeID:     input.EmployeeID,
	}
	if err := validarPerfil(perfil); err != nil {
		return nil, err
	}
	if err := util.ValidarPassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	return s.repo.CrearConCredencial(ctx, perfil, hash)
}

// Invitar crea un perfil PENDIENTE sin credencial y envía el enlace
// mágico por correo. El perfil queda creado aunque el correo falle;
// repetir la invitación de un perfil aún pendiente reemite el enlace
// sin duplicar el perfil.
func (s *Service) Invitar(ctx context.Context, input CrearPerfilInput) (*Perfil, error) {
	if err := validarPerfil(input); err != nil {
		return nil, err
	}

	perfil, err := s.repo.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		if perfil.Estado != EstadoPendiente {
			return nil, ErrEmailEnUso
		}
	case errors.Is(err, ErrNotFound):
		perfil, err = s.repo.Create(ctx, input, EstadoPendiente)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	raw, hash, err := auth.GenerateMagicToken()
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, auth.MagicRedisKey(hash), perfil.Email, s.magicTTL).Err(); err != nil {
		return nil, err
	}

	enlace := fmt.Sprintf("%s?token=%s", s.magicBase, raw)
	if err := s.mailer.EnviarEnlaceMagico(perfil.Email, perfil.NombreCompleto, enlace); err != nil {
		log.Error().Err(err).Str("email", perfil.Email).Msg("invitación: fallo al enviar correo")
		return perfil, err
	}

	return perfil, nil
}

// Actualizar aplica un parche de campos del perfil.
func (s *Service) Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarPerfilInput) (*Perfil, error) {
	if patch.Email != nil {
		if err := util.ValidarEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, id, patch)
}

// ActivarUsuario pasa el perfil a ACTIVO.
func (s *Service) ActivarUsuario(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	return s.repo.CambiarEstado(ctx, id, EstadoActivo)
}

// BloquearUsuario pasa el perfil a BLOQUEADO.
func (s *Service) BloquearUsuario(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	return s.repo.CambiarEstado(ctx, id, EstadoBloqueado)
}

// EliminarUsuario hace borrado lógico pasando el perfil a ELIMINADO.
func (s *Service) EliminarUsuario(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	return s.repo.CambiarEstado(ctx, id, EstadoEliminado)
}

// CambiarEstado fija un estado arbitrario del dominio.
func (s *Service) CambiarEstado(ctx context.Context, id uuid.UUID, estado EstadoUsuario) (*Perfil, error) {
	if !estado.Valido() {
		return nil, ErrEstadoInvalido
	}
	return s.repo.CambiarEstado(ctx, id, estado)
}

// PuedeOperar indica si el usuario puede ejecutar acciones (estado ACTIVO).
func (s *Service) PuedeOperar(ctx context.Context, id uuid.UUID) (bool, error) {
	estado, err := s.repo.GetEstado(ctx, id)
	if err != nil {
		return false, err
	}
	return estado == EstadoActivo, nil
}

// Estadisticas cuenta usuarios por estado.
func (s *Service) Estadisticas(ctx context.Context) (*EstadisticasEstado, error) {
	return s.repo.EstadoStats(ctx)
}

func validarPerfil(input CrearPerfilInput) error {
	if err := util.ValidarEmail(input.Email); err != nil {
		return err
	}
	if err := util.RequerirTexto(input.NombreCompleto, "full_name"); err != nil {
		return err
	}
	if input.RolID == uuid.Nil {
		return errors.New("role_id obligatorio")
	}
	return nil
}
