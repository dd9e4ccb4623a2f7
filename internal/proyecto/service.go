package proyecto

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jpeduti/gestiondehoras/internal/usuario"
	"github.com/jpeduti/gestiondehoras/internal/util"
)

var (
	// ErrCodigoDuplicado indica que el código ya pertenece a otro proyecto.
	ErrCodigoDuplicado = errors.New("código de proyecto ya existe")
	// ErrEstadoInvalido indica estado fuera del dominio.
	ErrEstadoInvalido = errors.New("estado de proyecto inválido")
)

const jpsCacheKey = "proyectos:jps-disponibles"
const jpsCacheTTL = 60 * time.Second

// ProyectoRepository abstrae el acceso a projects y project_assignments.
type ProyectoRepository interface {
	ListConAsignaciones(ctx context.Context) ([]ProyectoConAsignaciones, error)
	GetConAsignaciones(ctx context.Context, id uuid.UUID) (*ProyectoConAsignaciones, error)
	Crear(ctx context.Context, input CrearProyectoInput) (*Proyecto, error)
	Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarProyectoInput) (*Proyecto, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ActualizarAsignaciones(ctx context.Context, proyectoID uuid.UUID, jpIDs []uuid.UUID) error
	ListJPsDisponibles(ctx context.Context) ([]usuario.PerfilResumen, error)
	ListByJP(ctx context.Context, jpID uuid.UUID) ([]Proyecto, error)
	CodigoExiste(ctx context.Context, codigo string, excluirID *uuid.UUID) (bool, error)
}

// Service concentra las reglas del módulo de proyectos.
type Service struct {
	repo  ProyectoRepository
	cache *redis.Client
}

// NewService crea el servicio de proyectos.
func NewService(repo ProyectoRepository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// Listar devuelve todos los proyectos con asignaciones vigentes.
func (s *Service) Listar(ctx context.Context) ([]ProyectoConAsignaciones, error) {
	return s.repo.ListConAsignaciones(ctx)
}

// PorID busca un proyecto; devuelve nil sin error cuando no existe.
func (s *Service) PorID(ctx context.Context, id uuid.UUID) (*ProyectoConAsignaciones, error) {
	p, err := s.repo.GetConAsignaciones(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Crear da de alta un proyecto y sus asignaciones iniciales.
func (s *Service) Crear(ctx context.Context, input CrearProyectoInput) (*Proyecto, error) {
	if err := util.RequerirTexto(input.Codigo, "code"); err != nil {
		return nil, err
	}
	if err := util.RequerirTexto(input.Nombre, "name"); err != nil {
		return nil, err
	}
	if input.Estado == "" {
		input.Estado = EstadoActivo
	}
	if !input.Estado.Valido() {
		return nil, ErrEstadoInvalido
	}

	existe, err := s.repo.CodigoExiste(ctx, input.Codigo, nil)
	if err != nil {
		return nil, err
	}
	if existe {
		return nil, ErrCodigoDuplicado
	}

	return s.repo.Crear(ctx, input)
}

// Actualizar aplica el parche y, si se pide, reemplaza las asignaciones.
func (s *Service) Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarProyectoInput) (*Proyecto, error) {
	if patch.Estado != nil && !patch.Estado.Valido() {
		return nil, ErrEstadoInvalido
	}
	if patch.Codigo != nil {
		existe, err := s.repo.CodigoExiste(ctx, *patch.Codigo, &id)
		if err != nil {
			return nil, err
		}
		if existe {
			return nil, ErrCodigoDuplicado
		}
	}
	return s.repo.Actualizar(ctx, id, patch)
}

// Eliminar hace borrado lógico: pasa el proyecto a cancelado.
func (s *Service) Eliminar(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

// ActualizarAsignaciones reemplaza el conjunto vigente de JPs.
func (s *Service) ActualizarAsignaciones(ctx context.Context, proyectoID uuid.UUID, jpIDs []uuid.UUID) error {
	return s.repo.ActualizarAsignaciones(ctx, proyectoID, jpIDs)
}

// JPsDisponibles devuelve los usuarios activos con rol jp, con un
// cache corto en redis para las pantallas de asignación.
func (s *Service) JPsDisponibles(ctx context.Context) ([]usuario.PerfilResumen, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, jpsCacheKey).Bytes(); err == nil {
			var jps []usuario.PerfilResumen
			if json.Unmarshal(data, &jps) == nil {
				return jps, nil
			}
		}
	}

	jps, err := s.repo.ListJPsDisponibles(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(jps); err == nil {
			_ = s.cache.Set(ctx, jpsCacheKey, payload, jpsCacheTTL).Err()
		}
	}

	return jps, nil
}

// ProyectosDeJP devuelve los proyectos activos o pausados de un JP.
func (s *Service) ProyectosDeJP(ctx context.Context, jpID uuid.UUID) ([]Proyecto, error) {
	return s.repo.ListByJP(ctx, jpID)
}

// CodigoExiste expone la verificación de unicidad para validación al editar.
func (s *Service) CodigoExiste(ctx context.Context, codigo string, excluirID *uuid.UUID) (bool, error) {
	return s.repo.CodigoExiste(ctx, codigo, excluirID)
}
