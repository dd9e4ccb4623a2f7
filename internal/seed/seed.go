// Package seed reúne rutinas de arranque y diagnóstico para entornos
// de desarrollo. Nada de aquí forma parte de la superficie estable.
package seed

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jpeduti/gestiondehoras/internal/rol"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

type rolBase struct {
	nombre      string
	descripcion string
	permisos    map[string]bool
}

var rolesBase = []rolBase{
	{
		nombre:      "admin",
		descripcion: "Administrador del Sistema",
		permisos:    map[string]bool{"manage_users": true, "manage_projects": true, "view_all_reports": true},
	},
	{
		nombre:      "jp",
		descripcion: "Jefe de Proyecto",
		permisos:    map[string]bool{"register_hours": true, "view_own_projects": true, "view_own_reports": true},
	},
	{
		nombre:      "director",
		descripcion: "Director de Área",
		permisos:    map[string]bool{"view_reports": true, "manage_projects": true},
	},
}

// Seeder inicializa datos mínimos del sistema.
type Seeder struct {
	roles    *rol.Repository
	perfiles *usuario.Repository
}

func NewSeeder(roles *rol.Repository, perfiles *usuario.Repository) *Seeder {
	return &Seeder{roles: roles, perfiles: perfiles}
}

// CrearRoles hace upsert de los tres roles base por nombre. Los fallos
// se registran y no interrumpen el arranque.
func (s *Seeder) CrearRoles(ctx context.Context) {
	for _, base := range rolesBase {
		if _, err := s.roles.Upsert(ctx, base.nombre, base.descripcion, base.permisos); err != nil {
			log.Error().Err(err).Str("rol", base.nombre).Msg("seed: no se pudo crear rol")
		}
	}
}

// CrearPerfilInicial crea el perfil de la identidad autenticada cuando
// todavía no existe ningún perfil. El rol se infiere del correo: si
// contiene "admin" recibe el rol admin, si no, jp.
func (s *Seeder) CrearPerfilInicial(ctx context.Context, id uuid.UUID, email string) bool {
	existentes, err := s.perfiles.ListTodos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("seed: no se pudieron consultar perfiles")
		return false
	}
	if len(existentes) > 0 {
		log.Info().Int("perfiles", len(existentes)).Msg("seed: ya existen usuarios, se omite perfil inicial")
		return true
	}

	nombreRol := "jp"
	if strings.Contains(email, "admin") {
		nombreRol = "admin"
	}
	elegido, err := s.roles.GetByNombre(ctx, nombreRol)
	if err != nil {
		log.Error().Err(err).Str("rol", nombreRol).Msg("seed: rol no disponible")
		return false
	}

	nombre := strings.ReplaceAll(strings.SplitN(email, "@", 2)[0], ".", " ")
	if nombre == "" {
		nombre = "Usuario"
	}
	empleado := "USR001"
	departamento := "General"

	_, err = s.perfiles.Create(ctx, usuario.CrearPerfilInput{
		ID:             id,
		Email:          email,
		NombreCompleto: nombre,
		RolID:          elegido.ID,
		Departamento:   &departamento,
		EmployeeID:     &empleado,
	}, usuario.EstadoActivo)
	if err != nil {
		log.Error().Err(err).Msg("seed: no se pudo crear perfil inicial")
		return false
	}

	log.Info().Str("email", email).Str("rol", nombreRol).Msg("seed: perfil inicial creado")
	return true
}
