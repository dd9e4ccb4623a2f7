package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/usuario"
	"github.com/jpeduti/gestiondehoras/internal/util"
)

// ListUsuarios lista perfiles. Admite filtros ?estado=, ?rol= y ?todos=true.
func (h *Handler) ListUsuarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if rolStr := r.URL.Query().Get("rol"); rolStr != "" {
		rolID, err := uuid.Parse(rolStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "rol inválido", nil)
			return
		}
		perfiles, err := h.usuarios.ListPorRol(ctx, rolID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar usuarios", nil)
			return
		}
		WriteJSON(w, http.StatusOK, perfiles)
		return
	}

	if estadoStr := r.URL.Query().Get("estado"); estadoStr != "" {
		valor, err := strconv.Atoi(estadoStr)
		if err != nil || !usuario.EstadoUsuario(valor).Valido() {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "estado inválido", nil)
			return
		}
		perfiles, err := h.usuarios.ListPorEstado(ctx, usuario.EstadoUsuario(valor))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar usuarios", nil)
			return
		}
		WriteJSON(w, http.StatusOK, perfiles)
		return
	}

	var (
		perfiles []usuario.Perfil
		err      error
	)
	if r.URL.Query().Get("todos") == "true" {
		perfiles, err = h.usuarios.ListTodos(ctx)
	} else {
		perfiles, err = h.usuarios.ListActivos(ctx)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar usuarios", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfiles)
}

// GetUsuario devuelve un perfil por id.
func (h *Handler) GetUsuario(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	perfil, err := h.usuarios.PorID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo cargar el perfil", nil)
		return
	}
	if perfil == nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "perfil no encontrado", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

type crearUsuarioPayload struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	NombreCompleto string  `json:"full_name"`
	RolID          string  `json:"role_id"`
	Departamento   *string `json:"department"`
	EmployeeID     *string `json:"employee_id"`
}

// CreateUsuario crea un perfil; con password también crea la credencial.
func (h *Handler) CreateUsuario(w http.ResponseWriter, r *http.Request) {
	var payload crearUsuarioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	rolID, err := uuid.Parse(payload.RolID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "role_id inválido", nil)
		return
	}

	// id opcional: enlaza el perfil a una credencial ya existente
	var perfilID uuid.UUID
	if payload.ID != "" {
		perfilID, err = uuid.Parse(payload.ID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
			return
		}
	}

	ctx := r.Context()

	var perfil *usuario.Perfil
	if strings.TrimSpace(payload.Password) != "" {
		if err := util.ValidarPassword(payload.Password); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		perfil, err = h.usuarios.CrearConCuenta(ctx, usuario.CrearConCuentaInput{
			Email:          payload.Email,
			Password:       payload.Password,
			NombreCompleto: payload.NombreCompleto,
			RolID:          rolID,
			Departamento:   payload.Departamento,
			EmployeeID:     payload.EmployeeID,
		})
	} else {
		perfil, err = h.usuarios.Crear(ctx, usuario.CrearPerfilInput{
			ID:             perfilID,
			Email:          payload.Email,
			NombreCompleto: payload.NombreCompleto,
			RolID:          rolID,
			Departamento:   payload.Departamento,
			EmployeeID:     payload.EmployeeID,
		})
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusCreated, perfil)
}

// InvitarUsuario crea un perfil pendiente y envía el enlace mágico.
func (h *Handler) InvitarUsuario(w http.ResponseWriter, r *http.Request) {
	var payload crearUsuarioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	rolID, err := uuid.Parse(payload.RolID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "role_id inválido", nil)
		return
	}

	perfil, err := h.usuarios.Invitar(r.Context(), usuario.CrearPerfilInput{
		Email:          payload.Email,
		NombreCompleto: payload.NombreCompleto,
		RolID:          rolID,
		Departamento:   payload.Departamento,
		EmployeeID:     payload.EmployeeID,
	})
	if err != nil {
		if perfil != nil {
			// perfil creado pero el correo falló; el cliente puede reintentar el envío
			WriteJSON(w, http.StatusCreated, map[string]any{
				"profile":    perfil,
				"email_sent": false,
			})
			return
		}
		if errors.Is(err, usuario.ErrEmailEnUso) {
			WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"profile":    perfil,
		"email_sent": true,
	})
}

// UpdateUsuario aplica un parche parcial sobre el perfil.
func (h *Handler) UpdateUsuario(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		NombreCompleto *string `json:"full_name"`
		Email          *string `json:"email"`
		RolID          *string `json:"role_id"`
		Departamento   *string `json:"department"`
		EmployeeID     *string `json:"employee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	patch := usuario.ActualizarPerfilInput{
		NombreCompleto: payload.NombreCompleto,
		Email:          payload.Email,
		Departamento:   payload.Departamento,
		EmployeeID:     payload.EmployeeID,
	}
	if payload.RolID != nil {
		rolID, err := uuid.Parse(*payload.RolID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "role_id inválido", nil)
			return
		}
		patch.RolID = &rolID
	}

	perfil, err := h.usuarios.Actualizar(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "perfil no encontrado", nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

// ActivarUsuario mueve el perfil al estado activo.
func (h *Handler) ActivarUsuario(w http.ResponseWriter, r *http.Request) {
	h.cambiarEstado(w, r, h.usuarios.ActivarUsuario)
}

// BloquearUsuario mueve el perfil al estado bloqueado.
func (h *Handler) BloquearUsuario(w http.ResponseWriter, r *http.Request) {
	h.cambiarEstado(w, r, h.usuarios.BloquearUsuario)
}

// EliminarUsuario marca el perfil como eliminado (borrado lógico).
func (h *Handler) EliminarUsuario(w http.ResponseWriter, r *http.Request) {
	h.cambiarEstado(w, r, h.usuarios.EliminarUsuario)
}

func (h *Handler) cambiarEstado(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*usuario.Perfil, error)) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	perfil, err := fn(r.Context(), id)
	if err != nil {
		if errors.Is(err, usuario.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "perfil no encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo cambiar el estado", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

// EstadisticasUsuarios devuelve el conteo de perfiles por estado.
func (h *Handler) EstadisticasUsuarios(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usuarios.Estadisticas(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron calcular estadísticas", nil)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// ListRoles lista los roles disponibles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar roles", nil)
		return
	}

	WriteJSON(w, http.StatusOK, roles)
}
