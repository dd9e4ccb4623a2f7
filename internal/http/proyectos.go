package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/proyecto"
)

type proyectoPayload struct {
	Codigo      string   `json:"code"`
	Nombre      string   `json:"name"`
	Descripcion *string  `json:"description"`
	Estado      string   `json:"status"`
	FechaInicio *string  `json:"start_date"`
	FechaFin    *string  `json:"end_date"`
	JPsAsignar  []string `json:"jp_ids"`
}

// ListProyectos lista todos los proyectos con sus asignaciones.
func (h *Handler) ListProyectos(w http.ResponseWriter, r *http.Request) {
	proyectos, err := h.proyectos.Listar(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar proyectos", nil)
		return
	}

	WriteJSON(w, http.StatusOK, proyectos)
}

// GetProyecto devuelve un proyecto con creador y asignaciones.
func (h *Handler) GetProyecto(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	p, err := h.proyectos.PorID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo cargar el proyecto", nil)
		return
	}
	if p == nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "proyecto no encontrado", nil)
		return
	}

	WriteJSON(w, http.StatusOK, p)
}

// CreateProyecto crea un proyecto y asigna JPs en una sola operación.
func (h *Handler) CreateProyecto(w http.ResponseWriter, r *http.Request) {
	var payload proyectoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	input := proyecto.CrearProyectoInput{
		Codigo:      payload.Codigo,
		Nombre:      payload.Nombre,
		Descripcion: payload.Descripcion,
		Estado:      proyecto.EstadoProyecto(payload.Estado),
	}

	var err error
	if input.FechaInicio, err = parseFecha(payload.FechaInicio); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "start_date inválida", nil)
		return
	}
	if input.FechaFin, err = parseFecha(payload.FechaFin); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "end_date inválida", nil)
		return
	}
	if input.JPsAsignar, err = parseUUIDs(payload.JPsAsignar); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "jp_ids inválidos", nil)
		return
	}

	if subject, err := h.subjectUUID(r); err == nil {
		input.CreadoPor = &subject
	}

	p, err := h.proyectos.Crear(r.Context(), input)
	if err != nil {
		h.handleProyectoError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, p)
}

// UpdateProyecto aplica un parche parcial; con jp_ids reemplaza asignaciones.
func (h *Handler) UpdateProyecto(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	var patch proyecto.ActualizarProyectoInput

	if v, ok := raw["code"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "code inválido", nil)
			return
		}
		patch.Codigo = &s
	}
	if v, ok := raw["name"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "name inválido", nil)
			return
		}
		patch.Nombre = &s
	}
	if v, ok := raw["description"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "description inválida", nil)
			return
		}
		patch.Descripcion = s
	}
	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "status inválido", nil)
			return
		}
		estado := proyecto.EstadoProyecto(s)
		patch.Estado = &estado
	}
	if v, ok := raw["start_date"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "start_date inválida", nil)
			return
		}
		if patch.FechaInicio, err = parseFecha(s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "start_date inválida", nil)
			return
		}
	}
	if v, ok := raw["end_date"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "end_date inválida", nil)
			return
		}
		if patch.FechaFin, err = parseFecha(s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "end_date inválida", nil)
			return
		}
	}
	if v, ok := raw["jp_ids"]; ok {
		var ids []string
		if err := json.Unmarshal(v, &ids); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "jp_ids inválidos", nil)
			return
		}
		if patch.JPsAsignar, err = parseUUIDs(ids); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "jp_ids inválidos", nil)
			return
		}
		patch.Reasignar = true
	}

	p, err := h.proyectos.Actualizar(r.Context(), id, patch)
	if err != nil {
		h.handleProyectoError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, p)
}

// DeleteProyecto marca el proyecto como cancelado (borrado lógico).
func (h *Handler) DeleteProyecto(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.proyectos.Eliminar(r.Context(), id); err != nil {
		if errors.Is(err, proyecto.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "proyecto no encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo eliminar el proyecto", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UpdateAsignaciones reemplaza las asignaciones activas del proyecto.
func (h *Handler) UpdateAsignaciones(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		JPIDs []string `json:"jp_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	jpIDs, err := parseUUIDs(payload.JPIDs)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "jp_ids inválidos", nil)
		return
	}

	if err := h.proyectos.ActualizarAsignaciones(r.Context(), id, jpIDs); err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron actualizar asignaciones", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// JPsDisponibles lista los JPs activos asignables a proyectos.
func (h *Handler) JPsDisponibles(w http.ResponseWriter, r *http.Request) {
	jps, err := h.proyectos.JPsDisponibles(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar JPs", nil)
		return
	}

	WriteJSON(w, http.StatusOK, jps)
}

// CodigoDisponible verifica unicidad de código, con exclusión opcional.
func (h *Handler) CodigoDisponible(w http.ResponseWriter, r *http.Request) {
	codigo := r.URL.Query().Get("codigo")
	if codigo == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "codigo es obligatorio", nil)
		return
	}

	var excluir *uuid.UUID
	if s := r.URL.Query().Get("excluir"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "excluir inválido", nil)
			return
		}
		excluir = &id
	}

	existe, err := h.proyectos.CodigoExiste(r.Context(), codigo, excluir)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo verificar el código", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"available": !existe})
}

// MisProyectos lista los proyectos operativos asignados al JP autenticado.
func (h *Handler) MisProyectos(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	proyectos, err := h.proyectos.ProyectosDeJP(r.Context(), subject)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar proyectos", nil)
		return
	}

	WriteJSON(w, http.StatusOK, proyectos)
}

func (h *Handler) handleProyectoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, proyecto.ErrCodigoDuplicado):
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, proyecto.ErrEstadoInvalido):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, proyecto.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "proyecto no encontrado", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "error al guardar el proyecto", nil)
	}
}

func parseFecha(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
