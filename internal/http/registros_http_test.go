package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/auth"
	"github.com/jpeduti/gestiondehoras/internal/config"
	httpmiddleware "github.com/jpeduti/gestiondehoras/internal/http/middleware"
	"github.com/jpeduti/gestiondehoras/internal/proyecto"
	"github.com/jpeduti/gestiondehoras/internal/registro"
)

type stubRegistroRepo struct {
	semana  []registro.RegistroConProyecto
	horas   float64
	creados []registro.CrearRegistroInput
	parche  *registro.ActualizarRegistroInput
}

func (s *stubRegistroRepo) ListSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) ([]registro.RegistroConProyecto, error) {
	return s.semana, nil
}

func (s *stubRegistroRepo) ListRecientes(ctx context.Context, jpID uuid.UUID, limit int) ([]registro.RegistroConProyecto, error) {
	return s.semana, nil
}

func (s *stubRegistroRepo) Crear(ctx context.Context, input registro.CrearRegistroInput) (*registro.Registro, error) {
	s.creados = append(s.creados, input)
	return &registro.Registro{
		ID:           uuid.New(),
		JPID:         input.JPID,
		ProyectoID:   input.ProyectoID,
		SemanaInicio: input.SemanaInicio,
		Horas:        input.Horas,
		Estado:       registro.EstadoBorrador,
	}, nil
}

func (s *stubRegistroRepo) Actualizar(ctx context.Context, id uuid.UUID, patch registro.ActualizarRegistroInput) (*registro.Registro, error) {
	s.parche = &patch
	reg := &registro.Registro{ID: id, Estado: registro.EstadoBorrador}
	if patch.Horas != nil {
		reg.Horas = *patch.Horas
	}
	if patch.Estado != nil {
		reg.Estado = *patch.Estado
	}
	return reg, nil
}

func (s *stubRegistroRepo) Eliminar(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubRegistroRepo) SubmitSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) error {
	return nil
}

func (s *stubRegistroRepo) HorasSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time, excluirID *uuid.UUID) (float64, error) {
	return s.horas, nil
}

type stubProyectosRepo struct{}

func (stubProyectosRepo) ListByJP(ctx context.Context, jpID uuid.UUID) ([]proyecto.Proyecto, error) {
	return nil, nil
}

func nuevoRouterDePrueba(repo *stubRegistroRepo, jwtMgr *auth.JWTManager) http.Handler {
	h := &Handler{
		cfg:       &config.Config{JWTRefreshTTL: time.Hour},
		registros: registro.NewService(repo, stubProyectosRepo{}),
	}

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(jwtMgr))
		private.Use(httpmiddleware.RequireRoles("jp", "admin"))
		private.Route("/registros", func(t chi.Router) {
			t.Get("/", h.ListRegistros)
			t.Post("/", h.CreateRegistro)
			t.Get("/validar", h.ValidarHoras)
			t.Patch("/{id}", h.UpdateRegistro)
		})
	})
	return r
}

func tokenDePrueba(t *testing.T, jwtMgr *auth.JWTManager, subject uuid.UUID, roles []string) string {
	t.Helper()
	token, _, err := jwtMgr.GenerateAccessToken(subject.String(), "jp@ejemplo.com", roles)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

func TestHealthDevuelveEnvelope(t *testing.T) {
	router := nuevoRouterDePrueba(&stubRegistroRepo{}, auth.NewJWTManager(strings.Repeat("k", 32), time.Minute))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var envelope struct {
		Data  map[string]string `json:"data"`
		Error any               `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("json: %v", err)
	}
	if envelope.Data["status"] != "ok" || envelope.Error != nil {
		t.Fatalf("respuesta inesperada: %s", rec.Body.String())
	}
}

func TestRegistrosExigenToken(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	router := nuevoRouterDePrueba(&stubRegistroRepo{}, jwtMgr)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registros/?semana=2026-01-05", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sin token se esperaba 401, fue %d", rec.Code)
	}

	// un rol sin permiso tampoco pasa
	token := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"director"})
	req := httptest.NewRequest(http.MethodGet, "/registros/?semana=2026-01-05", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("sin rol jp se esperaba 403, fue %d", rec.Code)
	}
}

func TestListRegistrosDeSemana(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	inicio, _ := time.Parse("2006-01-02", "2026-01-05")
	repo := &stubRegistroRepo{semana: []registro.RegistroConProyecto{
		{Registro: registro.Registro{ID: uuid.New(), SemanaInicio: inicio, Horas: 8, Estado: registro.EstadoBorrador}},
	}}
	router := nuevoRouterDePrueba(repo, jwtMgr)

	token := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"jp"})
	req := httptest.NewRequest(http.MethodGet, "/registros/?semana=2026-01-05", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []registro.RegistroConProyecto `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].Horas != 8 {
		t.Fatalf("respuesta inesperada: %s", rec.Body.String())
	}

	// sin semana la petición es inválida
	req = httptest.NewRequest(http.MethodGet, "/registros/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sin semana se esperaba 400, fue %d", rec.Code)
	}
}

func TestCreateRegistroNormalizaYValida(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	repo := &stubRegistroRepo{}
	router := nuevoRouterDePrueba(repo, jwtMgr)

	subject := uuid.New()
	token := tokenDePrueba(t, jwtMgr, subject, []string{"jp"})

	proyectoID := uuid.New().String()
	body, _ := json.Marshal(map[string]any{
		"project_id": proyectoID,
		"week_start": "2026-01-08",
		"hours":      7.5,
	})
	req := httptest.NewRequest(http.MethodPost, "/registros/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.creados) != 1 {
		t.Fatal("el registro no llegó al repositorio")
	}
	creado := repo.creados[0]
	if creado.JPID != subject {
		t.Fatal("el jp_id debe tomarse del token, no del cuerpo")
	}
	if registro.ClaveSemana(creado.SemanaInicio) != "2026-01-05" {
		t.Fatalf("la semana no fue normalizada al lunes: %v", creado.SemanaInicio)
	}

	// horas en cero se rechazan
	body, _ = json.Marshal(map[string]any{
		"project_id": proyectoID,
		"week_start": "2026-01-08",
		"hours":      0,
	})
	req = httptest.NewRequest(http.MethodPost, "/registros/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("horas cero se esperaba 400, fue %d", rec.Code)
	}
}

func TestUpdateRegistroCambiaEstado(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	repo := &stubRegistroRepo{}
	router := nuevoRouterDePrueba(repo, jwtMgr)

	id := uuid.New()
	jpToken := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"jp"})
	adminToken := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"admin"})

	patchRegistro := func(token string, body map[string]any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPatch, "/registros/"+id.String(), bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// un JP puede enviar su registro
	rec := patchRegistro(jpToken, map[string]any{"status": "submitted", "hours": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if repo.parche == nil || repo.parche.Estado == nil || *repo.parche.Estado != registro.EstadoEnviado {
		t.Fatalf("el estado no llegó al repositorio: %+v", repo.parche)
	}
	if repo.parche.Horas == nil || *repo.parche.Horas != 5 {
		t.Fatalf("las horas no llegaron al repositorio: %+v", repo.parche)
	}

	// aprobar exige rol admin
	repo.parche = nil
	rec = patchRegistro(jpToken, map[string]any{"status": "approved"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("un jp no debe aprobar, fue %d", rec.Code)
	}
	if repo.parche != nil {
		t.Fatal("la aprobación rechazada no debe llegar al repositorio")
	}

	rec = patchRegistro(adminToken, map[string]any{"status": "approved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("un admin debe poder aprobar, fue %d: %s", rec.Code, rec.Body.String())
	}
	if repo.parche == nil || repo.parche.Estado == nil || *repo.parche.Estado != registro.EstadoAprobado {
		t.Fatalf("la aprobación no llegó al repositorio: %+v", repo.parche)
	}

	// un estado fuera del dominio se rechaza
	rec = patchRegistro(adminToken, map[string]any{"status": "archived"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("estado desconocido se esperaba 400, fue %d", rec.Code)
	}
}

func TestUpdateRegistroQuitaProyectoConNull(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	repo := &stubRegistroRepo{}
	router := nuevoRouterDePrueba(repo, jwtMgr)

	id := uuid.New()
	token := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"jp"})

	body := []byte(`{"project_id": null, "other_activity": "formación interna"}`)
	req := httptest.NewRequest(http.MethodPatch, "/registros/"+id.String(), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if repo.parche == nil || !repo.parche.QuitarProyecto {
		t.Fatalf("el null explícito debe limpiar el proyecto: %+v", repo.parche)
	}
	if repo.parche.ProyectoID != nil {
		t.Fatalf("no debe fijarse proyecto al limpiarlo: %+v", repo.parche)
	}

	// con un uuid el proyecto se reasigna, no se limpia
	proyectoID := uuid.New()
	body, _ = json.Marshal(map[string]any{"project_id": proyectoID.String()})
	req = httptest.NewRequest(http.MethodPatch, "/registros/"+id.String(), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if repo.parche.QuitarProyecto || repo.parche.ProyectoID == nil || *repo.parche.ProyectoID != proyectoID {
		t.Fatalf("el proyecto no se reasignó: %+v", repo.parche)
	}
}

func TestValidarHorasInformaSinBloquear(t *testing.T) {
	jwtMgr := auth.NewJWTManager(strings.Repeat("k", 32), time.Minute)
	repo := &stubRegistroRepo{horas: 43}
	router := nuevoRouterDePrueba(repo, jwtMgr)

	token := tokenDePrueba(t, jwtMgr, uuid.New(), []string{"jp"})
	req := httptest.NewRequest(http.MethodGet, "/registros/validar?semana=2026-01-05", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data registro.ValidacionHoras `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("json: %v", err)
	}
	if envelope.Data.Valida || envelope.Data.TotalActual != 43 || envelope.Data.MaxHoras != 40 {
		t.Fatalf("validación inesperada: %+v", envelope.Data)
	}
}
