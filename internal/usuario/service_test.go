package usuario

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type stubPerfilRepo struct {
	perfiles   map[uuid.UUID]*Perfil
	estado     EstadoUsuario
	creadoCon  *EstadoUsuario
	credencial bool
	cambiadoA  *EstadoUsuario
}

func (s *stubPerfilRepo) ListActivos(ctx context.Context) ([]Perfil, error) { return nil, nil }
func (s *stubPerfilRepo) ListTodos(ctx context.Context) ([]Perfil, error)  { return nil, nil }
func (s *stubPerfilRepo) ListByEstado(ctx context.Context, estado EstadoUsuario) ([]Perfil, error) {
	return nil, nil
}
func (s *stubPerfilRepo) ListByRol(ctx context.Context, rolID uuid.UUID) ([]Perfil, error) {
	return nil, nil
}

func (s *stubPerfilRepo) GetByID(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	if p, ok := s.perfiles[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (s *stubPerfilRepo) GetByEmail(ctx context.Context, email string) (*Perfil, error) {
	for _, p := range s.perfiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubPerfilRepo) GetEstado(ctx context.Context, id uuid.UUID) (EstadoUsuario, error) {
	return s.estado, nil
}

func (s *stubPerfilRepo) Create(ctx context.Context, input CrearPerfilInput, estado EstadoUsuario) (*Perfil, error) {
	s.creadoCon = &estado
	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Perfil{
		ID:             id,
		Email:          input.Email,
		NombreCompleto: input.NombreCompleto,
		RolID:          input.RolID,
		Estado:         estado,
	}, nil
}

func (s *stubPerfilRepo) CrearConCredencial(ctx context.Context, input CrearPerfilInput, passwordHash string) (*Perfil, error) {
	s.credencial = true
	return s.Create(ctx, input, EstadoActivo)
}

func (s *stubPerfilRepo) ActivarInvitado(ctx context.Context, email string) (*Perfil, error) {
	return nil, ErrNotFound
}

func (s *stubPerfilRepo) Update(ctx context.Context, id uuid.UUID, patch ActualizarPerfilInput) (*Perfil, error) {
	if p, ok := s.perfiles[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (s *stubPerfilRepo) CambiarEstado(ctx context.Context, id uuid.UUID, estado EstadoUsuario) (*Perfil, error) {
	s.cambiadoA = &estado
	if p, ok := s.perfiles[id]; ok {
		p.Estado = estado
		return p, nil
	}
	return nil, ErrNotFound
}

func (s *stubPerfilRepo) EstadoStats(ctx context.Context) (*EstadisticasEstado, error) {
	return &EstadisticasEstado{}, nil
}

type stubRedis struct {
	store map[string]string
	err   error
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	if s.store == nil {
		s.store = make(map[string]string)
	}
	if v, ok := value.(string); ok {
		s.store[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

type stubMailer struct {
	enviados []string
	enlace   string
	err      error
}

func (s *stubMailer) EnviarEnlaceMagico(email, nombre, enlace string) error {
	if s.err != nil {
		return s.err
	}
	s.enviados = append(s.enviados, email)
	s.enlace = enlace
	return nil
}

func nuevoServicio(repo *stubPerfilRepo, r *stubRedis, m *stubMailer) *Service {
	return &Service{
		repo:      repo,
		redis:     r,
		mailer:    m,
		magicTTL:  time.Hour,
		magicBase: "https://horas.ejemplo.com/activar",
	}
}

func TestPorIDTraduceNotFoundANil(t *testing.T) {
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{}}
	svc := nuevoServicio(repo, &stubRedis{}, &stubMailer{})

	p, err := svc.PorID(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("no debe propagar ErrNotFound: %v", err)
	}
	if p != nil {
		t.Fatalf("se esperaba nil, se obtuvo %+v", p)
	}
}

func TestInvitarCreaPendienteYEnviaEnlace(t *testing.T) {
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{}}
	redisStub := &stubRedis{}
	mailerStub := &stubMailer{}
	svc := nuevoServicio(repo, redisStub, mailerStub)

	perfil, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "jp@ejemplo.com",
		NombreCompleto: "Nueva JP",
		RolID:          uuid.New(),
	})
	if err != nil {
		t.Fatalf("invitar: %v", err)
	}

	if repo.creadoCon == nil || *repo.creadoCon != EstadoPendiente {
		t.Fatalf("el perfil invitado debe quedar PENDIENTE, se usó %v", repo.creadoCon)
	}
	if len(mailerStub.enviados) != 1 || mailerStub.enviados[0] != perfil.Email {
		t.Fatalf("el correo no llegó al invitado: %v", mailerStub.enviados)
	}
	if !strings.HasPrefix(mailerStub.enlace, "https://horas.ejemplo.com/activar?token=") {
		t.Fatalf("enlace mágico inesperado: %s", mailerStub.enlace)
	}
	if len(redisStub.store) != 1 {
		t.Fatalf("el token mágico debe quedar en redis, hay %d claves", len(redisStub.store))
	}
	for k, v := range redisStub.store {
		if !strings.HasPrefix(k, "magic:") {
			t.Fatalf("clave redis inesperada: %s", k)
		}
		if v != perfil.Email {
			t.Fatalf("el valor debe ser el correo del invitado, se guardó %q", v)
		}
	}
}

func TestInvitarDevuelvePerfilAunqueElCorreoFalle(t *testing.T) {
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{}}
	mailerStub := &stubMailer{err: errors.New("smtp caído")}
	svc := nuevoServicio(repo, &stubRedis{}, mailerStub)

	perfil, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "jp@ejemplo.com",
		NombreCompleto: "Nueva JP",
		RolID:          uuid.New(),
	})
	if err == nil {
		t.Fatal("el fallo de correo debe propagarse")
	}
	if perfil == nil {
		t.Fatal("el perfil creado debe devolverse para permitir reintentos")
	}
}

func TestInvitarReenviaEnlaceAPendienteSinDuplicar(t *testing.T) {
	id := uuid.New()
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{
		id: {ID: id, Email: "invitada@ejemplo.com", NombreCompleto: "Invitada", Estado: EstadoPendiente},
	}}
	redisStub := &stubRedis{}
	mailerStub := &stubMailer{}
	svc := nuevoServicio(repo, redisStub, mailerStub)

	perfil, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "invitada@ejemplo.com",
		NombreCompleto: "Invitada",
		RolID:          uuid.New(),
	})
	if err != nil {
		t.Fatalf("reinvitar: %v", err)
	}
	if repo.creadoCon != nil {
		t.Fatal("reinvitar un perfil pendiente no debe crear otro perfil")
	}
	if perfil.ID != id {
		t.Fatalf("debe reutilizarse el perfil pendiente, se obtuvo %s", perfil.ID)
	}
	if len(mailerStub.enviados) != 1 || len(redisStub.store) != 1 {
		t.Fatalf("debe reemitirse el enlace: correos=%d tokens=%d", len(mailerStub.enviados), len(redisStub.store))
	}
}

func TestInvitarRechazaCorreoConPerfilActivo(t *testing.T) {
	id := uuid.New()
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{
		id: {ID: id, Email: "jp@ejemplo.com", Estado: EstadoActivo},
	}}
	svc := nuevoServicio(repo, &stubRedis{}, &stubMailer{})

	if _, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "jp@ejemplo.com",
		NombreCompleto: "Otra Persona",
		RolID:          uuid.New(),
	}); !errors.Is(err, ErrEmailEnUso) {
		t.Fatalf("se esperaba ErrEmailEnUso, fue %v", err)
	}
}

func TestInvitarRechazaDatosInvalidos(t *testing.T) {
	svc := nuevoServicio(&stubPerfilRepo{}, &stubRedis{}, &stubMailer{})

	if _, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "no-es-correo",
		NombreCompleto: "X",
		RolID:          uuid.New(),
	}); err == nil {
		t.Fatal("un correo inválido debe rechazarse")
	}

	if _, err := svc.Invitar(context.Background(), CrearPerfilInput{
		Email:          "jp@ejemplo.com",
		NombreCompleto: "Sin Rol",
	}); err == nil {
		t.Fatal("role_id vacío debe rechazarse")
	}
}

func TestCrearConCuentaUsaTransaccion(t *testing.T) {
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{}}
	svc := nuevoServicio(repo, &stubRedis{}, &stubMailer{})

	perfil, err := svc.CrearConCuenta(context.Background(), CrearConCuentaInput{
		Email:          "admin@ejemplo.com",
		Password:       "ClaveSegura123!",
		NombreCompleto: "Admin Inicial",
		RolID:          uuid.New(),
	})
	if err != nil {
		t.Fatalf("crear con cuenta: %v", err)
	}
	if !repo.credencial {
		t.Fatal("debe crearse perfil y credencial juntos")
	}
	if perfil.Estado != EstadoActivo {
		t.Fatalf("la cuenta con contraseña nace activa, se obtuvo %v", perfil.Estado)
	}

	if _, err := svc.CrearConCuenta(context.Background(), CrearConCuentaInput{
		Email:          "corta@ejemplo.com",
		Password:       "123",
		NombreCompleto: "Clave Corta",
		RolID:          uuid.New(),
	}); err == nil {
		t.Fatal("una contraseña débil debe rechazarse")
	}
}

func TestTransicionesDeEstado(t *testing.T) {
	id := uuid.New()
	repo := &stubPerfilRepo{perfiles: map[uuid.UUID]*Perfil{
		id: {ID: id, Email: "jp@ejemplo.com", Estado: EstadoActivo},
	}}
	svc := nuevoServicio(repo, &stubRedis{}, &stubMailer{})
	ctx := context.Background()

	if _, err := svc.BloquearUsuario(ctx, id); err != nil {
		t.Fatalf("bloquear: %v", err)
	}
	if repo.cambiadoA == nil || *repo.cambiadoA != EstadoBloqueado {
		t.Fatalf("se esperaba transición a BLOQUEADO, fue %v", repo.cambiadoA)
	}

	if _, err := svc.EliminarUsuario(ctx, id); err != nil {
		t.Fatalf("eliminar: %v", err)
	}
	if *repo.cambiadoA != EstadoEliminado {
		t.Fatalf("se esperaba transición a ELIMINADO, fue %v", *repo.cambiadoA)
	}

	if _, err := svc.ActivarUsuario(ctx, id); err != nil {
		t.Fatalf("activar: %v", err)
	}
	if *repo.cambiadoA != EstadoActivo {
		t.Fatalf("se esperaba transición a ACTIVO, fue %v", *repo.cambiadoA)
	}

	if _, err := svc.CambiarEstado(ctx, id, EstadoUsuario(9)); !errors.Is(err, ErrEstadoInvalido) {
		t.Fatalf("un estado fuera de dominio debe rechazarse, se obtuvo %v", err)
	}
}

func TestPuedeOperarSoloConEstadoActivo(t *testing.T) {
	repo := &stubPerfilRepo{estado: EstadoActivo}
	svc := nuevoServicio(repo, &stubRedis{}, &stubMailer{})

	ok, err := svc.PuedeOperar(context.Background(), uuid.New())
	if err != nil || !ok {
		t.Fatalf("un usuario ACTIVO debe poder operar: ok=%v err=%v", ok, err)
	}

	for _, e := range []EstadoUsuario{EstadoBloqueado, EstadoEliminado, EstadoPendiente} {
		repo.estado = e
		ok, err := svc.PuedeOperar(context.Background(), uuid.New())
		if err != nil || ok {
			t.Fatalf("el estado %d no debe poder operar: ok=%v err=%v", e, ok, err)
		}
	}
}
