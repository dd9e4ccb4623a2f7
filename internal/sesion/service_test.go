package sesion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jpeduti/gestiondehoras/internal/auth"
	"github.com/jpeduti/gestiondehoras/internal/rol"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

type stubCreds struct {
	creds map[string]*auth.Credencial
}

func (s *stubCreds) GetByEmail(ctx context.Context, email string) (*auth.Credencial, error) {
	if c, ok := s.creds[strings.ToLower(email)]; ok {
		return c, nil
	}
	return nil, auth.ErrCredencialNotFound
}

type stubPerfiles struct {
	perfiles  map[uuid.UUID]*usuario.Perfil
	invitados map[string]*usuario.Perfil
	activados []string
}

func (s *stubPerfiles) GetByID(ctx context.Context, id uuid.UUID) (*usuario.Perfil, error) {
	if p, ok := s.perfiles[id]; ok {
		return p, nil
	}
	return nil, usuario.ErrNotFound
}

func (s *stubPerfiles) ActivarInvitado(ctx context.Context, email string) (*usuario.Perfil, error) {
	p, ok := s.invitados[strings.ToLower(email)]
	if !ok {
		return nil, usuario.ErrNotFound
	}
	s.activados = append(s.activados, email)
	p.Estado = usuario.EstadoActivo
	if s.perfiles == nil {
		s.perfiles = make(map[uuid.UUID]*usuario.Perfil)
	}
	s.perfiles[p.ID] = p
	return p, nil
}

type stubRedis struct {
	store      map[string]string
	publicados []string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	switch v := value.(type) {
	case string:
		s.store[key] = v
	case []byte:
		s.store[key] = string(v)
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func (s *stubRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if b, ok := message.([]byte); ok {
		s.publicados = append(s.publicados, string(b))
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func perfilActivo(id uuid.UUID, email string) *usuario.Perfil {
	return &usuario.Perfil{
		ID:             id,
		Email:          email,
		NombreCompleto: "JP de Prueba",
		Estado:         usuario.EstadoActivo,
		Rol:            &rol.Rol{ID: uuid.New(), Nombre: "jp"},
	}
}

func nuevoServicio(creds *stubCreds, perfiles *stubPerfiles, r *stubRedis) *Service {
	return &Service{
		creds:      creds,
		perfiles:   perfiles,
		redis:      r,
		jwt:        auth.NewJWTManager(strings.Repeat("s", 32), time.Minute),
		refreshTTL: time.Hour,
	}
}

func TestIniciarSesion(t *testing.T) {
	password := "ClaveSegura123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	id := uuid.New()
	creds := &stubCreds{creds: map[string]*auth.Credencial{
		"jp@ejemplo.com": {ID: id, Email: "jp@ejemplo.com", PasswordHash: &hash},
	}}
	perfiles := &stubPerfiles{perfiles: map[uuid.UUID]*usuario.Perfil{
		id: perfilActivo(id, "jp@ejemplo.com"),
	}}
	redisStub := &stubRedis{}
	svc := nuevoServicio(creds, perfiles, redisStub)

	result, err := svc.IniciarSesion(context.Background(), "jp@ejemplo.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("el login debe emitir access y refresh")
	}
	if result.Perfil == nil || result.Perfil.ID != id {
		t.Fatalf("perfil inesperado: %+v", result.Perfil)
	}

	ses, err := svc.SesionActual(context.Background(), result.AccessToken)
	if err != nil || ses == nil {
		t.Fatalf("la sesión emitida debe ser válida: ses=%v err=%v", ses, err)
	}
	if ses.Subject != id || len(ses.Roles) != 1 || ses.Roles[0] != "jp" {
		t.Fatalf("claims inesperados: %+v", ses)
	}

	if len(redisStub.publicados) != 1 || !strings.Contains(redisStub.publicados[0], EventoSignedIn) {
		t.Fatalf("debe publicarse SIGNED_IN, se publicó %v", redisStub.publicados)
	}
}

func TestIniciarSesionRechazos(t *testing.T) {
	password := "ClaveSegura123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	id := uuid.New()
	soloMagico := uuid.New()
	bloqueado := uuid.New()

	creds := &stubCreds{creds: map[string]*auth.Credencial{
		"jp@ejemplo.com":        {ID: id, Email: "jp@ejemplo.com", PasswordHash: &hash},
		"magico@ejemplo.com":    {ID: soloMagico, Email: "magico@ejemplo.com"},
		"bloqueado@ejemplo.com": {ID: bloqueado, Email: "bloqueado@ejemplo.com", PasswordHash: &hash},
	}}

	perfilBloqueado := perfilActivo(bloqueado, "bloqueado@ejemplo.com")
	perfilBloqueado.Estado = usuario.EstadoBloqueado
	perfiles := &stubPerfiles{perfiles: map[uuid.UUID]*usuario.Perfil{
		id:        perfilActivo(id, "jp@ejemplo.com"),
		bloqueado: perfilBloqueado,
	}}
	svc := nuevoServicio(creds, perfiles, &stubRedis{})
	ctx := context.Background()

	if _, err := svc.IniciarSesion(ctx, "nadie@ejemplo.com", password); !errors.Is(err, ErrCredencialesInvalidas) {
		t.Fatalf("correo desconocido: se esperaba ErrCredencialesInvalidas, fue %v", err)
	}
	if _, err := svc.IniciarSesion(ctx, "jp@ejemplo.com", "otra-clave"); !errors.Is(err, ErrCredencialesInvalidas) {
		t.Fatalf("contraseña errónea: se esperaba ErrCredencialesInvalidas, fue %v", err)
	}
	if _, err := svc.IniciarSesion(ctx, "magico@ejemplo.com", password); !errors.Is(err, ErrCredencialesInvalidas) {
		t.Fatalf("cuenta solo con enlace: se esperaba ErrCredencialesInvalidas, fue %v", err)
	}
	if _, err := svc.IniciarSesion(ctx, "bloqueado@ejemplo.com", password); !errors.Is(err, ErrCuentaDeshabilitada) {
		t.Fatalf("cuenta bloqueada: se esperaba ErrCuentaDeshabilitada, fue %v", err)
	}
}

func TestActivarConEnlaceEsDeUnSoloUso(t *testing.T) {
	invitado := perfilActivo(uuid.New(), "invitada@ejemplo.com")
	invitado.Estado = usuario.EstadoPendiente
	perfiles := &stubPerfiles{invitados: map[string]*usuario.Perfil{
		"invitada@ejemplo.com": invitado,
	}}
	redisStub := &stubRedis{}
	svc := nuevoServicio(&stubCreds{}, perfiles, redisStub)
	ctx := context.Background()

	raw, hash, err := auth.GenerateMagicToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	redisStub.Set(ctx, auth.MagicRedisKey(hash), "invitada@ejemplo.com", time.Hour)

	result, err := svc.ActivarConEnlace(ctx, raw)
	if err != nil {
		t.Fatalf("activar: %v", err)
	}
	if result.Perfil == nil || !result.Perfil.Estado.EsActivo() {
		t.Fatalf("el perfil debe quedar activo: %+v", result.Perfil)
	}
	if len(perfiles.activados) != 1 {
		t.Fatal("la activación debe pasar por el repositorio")
	}

	if _, err := svc.ActivarConEnlace(ctx, raw); !errors.Is(err, ErrEnlaceInvalido) {
		t.Fatalf("el enlace consumido debe rechazarse, fue %v", err)
	}
}

func TestActivarConEnlaceInvalido(t *testing.T) {
	svc := nuevoServicio(&stubCreds{}, &stubPerfiles{}, &stubRedis{})

	if _, err := svc.ActivarConEnlace(context.Background(), "token-desconocido"); !errors.Is(err, ErrEnlaceInvalido) {
		t.Fatalf("se esperaba ErrEnlaceInvalido, fue %v", err)
	}
}

func TestRefrescarRotaElToken(t *testing.T) {
	password := "ClaveSegura123!"
	hash, _ := auth.Hash(password)

	id := uuid.New()
	creds := &stubCreds{creds: map[string]*auth.Credencial{
		"jp@ejemplo.com": {ID: id, Email: "jp@ejemplo.com", PasswordHash: &hash},
	}}
	perfiles := &stubPerfiles{perfiles: map[uuid.UUID]*usuario.Perfil{
		id: perfilActivo(id, "jp@ejemplo.com"),
	}}
	svc := nuevoServicio(creds, perfiles, &stubRedis{})
	ctx := context.Background()

	login, err := svc.IniciarSesion(ctx, "jp@ejemplo.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	renovado, err := svc.Refrescar(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refrescar: %v", err)
	}
	if renovado.RefreshToken == login.RefreshToken {
		t.Fatal("el refresh debe rotarse en cada uso")
	}

	if _, err := svc.Refrescar(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalido) {
		t.Fatalf("el refresh anterior debe quedar revocado, fue %v", err)
	}
}

func TestCerrarSesionRevocaYNotifica(t *testing.T) {
	password := "ClaveSegura123!"
	hash, _ := auth.Hash(password)

	id := uuid.New()
	creds := &stubCreds{creds: map[string]*auth.Credencial{
		"jp@ejemplo.com": {ID: id, Email: "jp@ejemplo.com", PasswordHash: &hash},
	}}
	perfiles := &stubPerfiles{perfiles: map[uuid.UUID]*usuario.Perfil{
		id: perfilActivo(id, "jp@ejemplo.com"),
	}}
	redisStub := &stubRedis{}
	svc := nuevoServicio(creds, perfiles, redisStub)
	ctx := context.Background()

	login, err := svc.IniciarSesion(ctx, "jp@ejemplo.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.CerrarSesion(ctx, login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refrescar(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshInvalido) {
		t.Fatalf("tras el logout el refresh debe ser inválido, fue %v", err)
	}

	ultimo := redisStub.publicados[len(redisStub.publicados)-1]
	if !strings.Contains(ultimo, EventoSignedOut) {
		t.Fatalf("debe publicarse SIGNED_OUT, el último evento fue %s", ultimo)
	}
}

func TestSesionActualConTokenInvalido(t *testing.T) {
	svc := nuevoServicio(&stubCreds{}, &stubPerfiles{}, &stubRedis{})

	ses, err := svc.SesionActual(context.Background(), "token-basura")
	if err != nil || ses != nil {
		t.Fatalf("un token inválido produce sesión nil sin error: ses=%v err=%v", ses, err)
	}

	ses, err = svc.SesionActual(context.Background(), "")
	if err != nil || ses != nil {
		t.Fatalf("sin token no hay sesión: ses=%v err=%v", ses, err)
	}
}
