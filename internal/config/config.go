package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza la configuración cargada del entorno.
type Config struct {
	Port          int
	DBDSN         string
	RedisURL      string
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	MagicLinkTTL  time.Duration
	MagicLinkBase string
	AllowOrigins  []string
	RateLimit     RateLimitConfig
	RateLimitAuth RateLimitConfig
	SMTP          SMTPConfig
	SeedOnStart   bool
}

// RateLimitConfig representa límites simples de throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SMTPConfig agrupa credenciales del servidor de correo saliente.
// Si Host queda vacío el mailer se deshabilita y las invitaciones
// solo registran el enlace en el log.
type SMTPConfig struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

// Enabled indica si hay servidor SMTP configurado.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Sender != ""
}

// Load carga variables de entorno y aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválido")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obligatorio")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obligatorio")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET debe tener al menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	magicTTL, err := parseDurationEnv("MAGIC_LINK_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.MagicLinkTTL = magicTTL
	cfg.MagicLinkBase = strings.TrimSpace(getEnv("MAGIC_LINK_BASE", "http://localhost:5173/auth/activar"))

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	smtpPortStr := getEnv("SMTP_PORT", "587")
	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil || smtpPort <= 0 {
		return nil, errors.New("SMTP_PORT inválido")
	}
	cfg.SMTP = SMTPConfig{
		Host:     strings.TrimSpace(getEnv("SMTP_HOST", "")),
		Port:     smtpPort,
		Sender:   strings.TrimSpace(getEnv("SMTP_SENDER", "")),
		Password: getEnv("SMTP_PASSWORD", ""),
	}

	cfg.SeedOnStart = strings.EqualFold(getEnv("SEED_ON_START", "false"), "true")

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
