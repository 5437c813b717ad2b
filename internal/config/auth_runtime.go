package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = "8080"
	defaultLogLevel           = "info"
	defaultDatabaseURL        = "sessionauth.db"
	defaultAccessTokenTTL     = "15m"
	defaultRefreshTokenTTL    = "168h"
	defaultPasswordHashCost   = "10"
	defaultCookieSecure       = "false"
	defaultCookieSameSite     = "Strict"
	defaultCookiePath         = "/"
	defaultSweepInterval      = "1h"
	defaultSessionRetention   = "720h"
	defaultUploadsDir         = "./uploads"
	defaultUploadsURLBase     = "/static/uploads"
	defaultAvatarWorkers      = "2"
	defaultUploadsBackend     = "local"
	defaultCORSOrigins        = "http://localhost:3000,http://localhost:5173"
	defaultAccessTokenSecret  = "change-me-access-secret"
	defaultRefreshTokenSecret = "change-me-refresh-secret"

	minPasswordHashCost = 4
	maxPasswordHashCost = 14
)

// AuthRuntimeConfig is built once at startup and never mutated afterwards.
type AuthRuntimeConfig struct {
	AppEnv      string
	Port        string
	LogLevel    string
	DatabaseURL string

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration
	PasswordHashCost   int

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string
	CORSOrigins    []string

	SessionSweepInterval time.Duration
	SessionRetention     time.Duration

	UploadsDir     string
	UploadsURLBase string
	AvatarWorkers  int

	// UploadsBackend selects where finished avatars live: "local" or "minio".
	UploadsBackend string
	MinIO          MinIOConfig

	// InternalAPIToken guards operator endpoints; empty disables them.
	InternalAPIToken   string
	InternalAllowedIPs []string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// LoadEnvFiles reads .env.<APP_ENV> and then .env when they exist. Variables already present
// in the process environment are never overwritten.
func LoadEnvFiles() error {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "development"
	}
	for _, name := range []string{".env." + appEnv, ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	cfg := &AuthRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "development"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.AccessTokenSecret = strings.TrimSpace(getEnv("ACCESS_TOKEN_SECRET", defaultAccessTokenSecret))
	cfg.RefreshTokenSecret = strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET", defaultRefreshTokenSecret))

	var err error
	cfg.AccessTokenTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
	if err != nil {
		return nil, err
	}

	cfg.RefreshTokenTTL, err = parseDurationEnv("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	cfg.PasswordHashCost, err = parseIntEnv("PASSWORD_HASH_COST", defaultPasswordHashCost)
	if err != nil {
		return nil, err
	}

	cfg.SessionSweepInterval, err = parseDurationEnv("SESSION_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	cfg.SessionRetention, err = parseDurationEnv("SESSION_RETENTION", defaultSessionRetention)
	if err != nil {
		return nil, err
	}

	cfg.AvatarWorkers, err = parseIntEnv("AVATAR_WORKERS", defaultAvatarWorkers)
	if err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.CORSOrigins = splitCSV(getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins))
	cfg.UploadsDir = strings.TrimSpace(getEnv("UPLOADS_DIR", defaultUploadsDir))
	cfg.UploadsURLBase = strings.TrimRight(strings.TrimSpace(getEnv("UPLOADS_URL_BASE", defaultUploadsURLBase)), "/")
	cfg.UploadsBackend = strings.ToLower(strings.TrimSpace(getEnv("UPLOADS_BACKEND", defaultUploadsBackend)))
	cfg.MinIO = MinIOConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
		AccessKey: strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
		Bucket:    strings.TrimSpace(os.Getenv("MINIO_BUCKET")),
		Region:    strings.TrimSpace(os.Getenv("MINIO_REGION")),
		UseSSL:    parseBoolEnv("MINIO_USE_SSL", "false"),
		PublicURL: strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL")),
	}
	cfg.InternalAPIToken = strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN"))
	cfg.InternalAllowedIPs = splitCSV(os.Getenv("INTERNAL_ALLOWED_IPS"))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AuthRuntimeConfig) IsProduction() bool { return isProdLike(c.AppEnv) }

// IsDevelopment gates echoing internal error causes back to clients.
func (c *AuthRuntimeConfig) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

func (c *AuthRuntimeConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(strings.TrimSpace(c.CookieSameSite)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func validateConfig(cfg *AuthRuntimeConfig) error {
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be > 0")
	}
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if cfg.PasswordHashCost < minPasswordHashCost || cfg.PasswordHashCost > maxPasswordHashCost {
		return fmt.Errorf("PASSWORD_HASH_COST must be in [%d, %d]", minPasswordHashCost, maxPasswordHashCost)
	}
	if cfg.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if cfg.SessionRetention < 0 {
		return fmt.Errorf("SESSION_RETENTION must be >= 0")
	}
	if cfg.AvatarWorkers < 1 {
		return fmt.Errorf("AVATAR_WORKERS must be >= 1")
	}
	switch cfg.UploadsBackend {
	case "local":
	case "minio":
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" || m.PublicURL == "" {
			return errors.New("UPLOADS_BACKEND=minio requires MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET and MINIO_PUBLIC_URL")
		}
	default:
		return fmt.Errorf("UPLOADS_BACKEND must be one of: local, minio")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	if cfg.CookieSameSite == "" {
		return fmt.Errorf("COOKIE_SAMESITE must not be empty")
	}
	sameSite := strings.ToLower(strings.TrimSpace(cfg.CookieSameSite))
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.AccessTokenSecret, defaultAccessTokenSecret) {
			return fmt.Errorf("in prod/release ACCESS_TOKEN_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenSecret, defaultRefreshTokenSecret) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_SECRET must be set and not default")
		}
		if cfg.PasswordHashCost < 10 {
			return fmt.Errorf("in prod/release PASSWORD_HASH_COST must be >= 10")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
