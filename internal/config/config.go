package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultJWTSecret はJWT_SECRET未設定時の署名鍵。本番では必ず上書きする。
	DefaultJWTSecret = "secret"
	// DefaultSessionSecret はSESSION_SECRET未設定時のセッションCookie署名鍵。
	DefaultSessionSecret = "session-secret"

	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// dotEnvPath は起動時に読み込む.envファイルのパス。
var dotEnvPath = ".env"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Secrets
	JWTSecret     string
	SessionSecret string

	// Session
	SessionStore          string // postgres | redis
	RedisURL              string
	SessionMaxAge         int // 秒
	SessionRememberMaxAge int // 秒

	// Cookie
	TokenCookieMaxAge   int // 秒
	RefreshCookieMaxAge int // 秒
	CookieSecure        bool
	CookieDomain        string

	// Password
	BcryptCost int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitAuth    int
	RateLimitGeneral int

	// Worker
	CleanupInterval time.Duration

	// Server
	AppEnv     string
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// IsProduction は本番環境として起動しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 環境変数が.envの値より優先される。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionStore = strings.ToLower(getEnvString("SESSION_STORE", SessionStorePostgres))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.SessionStore != SessionStorePostgres && cfg.SessionStore != SessionStoreRedis {
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q: %q", SessionStorePostgres, SessionStoreRedis, cfg.SessionStore)
	}

	// Secrets with insecure defaults
	cfg.JWTSecret = getEnvString("JWT_SECRET", DefaultJWTSecret)
	if cfg.JWTSecret == DefaultJWTSecret {
		slog.Warn("JWT_SECRET is not set, using the insecure default")
	}
	cfg.SessionSecret = getEnvString("SESSION_SECRET", DefaultSessionSecret)
	if cfg.SessionSecret == DefaultSessionSecret {
		slog.Warn("SESSION_SECRET is not set, using the insecure default")
	}

	// Optional fields with defaults
	cfg.AppEnv = getEnvString("APP_ENV", getEnvString("NODE_ENV", "development"))
	cfg.ServerPort = getEnvString("PORT", getEnvString("SERVER_PORT", "8080"))
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionRememberMaxAge = getEnvInt("SESSION_REMEMBER_MAX_AGE", 2592000)
	cfg.TokenCookieMaxAge = getEnvInt("TOKEN_COOKIE_MAX_AGE", 3600)
	cfg.RefreshCookieMaxAge = getEnvInt("REFRESH_COOKIE_MAX_AGE", 3600)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitAuth = getEnvPositiveInt("RATE_LIMIT_AUTH", 10)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.CookieSecure = cfg.IsProduction()
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// CORSAllowedOrigins はカンマ区切りのCORS_ALLOWED_ORIGINを分割して返す。
func (c *Config) CORSAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// loadDotEnv はpathが存在する場合のみ読み込む。既存の環境変数は上書きしない。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt はgetEnvIntと同じだが、0以下の値は既定値に置き換える。
func getEnvPositiveInt(key string, defaultVal int) int {
	i := getEnvInt(key, defaultVal)
	if i <= 0 {
		slog.Warn("non-positive value ignored, using the default",
			slog.String("key", key),
			slog.Int("default", defaultVal),
		)
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
