// Package config 提供应用配置加载功能。
// 配置来源为环境变量，开发环境可通过 .env 文件注入（godotenv）。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	App struct {
		Name            string
		Version         string
		Env             string // dev/test/prod
		Port            int
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
	}

	Log struct {
		Level    string // debug/info/warn/error
		Encoding string // json/console
	}

	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Cache struct {
		Enabled bool
		Type    string // redis/memory
		TTL     time.Duration
	}

	JWT struct {
		Secret          string
		AccessTokenTTL  time.Duration
		RefreshTokenTTL time.Duration
	}

	CORS struct {
		AllowedOrigins []string
		AllowedMethods []string
		AllowedHeaders []string
	}

	RateLimit struct {
		Enabled     bool
		LoginRate   int64         // 登录窗口内允许的请求数
		LoginWindow time.Duration // 登录限流窗口
	}

	Upload struct {
		Dir     string // 上传文件存储目录
		BaseURL string // 下载引用的URL前缀
		MaxSize int64  // 单文件上限（字节）
	}

	Migrations struct {
		Dir string
	}
}

// Load 从环境变量加载配置
// .env 文件不存在时静默忽略，线上环境直接依赖进程环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Name = getEnv("APP_NAME", "flowhub")
	cfg.App.Version = getEnv("APP_VERSION", "0.1.0")
	cfg.App.Env = getEnv("APP_ENV", "dev")
	cfg.App.Port = getEnvInt("APP_PORT", 8080)
	cfg.App.RequestTimeout = getEnvDuration("APP_REQUEST_TIMEOUT", 10*time.Second)
	cfg.App.ShutdownTimeout = getEnvDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Encoding = getEnv("LOG_ENCODING", "json")

	cfg.Database.Host = getEnv("DB_HOST", "127.0.0.1")
	cfg.Database.Port = getEnvInt("DB_PORT", 3306)
	cfg.Database.User = getEnv("DB_USER", "root")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.DBName = getEnv("DB_NAME", "flowhub")

	cfg.Redis.Host = getEnv("REDIS_HOST", "127.0.0.1")
	cfg.Redis.Port = getEnvInt("REDIS_PORT", 6379)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.Type = getEnv("CACHE_TYPE", "memory")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)

	cfg.JWT.Secret = getEnv("JWT_SECRET", "")
	cfg.JWT.AccessTokenTTL = getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute)
	cfg.JWT.RefreshTokenTTL = getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour)

	cfg.CORS.AllowedOrigins = getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"})
	cfg.CORS.AllowedMethods = getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	cfg.CORS.AllowedHeaders = getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID"})

	cfg.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", false)
	cfg.RateLimit.LoginRate = int64(getEnvInt("RATE_LIMIT_LOGIN_RATE", 10))
	cfg.RateLimit.LoginWindow = getEnvDuration("RATE_LIMIT_LOGIN_WINDOW", time.Minute)

	cfg.Upload.Dir = getEnv("UPLOAD_DIR", "./uploads")
	cfg.Upload.BaseURL = getEnv("UPLOAD_BASE_URL", "/uploads")
	cfg.Upload.MaxSize = int64(getEnvInt("UPLOAD_MAX_SIZE", 32<<20))

	cfg.Migrations.Dir = getEnv("MIGRATIONS_DIR", "./migrations")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验关键配置项
func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port: %d", c.App.Port)
	}
	if c.JWT.Secret == "" {
		// 开发环境允许使用默认密钥，生产环境必须显式配置
		if c.App.Env == "prod" {
			return fmt.Errorf("JWT_SECRET is required in prod")
		}
		c.JWT.Secret = "dev-insecure-secret"
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
