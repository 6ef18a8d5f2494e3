// Package config предоставляет функции для работы с конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Префикс переменных окружения: ASSISTANT_SECURITY_JWT_SECRET и т.д.
const envPrefix = "ASSISTANT"

// Допустимые хранилища сессий
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Допустимые AI провайдеры
const (
	AIOpenRouter = "openrouter"
	AIGemini     = "gemini"
)

// Config основная структура конфигурации приложения
type Config struct {
	Env      string         `mapstructure:"env"`
	Debug    bool           `mapstructure:"debug"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Security SecurityConfig `mapstructure:"security"`
	Portal   PortalConfig   `mapstructure:"portal"`
	AI       AIConfig       `mapstructure:"ai"`
}

// LogConfig конфигурация логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text или json; пусто - по окружению
}

// ServerConfig конфигурация HTTP и gRPC серверов
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"` // 0 - gRPC отключен
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       bool          `mapstructure:"rate_limit"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"` // IP или CIDR; X-Forwarded-For учитывается только от них
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN строка подключения для lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig конфигурация хранилища сессий
type SessionConfig struct {
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// SecurityConfig секреты подписи токенов и шифрования сессий
type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
	EncryptionKey string        `mapstructure:"encryption_key"`
}

// PortalConfig конфигурация доступа к Pronote
type PortalConfig struct {
	FixturePath string        `mapstructure:"fixture_path"`
	Attempts    int           `mapstructure:"attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// AIConfig конфигурация AI провайдера
type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Referer     string        `mapstructure:"referer"`
}

// defaults значения по умолчанию для всех ключей.
// Viper видит переменные окружения только для известных ключей,
// поэтому здесь перечислены все поля конфигурации.
var defaults = map[string]any{
	"env":   "development",
	"debug": false,

	"log.level":  "info",
	"log.format": "",

	"server.port":             8000,
	"server.grpc_port":        0,
	"server.allowed_origins":  []string{"http://localhost:3000", "http://localhost:8080"},
	"server.rate_limit":       true,
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    60 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,

	"database.host":     "localhost",
	"database.port":     5432,
	"database.user":     "postgres",
	"database.password": "",
	"database.dbname":   "pronote_assistant",
	"database.sslmode":  "disable",

	"redis.addr":     "localhost:6379",
	"redis.password": "",
	"redis.db":       0,

	"session.store": StoreRedis,
	"session.ttl":   24 * time.Hour,

	"security.jwt_secret":     "",
	"security.jwt_expiration": 24 * time.Hour,
	"security.encryption_key": "",

	"portal.fixture_path": "configs/portal_fixture.yaml",
	"portal.attempts":     3,
	"portal.backoff":      2 * time.Second,

	"ai.provider":    AIOpenRouter,
	"ai.api_key":     "",
	"ai.base_url":    "https://openrouter.ai/api/v1",
	"ai.model":       "deepseek/deepseek-r1:free",
	"ai.temperature": 0.7,
	"ai.max_tokens":  1000,
	"ai.timeout":     30 * time.Second,
	"ai.referer":     "http://localhost:8000",
}

// LoadConfig загружает конфигурацию из YAML файла, затем применяет
// переменные окружения ASSISTANT_*. Файл .env, если он есть, загружается
// в окружение до чтения. Пустой filename означает "только окружение".
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// IsProduction сообщает, запущено ли приложение в production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate проверяет согласованность конфигурации.
// Ошибки собираются все сразу, чтобы не исправлять их по одной.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Security.JWTSecret) < 32 {
		errs = append(errs, errors.New("security.jwt_secret must be at least 32 characters"))
	}
	if len(c.Security.EncryptionKey) < 32 {
		errs = append(errs, errors.New("security.encryption_key must be at least 32 characters"))
	}
	if c.IsProduction() && c.Debug {
		errs = append(errs, errors.New("debug must be disabled in production"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: invalid address %q", proxy))
		}
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}

	switch c.Session.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis session store"))
		}
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", c.Session.Store))
	}

	switch c.AI.Provider {
	case AIOpenRouter, AIGemini:
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("ai.api_key is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai.provider %q", c.AI.Provider))
	}

	if c.Portal.FixturePath == "" {
		errs = append(errs, errors.New("portal.fixture_path is required"))
	}
	if c.Portal.Attempts < 1 {
		errs = append(errs, errors.New("portal.attempts must be at least 1"))
	}

	return errors.Join(errs...)
}

// NewLogger создает slog логгер: JSON в production, текст иначе
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	if c.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	format := c.Log.Format
	if format == "" {
		format = "text"
		if c.IsProduction() {
			format = "json"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
