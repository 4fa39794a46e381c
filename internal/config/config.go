package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional YAML
// file and are overridden by environment variables (a .env file is loaded first).
type Config struct {
	HTTPAddr string      `yaml:"http_addr"`
	DB       DBConfig    `yaml:"db"`
	Redis    RedisConfig `yaml:"redis"`
	Auth     AuthConfig  `yaml:"auth"`
	Log      LogConfig   `yaml:"log"`
	CORS     CORSConfig  `yaml:"cors"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
	// Driver is "pgx" (default) or "postgres" for lib/pq.
	Driver string `yaml:"driver"`
}

// DSN builds the key/value connection string understood by both drivers.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

type RedisConfig struct {
	// Addr empty disables the registry cache.
	Addr string        `yaml:"addr"`
	DB   int           `yaml:"db"`
	TTL  time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Stdout bool   `yaml:"stdout"`
}

type CORSConfig struct {
	// AllowedOrigins are exact browser origins; "*" admits any.
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxAge         time.Duration `yaml:"max_age"`
}

// Defaults mirrors the values the service runs with when nothing is configured.
func Defaults() Config {
	return Config{
		HTTPAddr: "0.0.0.0:8080",
		DB: DBConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "password",
			Name:     "tracker",
			SSLMode:  "disable",
			TimeZone: "UTC",
			Driver:   "pgx",
		},
		Redis: RedisConfig{TTL: 24 * time.Hour},
		Auth: AuthConfig{
			JWTSecret: "supersecret",
			AdminUser: "admin",
		},
		Log: LogConfig{
			File:  "./logs/app.log",
			Level: "info",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxAge:         10 * time.Minute,
		},
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_FILE
// is consulted; a missing YAML file is only an error when explicitly named.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DB.Driver != "pgx" && cfg.DB.Driver != "postgres" {
		return Config{}, fmt.Errorf("db.driver must be pgx or postgres, got %q", cfg.DB.Driver)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)

	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.TimeZone = getEnv("DB_TIMEZONE", cfg.DB.TimeZone)
	cfg.DB.Driver = getEnv("DB_DRIVER", cfg.DB.Driver)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if v, ok := os.LookupEnv("REDIS_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REDIS_TTL: %w", err)
		}
		cfg.Redis.TTL = d
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AdminUser = getEnv("ADMIN_USER", cfg.Auth.AdminUser)
	cfg.Auth.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", cfg.Auth.AdminPasswordHash)

	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if v, ok := os.LookupEnv("LOG_STDOUT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_STDOUT: %w", err)
		}
		cfg.Log.Stdout = b
	}

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("CORS_MAX_AGE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CORS_MAX_AGE: %w", err)
		}
		cfg.CORS.MaxAge = d
	}
	return nil
}

// splitList reads a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}
