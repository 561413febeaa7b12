// config - источник загрузки конфигурации клиента сессии (CLI и локальный шлюз).
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	API        APIConfig        `yaml:"api"`
	Store      StoreConfig      `yaml:"store"`
	Navigation NavigationConfig `yaml:"navigation"`
	HTTP       HTTPConfig       `yaml:"http"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// APIConfig — адрес и пути бэкенда.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"      env:"API_BASE_URL"      env-default:"http://localhost:8000"`
	RefreshPath  string `yaml:"refresh_path"  env:"API_REFRESH_PATH"  env-default:"/api/v1/auth/refresh"`
	LoginPath    string `yaml:"login_path"    env:"API_LOGIN_PATH"    env-default:"/api/v1/auth/login"`
	RegisterPath string `yaml:"register_path" env:"API_REGISTER_PATH" env-default:"/api/v1/auth/register"`
	MePath       string `yaml:"me_path"       env:"API_ME_PATH"       env-default:"/api/v1/auth/me"`
	UserAgent    string `yaml:"user_agent"    env:"API_USER_AGENT"    env-default:"sessionctl"`
}

// Драйверы хранилища сессии.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// StoreConfig — где живёт пара токенов.
type StoreConfig struct {
	Driver      string `yaml:"driver"       env:"STORE_DRIVER"       env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path"  env:"STORE_SQLITE_PATH"  env-default:".sessionctl/session.db"`
	RedisURL    string `yaml:"redis_url"    env:"STORE_REDIS_URL"`
	PostgresURL string `yaml:"postgres_url" env:"STORE_POSTGRES_URL"`
	Namespace   string `yaml:"namespace"    env:"STORE_NAMESPACE"    env-default:"default"`
}

// NavigationConfig — куда отправлять после завершения сессии.
type NavigationConfig struct {
	LoginLocation   string   `yaml:"login_location"   env:"NAV_LOGIN_LOCATION"   env-default:"/login"`
	PublicLocations []string `yaml:"public_locations" env:"NAV_PUBLIC_LOCATIONS" env-separator:","`
}

// HTTPConfig — локальный шлюз (sessionctl serve).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// TimeoutConfig — таймауты исходящих запросов и обработки на шлюзе.
type TimeoutConfig struct {
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"10s"`
	Service time.Duration `yaml:"service" env:"SERVICE"         env-default:"15s"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validate(&cfg)
}

func validate(cfg *Config) (*Config, error) {
	switch cfg.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if cfg.Store.RedisURL == "" {
			return nil, fmt.Errorf("store.redis_url is required for driver %q", cfg.Store.Driver)
		}
	case DriverPostgres:
		if cfg.Store.PostgresURL == "" {
			return nil, fmt.Errorf("store.postgres_url is required for driver %q", cfg.Store.Driver)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}

	return cfg, nil
}
