package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Breaker struct {
	MaxFailures uint32        `yaml:"max_failures" env:"API_BREAKER_MAX_FAILURES" env-default:"5"`
	OpenTimeout time.Duration `yaml:"open_timeout" env:"API_BREAKER_OPEN_TIMEOUT" env-default:"30s"`
}

type API struct {
	BaseURL        string        `yaml:"base_url"        env:"API_BASE_URL"        env-default:"http://localhost:5000"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"API_REQUEST_TIMEOUT" env-default:"10s"`
	Breaker        Breaker       `yaml:"breaker"`
}

type Session struct {
	Driver    string `yaml:"driver"     env:"SESSION_DRIVER"     env-default:"memory"`
	KeyPrefix string `yaml:"key_prefix" env:"SESSION_KEY_PREFIX" env-default:"exora"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST"     env:"REDIS_HOST"     env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT"     env:"REDIS_PORT"     env-default:"6379"`
	Username string `yaml:"REDIS_USER"     env:"REDIS_USER"`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"REDIS_DB"       env:"REDIS_DB"       env-default:"0"`
}

type Cart struct {
	Concurrency  string `yaml:"concurrency"   env:"CART_CONCURRENCY"   env-default:"reject"`
	LoginPath    string `yaml:"login_path"    env:"CART_LOGIN_PATH"    env-default:"/login"`
	CheckoutPath string `yaml:"checkout_path" env:"CART_CHECKOUT_PATH" env-default:"/checkout"`
}

type OTel struct {
	Enabled          bool    `yaml:"ENABLED"           env:"OTEL_ENABLED"           env-default:"false"`
	ServiceName      string  `yaml:"SERVICE_NAME"      env:"OTEL_SERVICE_NAME"      env-default:"exora-cart"`
	ExporterEndpoint string  `yaml:"EXPORTER_ENDPOINT" env:"OTEL_EXPORTER_ENDPOINT" env-default:"http://localhost:4318/v1/traces"`
	SamplerRatio     float64 `yaml:"SAMPLER_RATIO"     env:"OTEL_SAMPLER_RATIO"     env-default:"1.0"`
}

type Stub struct {
	Addr     string        `yaml:"address"   env:"STUB_ADDRESS"   env-default:":5000"`
	JWTKey   string        `yaml:"jwt_key"   env:"STUB_JWT_KEY"   env-default:"exora-dev-secret"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"STUB_TOKEN_TTL" env-default:"24h"`
}

type Config struct {
	Env          string       `yaml:"env" env:"ENV" env-default:"local"`
	API          API          `yaml:"api"`
	Session      Session      `yaml:"session"`
	RedisConnect RedisConnect `yaml:"redis"`
	Cart         Cart         `yaml:"cart"`
	OTel         OTel         `yaml:"otel"`
	Stub         Stub         `yaml:"stub"`
}

const (
	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"

	ConcurrencyReject = "reject"
	ConcurrencyQueue  = "queue"
)

func MustLoad() *Config {

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {

		flags := flag.String("config", "", "gets the config flag value")

		flag.Parse()

		configPath = *flags

	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("can not read config: %s", err.Error())
	}

	return cfg
}

// Load reads the YAML file at path with env overrides. An empty path reads
// the environment only.
func Load(path string) (*Config, error) {

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}

		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Session.Driver {
	case SessionDriverMemory, SessionDriverRedis:
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}

	switch c.Cart.Concurrency {
	case ConcurrencyReject, ConcurrencyQueue:
	default:
		return fmt.Errorf("unknown cart concurrency policy %q", c.Cart.Concurrency)
	}

	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api request_timeout must be positive, got %s", c.API.RequestTimeout)
	}

	return nil
}

func (r *RedisConnect) GetDSN() string {
	if r.Username == "" && r.Password == "" {
		return fmt.Sprintf("redis://%s:%s/%d", r.Host, r.Port, r.DB)
	}

	return fmt.Sprintf("redis://%s:%s@%s:%s/%d", r.Username, r.Password, r.Host, r.Port, r.DB)
}
