package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Routes    RoutesConfig    `yaml:"routes"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConf       `yaml:"redis"`
	Upstreams UpstreamsConfig `yaml:"upstreams"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host" env:"HTTP_HOST"`
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"30s"`
	CookieSecret string        `yaml:"cookie_secret" env:"COOKIE_SECRET" env-required:"true"`
}

type AuthConfig struct {
	BaseURL string        `yaml:"base_url" env:"AUTH_BASE_URL" env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type SessionConfig struct {
	IdentityTTL        time.Duration `yaml:"identity_ttl" env-default:"5m"`
	ValidateCooldown   time.Duration `yaml:"validate_cooldown" env-default:"30s"`
	ValidateOnNavigate bool          `yaml:"validate_on_navigate" env-default:"false"`
	RefreshThreshold   time.Duration `yaml:"refresh_threshold" env-default:"1m"`
	RefreshInterval    time.Duration `yaml:"refresh_interval" env-default:"15s"`
}

type RoutesConfig struct {
	Login             string `yaml:"login" env-default:"/login"`
	Unauthorized      string `yaml:"unauthorized" env-default:"/unauthorized"`
	ProfileSetup      string `yaml:"profile_setup" env-default:"/profile-setup"`
	Dashboard         string `yaml:"dashboard" env-default:"/dashboard"`
	OAuthCallback     string `yaml:"oauth_callback" env-default:"/oauth-callback"`
	DefaultAfterOAuth string `yaml:"default_after_oauth" env-default:"/plan-dashboard"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace" env-default:"gymweb"`
}

type RedisConf struct {
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"`

	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	PoolSize    int           `yaml:"pool_size" env-default:"10"`
}

type UpstreamsConfig struct {
	UserService string `yaml:"user_service" env:"USER_SERVICE_URL" env-default:"http://localhost:8081"`
	PlanService string `yaml:"plan_service" env:"PLAN_SERVICE_URL" env-default:"http://localhost:8082"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	if cfg.Storage.Driver != StorageMemory && cfg.Storage.Driver != StorageRedis {
		panic("unknown storage driver: " + cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == StorageRedis && cfg.Redis.RedisAddr == "" {
		panic("redis storage requires redis.redis_addr")
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
