package config // package config loads application configuration from environment variables

import (
    "fmt"
    "log"
    "strings"

    "github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; nested structs group the optional subsystems.
type Config struct {
    Env            string `env:"APP_ENV" envDefault:"dev"`
    Port           string `env:"APP_PORT" envDefault:"8080"`
    StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"mysql"` // mysql | memory
    DBUser         string `env:"DB_USER"`
    DBPass         string `env:"DB_PASS"`
    DBHost         string `env:"DB_HOST"`
    DBPort         string `env:"DB_PORT" envDefault:"3306"`
    DBName         string `env:"DB_NAME"`
    AutoMigrate    bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
    JWTSecret      string `env:"JWT_SECRET,required,notEmpty"`
    AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15"`
    RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`
    BcryptCost     int    `env:"BCRYPT_COST" envDefault:"10"`
    AMQPURL        string `env:"RABBITMQ_URL"`
    UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
    MediaURL       string `env:"MEDIA_BASE_URL" envDefault:"/media"`
    MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
    OTelEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
    ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"mano-pro"`

    Redis     RedisConfig
    RateLimit RateLimitConfig
    Cache     CacheConfig
}

// Parse reads the environment into a Config and checks the combinations
// env tags cannot express.
func Parse() (Config, error) {
    var cfg Config
    if err := env.Parse(&cfg); err != nil {
        return Config{}, fmt.Errorf("parse env: %w", err)
    }
    cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
    switch cfg.StorageDriver {
    case "mysql":
        for key, v := range map[string]string{"DB_USER": cfg.DBUser, "DB_HOST": cfg.DBHost, "DB_NAME": cfg.DBName} {
            if v == "" {
                return Config{}, fmt.Errorf("missing required env var: %s", key)
            }
        }
    case "memory":
    default:
        return Config{}, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
    }
    if cfg.AccessTTLMin <= 0 || cfg.RefreshTTLDays <= 0 {
        return Config{}, fmt.Errorf("token TTLs must be positive")
    }
    cfg.RateLimit.normalize()
    cfg.Cache.normalize()
    return cfg, nil
}

// Load is Parse for main: configuration errors halt the process.
func Load() Config {
    cfg, err := Parse()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    return cfg
}
