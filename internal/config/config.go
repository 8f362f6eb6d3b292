package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Load when the resolved configuration cannot
// safely start the service.
var ErrInvalidConfig = errors.New("invalid config")

const minSecretLength = 32

type HTTPConfig struct {
	Host           string
	Port           int
	BasePath       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig points at the S3-compatible bucket used to archive purged
// blacklist entries. Archiving is off when Endpoint is empty.
type StorageConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	AuditBucket string
	UseSSL      bool
	Region      string
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

type SecurityConfig struct {
	JWTSecret         string
	JWTIssuer         string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	BcryptCost        int
	PasswordMinLength int
	PasswordMaxLength int
}

type BlacklistConfig struct {
	CachePrefix   string
	NegativeTTL   time.Duration
	PurgeSchedule string
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Blacklist        BlacklistConfig
	RateLimit        RateLimitConfig
	Events           EventsConfig
	Queue            QueueConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service must not boot with. There is no
// fallback signing secret: a missing one is fatal.
func (c *AppConfig) Validate() error {
	sec := c.Security
	switch {
	case strings.TrimSpace(sec.JWTSecret) == "":
		return fmt.Errorf("%w: security.jwtsecret is required", ErrInvalidConfig)
	case len(sec.JWTSecret) < minSecretLength:
		return fmt.Errorf("%w: security.jwtsecret must be at least %d bytes", ErrInvalidConfig, minSecretLength)
	case sec.AccessTTL <= 0 || sec.RefreshTTL <= 0:
		return fmt.Errorf("%w: token ttls must be positive", ErrInvalidConfig)
	case sec.AccessTTL >= sec.RefreshTTL:
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrInvalidConfig)
	case sec.BcryptCost < 12 || sec.BcryptCost > 31:
		return fmt.Errorf("%w: security.bcryptcost must be within [12, 31]", ErrInvalidConfig)
	case sec.PasswordMinLength <= 0 || sec.PasswordMaxLength < sec.PasswordMinLength:
		return fmt.Errorf("%w: invalid password length bounds", ErrInvalidConfig)
	case strings.TrimSpace(c.Postgres.DSN) == "":
		return fmt.Errorf("%w: postgres.dsn is required", ErrInvalidConfig)
	case c.HTTP.RequestTimeout <= 0:
		return fmt.Errorf("%w: http.requesttimeout must be positive", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.basepath", "")
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "5s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", false)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.auditbucket", "marketplace-auth-audit")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	// No default for the secret itself; registering the key lets env overrides reach Unmarshal.
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtissuer", "marketplace-auth")
	v.SetDefault("security.accessttl", "15m")
	v.SetDefault("security.refreshttl", "168h") // 7 days
	v.SetDefault("security.bcryptcost", 12)
	v.SetDefault("security.passwordminlength", 6)
	v.SetDefault("security.passwordmaxlength", 50)

	v.SetDefault("blacklist.cacheprefix", "auth:blacklist:")
	v.SetDefault("blacklist.negativettl", "30s")
	v.SetDefault("blacklist.purgeschedule", "0 0 * * * *") // hourly

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.capacity", 10)
	v.SetDefault("ratelimit.refilltokens", 1)
	v.SetDefault("ratelimit.refillinterval", "6s")

	v.SetDefault("events.amqpurl", "")
	v.SetDefault("events.exchange", "auth.events")

	v.SetDefault("queue.stream", "auth:maintenance")
	v.SetDefault("queue.group", "auth-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("allowcorsorigins", []string{})
}
