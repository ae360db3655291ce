package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         int           `validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"min=0"`
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

// UpstreamConfig points at the account REST API the portal fronts.
type UpstreamConfig struct {
	BaseURL        string        `validate:"required,url"`
	Timeout        time.Duration `validate:"gt=0"`
	HealthPath     string
	HealthSchedule string `validate:"required"`
}

type SessionConfig struct {
	CookieName string        `validate:"required"`
	Secret     string        `validate:"required,min=16"`
	TTL        time.Duration `validate:"gt=0"`
	KeyPrefix  string        `validate:"required"`
	Driver     string        `validate:"oneof=redis memory"`
	LockTTL    time.Duration `validate:"gt=0"`
}

type AuditConfig struct {
	Enabled       bool
	Stream        string `validate:"required"`
	Group         string `validate:"required"`
	Consumer      string `validate:"required"`
	MaxLen        int64  `validate:"min=0"`
	ClaimInterval time.Duration
	TrimSchedule  string
}

type LoggingConfig struct {
	Level string `validate:"omitempty,oneof=debug info warn error"`
}

type AppConfig struct {
	Environment string `validate:"required"`
	HTTP        HTTPConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	Upstream    UpstreamConfig
	Session     SessionConfig
	Audit       AuditConfig
	Logging     LoggingConfig
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ACCOUNTDESK")
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

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the decoded configuration against its struct tags.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("upstream.baseurl", "http://127.0.0.1:8000/api")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.healthpath", "/auth/login/")
	v.SetDefault("upstream.healthschedule", "*/30 * * * * *")

	v.SetDefault("session.cookiename", "accountdesk_sid")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "24h") // upstream refresh token lifetime
	v.SetDefault("session.keyprefix", "accountdesk")
	v.SetDefault("session.driver", StorageDriverRedis)
	v.SetDefault("session.lockttl", "15s")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.stream", "accountdesk:audit")
	v.SetDefault("audit.group", "auditors")
	v.SetDefault("audit.consumer", "auditor-1")
	v.SetDefault("audit.maxlen", 100000)
	v.SetDefault("audit.claiminterval", "30s")
	v.SetDefault("audit.trimschedule", "0 0 3 * * *")

	v.SetDefault("logging.level", "")
}
