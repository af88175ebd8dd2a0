// Package config loads service settings from defaults, an optional YAML file,
// REVTRACK_* environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/msomdec/revtrack/internal/service"
)

// EnvPrefix is the prefix of environment variables read by Load. Nested keys
// are separated by a double underscore, e.g. REVTRACK_AUTH__JWT_SECRET.
const EnvPrefix = "REVTRACK_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Revision RevisionConfig `koanf:"revision"`
	Reminder ReminderConfig `koanf:"reminder"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite pgx"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret" validate:"required,min=32"`
	BcryptCost int           `koanf:"bcrypt_cost" validate:"min=4,max=14"`
	TokenTTL   time.Duration `koanf:"token_ttl" validate:"gt=0"`
	// RateLimit is the sustained number of auth requests per second per
	// client, RateBurst the number allowed at once.
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`
	RateBurst float64 `koanf:"rate_burst" validate:"gte=1"`
}

type RevisionConfig struct {
	Intervals            []int `koanf:"intervals" validate:"min=1,dive,gt=0"`
	AllowDueDateOverride bool  `koanf:"allow_due_date_override"`
}

type ReminderConfig struct {
	Enabled    bool   `koanf:"enabled"`
	At         string `koanf:"at" validate:"datetime=15:04"`
	Timezone   string `koanf:"timezone" validate:"timezone"`
	RunOnStart bool   `koanf:"run_on_start"`
	Signature  string `koanf:"signature"`
}

type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port" validate:"min=1,max=65535"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	TLS      string        `koanf:"tls" validate:"oneof=none starttls ssl"`
	FromAddr string        `koanf:"from_addr" validate:"omitempty,email"`
	FromName string        `koanf:"from_name"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json both"`
}

// Default returns the built-in settings. The JWT secret has no default.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "revtrack.db",
		},
		Auth: AuthConfig{
			BcryptCost: 12,
			TokenTTL:   24 * time.Hour,
			RateLimit:  0.2,
			RateBurst:  10,
		},
		Reminder: ReminderConfig{
			Enabled:   true,
			At:        "09:00",
			Timezone:  "Asia/Kolkata",
			Signature: "DSA Revision Tracker",
		},
		SMTP: SMTPConfig{
			Port:    587,
			TLS:     "starttls",
			Timeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "both",
		},
	}
}

// Load builds the configuration from args (without the program name) and the
// process environment. A .env file, when present, is read into the
// environment first without overriding variables that are already set.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("revtrack", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "path to a dotenv file")
	flags.Int("server.port", 8080, "HTTP listen port")
	flags.String("database.driver", "sqlite", "database driver (sqlite or pgx)")
	flags.String("database.dsn", "revtrack.db", "database file path or connection string")
	flags.Bool("reminder.run_on_start", false, "send due reminders once at startup")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	k := koanf.New(".")

	if *configPath != "" {
		if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	cfg := Default()
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Revision.Intervals) == 0 {
		cfg.Revision.Intervals = append([]int(nil), service.DefaultRevisionIntervals...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps REVTRACK_AUTH__JWT_SECRET to auth.jwt_secret.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation", fe.Namespace(), fe.ActualTag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.SMTP.Host != "" && c.SMTP.FromAddr == "" {
		return errors.New("invalid config: smtp.from_addr is required when smtp.host is set")
	}

	for i := 1; i < len(c.Revision.Intervals); i++ {
		if c.Revision.Intervals[i] <= c.Revision.Intervals[i-1] {
			return fmt.Errorf("invalid config: revision intervals must be strictly ascending, got %v", c.Revision.Intervals)
		}
	}
	return nil
}

// Location resolves the reminder timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Reminder.Timezone)
}
