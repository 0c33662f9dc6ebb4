package config

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides, e.g.
	// BAYAN_SERVER_LISTEN overrides server.listen.
	EnvPrefix = "BAYAN"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultSessionTTL is the default lifetime of a login session.
	DefaultSessionTTL = "24h"

	// DefaultSessionCookie is the default session cookie name.
	DefaultSessionCookie = "bayan_session"

	// DefaultMaxUploadSize is the default per-file upload ceiling.
	DefaultMaxUploadSize = "5MB"

	// DefaultLocale is the locale served at the site root.
	DefaultLocale = "ar"

	// DefaultMetricsPath is where prometheus metrics are exposed.
	DefaultMetricsPath = "/metrics"

	// DefaultImageGenTimeout bounds a single image generation request.
	DefaultImageGenTimeout = "60s"
)

// Config is the root configuration for bayan.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	ImageGen ImageGenConfig `yaml:"imagegen,omitempty" mapstructure:"imagegen"`
	Site     SiteConfig     `yaml:"site" mapstructure:"site"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// Load reads the given YAML files in order, merging later files over
// earlier ones, then applies BAYAN_* environment overrides and defaults.
// ${VAR} references inside the files are expanded from the environment.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := v.MergeConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers defaults that cannot be expressed as a zero value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.bootstrap_first_superadmin", true)
	v.SetDefault("auth.allow_signup", true)
	v.SetDefault("server.metrics.enabled", true)
}

// bindEnvs registers every leaf key of t with viper so that environment
// variables override keys that are absent from the config files.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, ft, key)

			continue
		}

		_ = v.BindEnv(key)
	}
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Server.Metrics.Path == "" {
		c.Server.Metrics.Path = DefaultMetricsPath
	}

	if c.Server.RateLimit.Auth.RequestsPerMinute == 0 {
		c.Server.RateLimit.Auth.RequestsPerMinute = 20
	}

	if c.Server.RateLimit.Public.RequestsPerMinute == 0 {
		c.Server.RateLimit.Public.RequestsPerMinute = 60
	}

	if c.Server.RateLimit.Authenticated.RequestsPerMinute == 0 {
		c.Server.RateLimit.Authenticated.RequestsPerMinute = 600
	}

	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = DefaultSessionTTL
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = DefaultSessionCookie
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "bayan.db"
	}

	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}

	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendLocal
	}

	if c.Storage.MaxUploadSize == "" {
		c.Storage.MaxUploadSize = DefaultMaxUploadSize
	}

	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "./media"
	}

	if c.Storage.Local.BaseURL == "" {
		c.Storage.Local.BaseURL = "/media"
	}

	if c.ImageGen.Timeout == "" {
		c.ImageGen.Timeout = DefaultImageGenTimeout
	}

	if c.ImageGen.Size == "" {
		c.ImageGen.Size = "1024x1024"
	}

	if c.Site.DefaultLocale == "" {
		c.Site.DefaultLocale = DefaultLocale
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Auth.SessionTTL); err != nil {
		return fmt.Errorf("auth.session_ttl: %w", err)
	}

	for i, u := range c.Auth.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("auth.users[%d]: email and password are required", i)
		}

		if u.Role != "" && !isValidRole(u.Role) {
			return fmt.Errorf("auth.users[%d]: unknown role %q", i, u.Role)
		}
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("storage.local.root is required")
		}
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Storage.Backend)
	}

	if _, err := c.Storage.MaxUploadBytes(); err != nil {
		return err
	}

	if c.ImageGen.Enabled {
		if c.ImageGen.Endpoint == "" {
			return fmt.Errorf("imagegen.endpoint is required when imagegen is enabled")
		}

		if _, err := time.ParseDuration(c.ImageGen.Timeout); err != nil {
			return fmt.Errorf("imagegen.timeout: %w", err)
		}
	}

	if c.Site.DefaultLocale != "ar" && c.Site.DefaultLocale != "en" {
		return fmt.Errorf("site.default_locale must be \"ar\" or \"en\"")
	}

	return nil
}

// MaxUploadBytes parses the human readable upload ceiling ("5MB", "512k").
func (s *StorageConfig) MaxUploadBytes() (int64, error) {
	n, err := units.FromHumanSize(s.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("storage.max_upload_size: %w", err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("storage.max_upload_size must be positive")
	}

	return n, nil
}

// validRoles mirrors the role enumeration of the auth package.
var validRoles = map[string]struct{}{
	"SUPERADMIN": {},
	"EDITOR":     {},
	"VIEWER":     {},
}

func isValidRole(role string) bool {
	_, ok := validRoles[role]

	return ok
}
