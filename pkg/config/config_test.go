package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
server:
  listen: ":9000"
  cors_origins:
    - https://example.org
auth:
  session_ttl: 12h
database:
  driver: sqlite
  sqlite:
    path: /tmp/original.db
storage:
  backend: local
  max_upload_size: 2MB
site:
  name_ar: جمعية
  name_en: Association
  default_locale: ar
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, ":9000", cfg.Server.Listen)
				assert.Equal(t, []string{"https://example.org"}, cfg.Server.CORSOrigins)
				assert.Equal(t, "12h", cfg.Auth.SessionTTL)
				assert.Equal(t, "/tmp/original.db", cfg.Database.SQLite.Path)
				assert.Equal(t, "Association", cfg.Site.NameEN)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"BAYAN_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "nested override - database.sqlite.path",
			envVars: map[string]string{
				"BAYAN_DATABASE_SQLITE_PATH": "/data/env.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/data/env.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "key absent from file - storage.s3.bucket",
			envVars: map[string]string{
				"BAYAN_STORAGE_S3_BUCKET": "media-bucket",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "media-bucket", cfg.Storage.S3.Bucket)
			},
		},
		{
			name: "boolean override - rate_limit.enabled",
			envVars: map[string]string{
				"BAYAN_SERVER_RATE_LIMIT_ENABLED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.RateLimit.Enabled)
			},
		},
		{
			name: "boolean override - bootstrap_first_superadmin false",
			envVars: map[string]string{
				"BAYAN_AUTH_BOOTSTRAP_FIRST_SUPERADMIN": "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Auth.BootstrapFirstSuperadmin)
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"BAYAN_SERVER_LISTEN":           ":7000",
				"BAYAN_SITE_DEFAULT_LOCALE":     "en",
				"BAYAN_STORAGE_MAX_UPLOAD_SIZE": "10MB",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":7000", cfg.Server.Listen)
				assert.Equal(t, "en", cfg.Site.DefaultLocale)
				assert.Equal(t, "10MB", cfg.Storage.MaxUploadSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsAppliedWhenEmpty(t *testing.T) {
	configPath := writeConfig(t, `
site:
  name_en: Association
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, DefaultSessionCookie, cfg.Auth.CookieName)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultMaxUploadSize, cfg.Storage.MaxUploadSize)
	assert.Equal(t, DefaultLocale, cfg.Site.DefaultLocale)
	assert.True(t, cfg.Auth.BootstrapFirstSuperadmin)
	assert.True(t, cfg.Auth.AllowSignup)
	assert.True(t, cfg.Server.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
server:
  listen: ":8000"
site:
  name_en: Base
`)
	override := writeConfig(t, `
site:
  name_en: Override
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.Equal(t, "Override", cfg.Site.NameEN)
}

func TestLoad_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	configPath := writeConfig(t, `
database:
  driver: postgres
  postgres:
    host: db
    password: ${TEST_DB_PASSWORD}
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: yaml: content:")

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()

		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:      "bad session ttl",
			mutate:    func(c *Config) { c.Auth.SessionTTL = "forever" },
			errSubstr: "auth.session_ttl",
		},
		{
			name: "seed user with unknown role",
			mutate: func(c *Config) {
				c.Auth.Users = []SeedUser{{Email: "a@b.org", Password: "x", Role: "admin"}}
			},
			errSubstr: "unknown role",
		},
		{
			name:      "unsupported driver",
			mutate:    func(c *Config) { c.Database.Driver = "mysql" },
			errSubstr: "unsupported database driver",
		},
		{
			name:      "s3 without bucket",
			mutate:    func(c *Config) { c.Storage.Backend = StorageBackendS3 },
			errSubstr: "storage.s3.bucket is required",
		},
		{
			name:      "unparseable upload size",
			mutate:    func(c *Config) { c.Storage.MaxUploadSize = "lots" },
			errSubstr: "storage.max_upload_size",
		},
		{
			name:      "imagegen without endpoint",
			mutate:    func(c *Config) { c.ImageGen.Enabled = true },
			errSubstr: "imagegen.endpoint is required",
		},
		{
			name:      "unknown default locale",
			mutate:    func(c *Config) { c.Site.DefaultLocale = "fr" },
			errSubstr: "site.default_locale",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errSubstr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestStorageConfig_MaxUploadBytes(t *testing.T) {
	s := StorageConfig{MaxUploadSize: "5MB"}

	n, err := s.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), n)
}
