package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthassoc/bayan/pkg/config"
)

func TestRedact(t *testing.T) {
	cfg := config.Config{
		Database: config.DatabaseConfig{Postgres: config.PostgresConfig{Password: "db-secret"}},
		Storage:  config.StorageConfig{S3: config.S3StorageConfig{SecretAccessKey: "s3-secret", AccessKeyID: "AKIA"}},
		ImageGen: config.ImageGenConfig{APIKey: "img-secret"},
		Auth: config.AuthConfig{Users: []config.SeedUser{
			{Email: "root@health.example.org", Password: "hunter2", Role: "SUPERADMIN"},
		}},
	}

	out := redact(cfg)

	assert.Equal(t, redacted, out.Database.Postgres.Password)
	assert.Equal(t, redacted, out.Storage.S3.SecretAccessKey)
	assert.Equal(t, "AKIA", out.Storage.S3.AccessKeyID)
	assert.Equal(t, redacted, out.ImageGen.APIKey)
	assert.Equal(t, redacted, out.Auth.Users[0].Password)
	assert.Equal(t, "root@health.example.org", out.Auth.Users[0].Email)

	// The input is left untouched.
	assert.Equal(t, "hunter2", cfg.Auth.Users[0].Password)
}

func TestRedact_LeavesEmptySecretsEmpty(t *testing.T) {
	out := redact(config.Config{})

	assert.Empty(t, out.Database.Postgres.Password)
	assert.Empty(t, out.ImageGen.APIKey)
	assert.Empty(t, out.Auth.Users)
}
