package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/healthassoc/bayan/pkg/config"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)

	if err := enc.Encode(redact(*cfg)); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return enc.Close()
}

// redact blanks every secret of a config copy.
func redact(cfg config.Config) config.Config {
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = redacted
	}

	if cfg.Storage.S3.SecretAccessKey != "" {
		cfg.Storage.S3.SecretAccessKey = redacted
	}

	if cfg.ImageGen.APIKey != "" {
		cfg.ImageGen.APIKey = redacted
	}

	users := make([]config.SeedUser, len(cfg.Auth.Users))
	for i, u := range cfg.Auth.Users {
		u.Password = redacted
		users[i] = u
	}

	cfg.Auth.Users = users

	return cfg
}
