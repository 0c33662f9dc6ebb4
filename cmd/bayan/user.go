package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
)

var (
	userEmail    string
	userPassword string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, optionally with a role",
	Long: `Create an account directly in the database. When --password is not
given the password is read from the first line of stdin.`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "account password")
	userCreateCmd.Flags().StringVar(&userRole, "role", "",
		"role to assign (VIEWER, EDITOR, SUPERADMIN)")

	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	role := auth.RoleNone

	if userRole != "" {
		role, err = auth.ParseRole(userRole)
		if err != nil {
			return err
		}
	}

	password := userPassword
	if password == "" {
		password, err = readPassword()
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st := store.NewStore(log, &cfg.Database, nil)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	authSvc, err := auth.NewService(log, st, &cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	user, err := authSvc.CreateUser(ctx, userEmail, password, store.SourceCLI)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	if role != auth.RoleNone {
		if err := authSvc.AssignRole(ctx, user.ID, role); err != nil {
			return fmt.Errorf("assigning role: %w", err)
		}
	}

	log.WithField("email", user.Email).
		WithField("id", user.ID).
		WithField("role", role.String()).
		Info("User created")

	return nil
}

func readPassword() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}

	return password, nil
}
