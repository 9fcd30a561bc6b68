// Command initiate-admin creates or updates the admin user. The
// password is read from the terminal without echo and stored as an
// Argon2id hash.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"chemstock_system/internal/config"
	"chemstock_system/internal/database"
	"chemstock_system/internal/security"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := config.NewPool(config.PoolConfigFromSettings(cfg.Database, logger))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	username, err := promptUsername()
	if err != nil {
		logger.Error("failed to read username", "error", err)
		os.Exit(1)
	}

	password, err := promptPassword()
	if err != nil {
		logger.Error("failed to read password", "error", err)
		os.Exit(1)
	}

	if err := security.CheckPasswordStrength(password); err != nil {
		logger.Error("password rejected", "error", err)
		os.Exit(1)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		os.Exit(1)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, 'admin')
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, role = 'admin'`,
		username, hash)
	if err != nil {
		logger.Error("failed to upsert admin user", "error", err)
		os.Exit(1)
	}

	fmt.Printf("admin user %q is ready\n", username)
}

func promptUsername() (string, error) {
	fmt.Print("Username [admin]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	username := strings.TrimSpace(line)
	if username == "" {
		username = "admin"
	}
	return username, nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}
