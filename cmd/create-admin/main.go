package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/logger"
	"github.com/stemsi/examhall-backend/internal/repository"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool), log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	// SEED_EMAIL / SEED_PASSWORD skip the prompts for unattended setups.
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("=== Create Admin User ===")

	email := cfg.SeedEmail
	if email == "" {
		fmt.Print("Enter Email: ")
		email, _ = reader.ReadString('\n')
		email = strings.TrimSpace(email)
	}
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	password := cfg.SeedPassword
	if password == "" {
		fmt.Print("Enter Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading password")
			return
		}
		password = string(bytePassword)
	}
	if len(password) < 8 || !validator.IsStrongPassword(password) {
		fmt.Println("Error: Password must be at least 8 characters with upper and lower case letters, a number and one of !@#$%^&*")
		return
	}

	username := strings.SplitN(email, "@", 2)[0]

	// ─── Logic ─────────────────────────────────────────────────────────
	admin, err := authService.EnsureSeedAdmin(ctx, username, email, password)
	if err != nil {
		if errors.Is(err, service.ErrSeedUserExists) {
			fmt.Printf("Admin '%s' already exists, nothing to do.\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID: %s\n", admin.Username, admin.Email, admin.ID)
}
