package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/config"
	"github.com/teilehaus/serviceportal/internal/repository/postgres"
	"github.com/teilehaus/serviceportal/internal/service"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run cmd/create-operator/main.go <name> <email> <password>")
		fmt.Println("Example: go run cmd/create-operator/main.go \"Sabine Krause\" sabine@teilehaus.de \"ein-langes-passwort\"")
		os.Exit(1)
	}

	name, email, password := os.Args[1], os.Args[2], os.Args[3]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()

	// Connect to database
	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(db, logger)
	authService := service.NewAuthService(repos, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger)

	op, err := authService.CreateOperator(ctx, name, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create operator: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Operator created.\n\n")
	fmt.Printf("Operator ID: %s\n", op.ID.String())
	fmt.Printf("Name: %s\n", op.Name)
	fmt.Printf("Email: %s\n", op.Email)
	fmt.Printf("\nSign in with POST /v1/admin/login using this email and password.\n")
}
