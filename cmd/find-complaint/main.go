package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/portalclient"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-complaint/main.go <search-term> [status]")
		fmt.Println("Example: go run cmd/find-complaint/main.go \"RE-2023-001234\"")
		fmt.Println("Reads PORTAL_URL, PORTAL_EMAIL and PORTAL_PASSWORD from the environment.")
		os.Exit(1)
	}

	filter := domain.Filter{SearchTerm: os.Args[1]}
	if len(os.Args) > 2 {
		filter.Status = os.Args[2]
	}

	baseURL := os.Getenv("PORTAL_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := portalclient.NewClient(baseURL, logger)
	if _, err := client.Login(ctx, os.Getenv("PORTAL_EMAIL"), os.Getenv("PORTAL_PASSWORD")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign in: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Searching complaints for: %s\n\n", filter.SearchTerm)

	complaints, err := client.Complaints().List(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list complaints: %v\n", err)
		os.Exit(1)
	}

	if len(complaints) == 0 {
		fmt.Printf("No complaint matches '%s'.\n", filter.SearchTerm)
		fmt.Printf("\nThe search covers customer name, customer number, receipt number and email.\n")
		os.Exit(1)
	}

	for _, c := range complaints {
		fmt.Printf("%s  %-12s  %s  %s (%s)  %s\n",
			c.CreatedAt.Format("2006-01-02 15:04"),
			c.Status,
			c.ReceiptNumber,
			c.CustomerName,
			c.CustomerNumber,
			c.ID.String(),
		)
	}
	fmt.Printf("\n%d complaint(s) found.\n", len(complaints))
}
