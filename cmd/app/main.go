// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/database"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/server"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cmd := &cli.Command{
		Name:   "app",
		Usage:  "Run the helpdesk account recovery service",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:  "create-admin",
				Usage: "Create an admin account if none exists for the email",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Admin email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Admin password", Sources: cli.EnvVars("ADMIN_PASSWORD"), Required: true},
				},
				Action: createAdmin,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func createAdmin(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd.Root())

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	svc := auth.NewService(repository.New(db), cfg.Recovery.MinPasswordLength)
	user, err := svc.EnsureAdmin(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Printf("admin %s (id %d) ready\n", user.Email, user.ID)
	return nil
}
