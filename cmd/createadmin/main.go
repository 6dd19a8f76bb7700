// Command createadmin bootstraps a staff account in the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/models"
	"github.com/orderdesk/orderdesk/internal/store"
)

func main() {
	username := flag.String("username", "", "Admin username")
	email := flag.String("email", "", "Admin email")
	password := flag.String("password", "", "Admin password")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: createadmin -username <name> -password <password> [-email <email>]")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres connection failed: %v\n", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		db = pg
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite open failed: %v\n", err)
			os.Exit(1)
		}
		db = sq
	}
	defer db.Close()

	existing, err := db.GetUserByUsername(ctx, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		os.Exit(1)
	}
	if existing != nil {
		fmt.Fprintf(os.Stderr, "user %q already exists (id %d)\n", *username, existing.ID)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}

	user, err := db.CreateUser(ctx, *username, *email, hash, models.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created admin %q (id %d)\n", user.Username, user.ID)
}
