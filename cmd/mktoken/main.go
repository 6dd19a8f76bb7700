// Command mktoken issues an access token for a user, for ops and testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/models"
)

func main() {
	userID := flag.Int64("user", 0, "User id")
	username := flag.String("username", "", "Username embedded in the token")
	role := flag.String("role", models.RoleClient, "Role (client or admin)")
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: mktoken -user <id> [-username <name>] [-role client|admin]")
		os.Exit(1)
	}
	if *role != models.RoleClient && *role != models.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	cfg := config.Load()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	token, err := tokens.IssueToken(auth.Identity{
		UserID:   *userID,
		Username: *username,
		Role:     *role,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
