// Command tokengen mints a session token for a known user, useful for
// local development and for operators issuing service credentials.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/relaykit/relay/internal/auth"
)

func main() {
	userID := flag.String("user-id", "", "user UUID to embed in the token (random if omitted)")
	username := flag.String("username", "", "username to embed in the token (required)")
	secret := flag.String("secret", os.Getenv("TOKEN_SECRET"), "signing secret (defaults to TOKEN_SECRET)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "error: -username is required")
		flag.Usage()
		os.Exit(1)
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "error: -secret or TOKEN_SECRET is required")
		os.Exit(1)
	}

	id := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid -user-id: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	tokens := auth.NewTokenManager(*secret, *ttl)
	token, err := tokens.Generate(id, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID:  %s\n", id)
	fmt.Printf("Username: %s\n", *username)
	fmt.Printf("Expires:  %s\n", time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Printf("Token:    %s\n", token)
}
