package main

import (
	"fmt"
	"os"
	"time"

	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/model"
)

// Issues a development token signed with JWT_SECRET.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... go run scripts/issue-token.go <userId> [name] [email]\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET is not set\n")
		os.Exit(1)
	}

	principal := model.Principal{ID: os.Args[1]}
	if len(os.Args) > 2 {
		principal.Name = os.Args[2]
	}
	if len(os.Args) > 3 {
		principal.Email = os.Args[3]
	}

	token, err := auth.IssueToken(secret, os.Getenv("JWT_ISSUER"), principal, 24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
