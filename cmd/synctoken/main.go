// Command synctoken issues an operator token for the directory sync admin API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/orgsync/directory-sync/internal/auth"
	"github.com/orgsync/directory-sync/internal/config"
	"github.com/orgsync/directory-sync/internal/domain"
)

func main() {
	subject := flag.String("subject", "", "operator id written to the sub claim")
	role := flag.String("role", string(domain.RoleAdmin), "ADMIN, OPERATOR or VIEWER")
	flag.Parse()

	if strings.TrimSpace(*subject) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	r := domain.Role(strings.ToUpper(*role))
	switch r {
	case domain.RoleAdmin, domain.RoleOperator, domain.RoleViewer:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	raw, token, err := tokens.GenerateToken(*subject, r)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", token.ExpiresAt.Format(time.RFC3339))
	fmt.Println(raw)
}
