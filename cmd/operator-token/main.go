package main

import (
	"fmt"
	"os"

	"github.com/pyladiescon/confops/internal/auth"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/spf13/pflag"
)

func main() {
	subject := pflag.StringP("subject", "s", "", "operator handle or email (required)")
	role := pflag.StringP("role", "r", auth.RoleOrganizer, "operator role: viewer or organizer")
	pflag.Parse()

	if err := run(*subject, *role); err != nil {
		fmt.Fprintln(os.Stderr, "operator-token:", err)
		os.Exit(1)
	}
}

func run(subject, role string) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTOperatorExpiry).GenerateToken(auth.RealmOperator, subject, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
