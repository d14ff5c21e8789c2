package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/endpoints"
	"github.com/solsticeid/solstice/internal/oauth/processor"
	"github.com/solsticeid/solstice/internal/oauth/service"
	"github.com/solsticeid/solstice/internal/oauth/store/drivers/sqlite"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// The binary prepares a deployment: it validates the configuration, applies
// database migrations and wires the issuer's endpoints, failing fast on any
// configuration error before a front end is attached.
func main() {
	dsn := flag.String("db", "solstice.db", "sqlite database path")
	checkOnly := flag.Bool("check", false, "validate configuration and exit")
	flag.Parse()

	loaded := config.Load()
	cfg := &loaded
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	logger := slogx.New(slogx.Config{
		Service: "solstice",
		Env:     os.Getenv("APP_ENV"),
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
	})
	ctx := slogx.WithContext(context.Background(), logger)

	if *checkOnly {
		logger.Info("configuration valid", "issuer", cfg.Issuer)
		return
	}

	tokens, err := sqlite.NewStore(*dsn)
	if err != nil {
		log.Fatalf("open token store: %v", err)
	}
	defer tokens.Close()

	if err := tokens.ApplyMigrations(); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	if err := tokens.Ping(ctx); err != nil {
		log.Fatalf("token store unreachable: %v", err)
	}

	signer, err := cfg.BuildSigner()
	if err != nil {
		log.Fatalf("build token signer: %v", err)
	}

	registry := endpoints.New()
	if err := registry.RegisterAuthzEndpoint(cfg.Issuer, "/oauth2/authorize"); err != nil {
		log.Fatalf("register authorization endpoint: %v", err)
	}
	if err := registry.RegisterTokenEndpoint(cfg.Issuer, "/oauth2/token"); err != nil {
		log.Fatalf("register token endpoint: %v", err)
	}

	_ = processor.New(cfg, signer, tokens)
	_ = service.NewTokenService(cfg, signer, tokens, func(context.Context, string) (string, error) {
		return "", nil
	})

	logger.Info("deployment prepared",
		"issuer", cfg.Issuer,
		"alg", signer.Alg(),
		"db", *dsn)
}
