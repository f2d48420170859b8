package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/meujardineiro/backend/internal/config"
	"github.com/meujardineiro/backend/internal/db"
	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/store"
	"github.com/meujardineiro/backend/internal/utils"
)

func main() {
	email := flag.String("email", "", "Email of the user to promote to admin")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin -email user@example.com")
	}

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dsn := cfg.DB.DSN()
	if dsn == "" {
		log.Fatalf("no database configured (DB_URL or DB_HOST)")
	}

	zl, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn, zl)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer pool.Close()

	// Ensure tables/constraints are in place (idempotent)
	if err := db.EnsureSchema(ctx, pool, zl); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	addr := utils.NormalizeEmail(*email)
	if err := store.NewPostgresUsers(pool).SetRoleByEmail(ctx, addr, session.RoleAdmin); err != nil {
		log.Fatalf("failed to promote %s: %v", addr, err)
	}

	fmt.Printf("User %s promoted to admin.\n", addr)
}
