package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"licensegate.app/cloud/handlers"
	"licensegate.app/cloud/internal/config"
	"licensegate.app/cloud/internal/license"
	"licensegate.app/cloud/internal/logger"
	"licensegate.app/cloud/internal/session"
	"licensegate.app/cloud/storage"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	godotenv.Load()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("storage: %s", err)
	}
	defer store.Close()

	if err := bootstrapAdmin(context.Background(), store, cfg); err != nil {
		log.Fatalf("admin bootstrap: %s", err)
	}

	server := handlers.NewServer(cfg, store)
	server.Version = version

	logger.Info("License Gate API starting", map[string]interface{}{
		"version": version,
		"port":    cfg.Port,
	})
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router))
}

// bootstrapAdmin creates the single admin credential on first start. The row
// is never rewritten afterwards; rotating the password means a new database
// or manual surgery, which is acceptable for a one-admin system.
func bootstrapAdmin(ctx context.Context, store storage.Storage, cfg *config.Config) error {
	adminEmail := license.Normalize(cfg.AdminEmail)

	existing, err := store.FindAdminByEmail(ctx, adminEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := session.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	if err := store.CreateAdmin(ctx, adminEmail, hash); err != nil {
		return err
	}

	logger.Info("Admin credential created", map[string]interface{}{
		"email": adminEmail,
	})
	return nil
}
