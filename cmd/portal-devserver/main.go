package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/server"
	"github.com/joho/godotenv"
)

const devSigningKey = "learnportal-dev-signing-key"

func main() {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")

	logCfg := logger.DefaultConfig()
	logCfg.FilePath = os.Getenv("LOG_FILE")
	logCfg.Console = true
	logCfg.Level = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx)
	if err != nil {
		log.Fatalf("Failed to open repository: %v", err)
	}

	codes, err := openCodeStore()
	if err != nil {
		_ = repo.Close()
		log.Fatalf("Failed to connect to valkey: %v", err)
	}

	signingKey := os.Getenv("SIGNING_KEY")
	if signingKey == "" {
		logger.Warn("SIGNING_KEY not set, using the development key")
		signingKey = devSigningKey
	}

	requireVerification, _ := strconv.ParseBool(os.Getenv("REQUIRE_VERIFICATION"))

	srv, err := server.New(server.Config{
		PublicURL:           getEnv("PUBLIC_URL", "http://localhost:"+port),
		SigningKey:          []byte(signingKey),
		RequireVerification: requireVerification,
	}, repo, codes)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down: %v", err)
		}
	}()

	log.Printf("Learn Portal dev server starting on :%s", port)
	if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func openRepository(ctx context.Context) (server.Repository, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Info("DATABASE_URL not set, keeping accounts in memory")
		return server.NewMemoryRepository(), nil
	}
	return server.NewPostgresRepository(ctx, dbURL)
}

func openCodeStore() (server.CodeStore, error) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		return server.NewMemoryCodeStore(), nil
	}
	return server.NewValkeyCodeStore(addr)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
