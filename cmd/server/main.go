package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/database"
	"github.com/lamb-project/kb-server/internal/handler"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg)

	if cfg.APIToken == "" {
		slog.Error("LAMB_API_TOKEN must be set")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	vectors := vectorstore.NewStore(db, cfg.EmbeddingDimensions)
	if err := vectors.AutoMigrate(); err != nil {
		slog.Error("failed to migrate vector store", "error", err)
		os.Exit(1)
	}

	r := handler.SetupRouter(cfg, db, vectors)

	addr := cfg.Host + ":" + cfg.Port
	slog.Info("KB server starting", "addr", addr, "environment", cfg.Environment)
	if err := r.Run(addr); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}
