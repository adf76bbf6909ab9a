package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/franckalain/leafmetric/internal/config"
	"github.com/franckalain/leafmetric/internal/database"
	"github.com/franckalain/leafmetric/internal/ml"
	"github.com/franckalain/leafmetric/internal/server"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if cfg.Source == "" {
		log.Printf("Config file %s not found, using defaults", *configPath)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize database
	db, err := database.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		log.Fatal("Failed to create ML model:", err)
	}
	if err := model.Load(ctx); err != nil {
		log.Fatal("Failed to load ML model:", err)
	}
	if c, ok := model.(io.Closer); ok {
		defer c.Close()
	}

	// Initialize and start server
	srv := server.New(db, model, server.Settings{
		UploadDir: cfg.Server.UploadDir,
		JWTSecret: []byte(cfg.Server.JWTSecret),
		TokenTTL:  cfg.Server.TokenTTL.Std(),
		Debug:     cfg.Server.Debug,
	})
	if err := srv.Start(ctx, cfg.Server.Port); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
