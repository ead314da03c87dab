package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careorg/rosteraccess/internal/api"
	"github.com/careorg/rosteraccess/internal/config"
	"github.com/careorg/rosteraccess/internal/engine"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type serverConfig struct {
	ListenAddr           string `yaml:"listen_addr"`
	TLSCertFile          string `yaml:"tls_cert"`
	TLSKeyFile           string `yaml:"tls_key"`
	DBUrl                string `yaml:"db_url"`
	MigrationsDir        string `yaml:"migrations_dir"`
	LogLevel             string `yaml:"log_level"`
	RBACConfigFile       string `yaml:"rbac_config_file"`
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("ROSTER_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := serverConfig{
		ListenAddr:           ":8300",
		MigrationsDir:        "migrations",
		LogLevel:             "info",
		SweepIntervalSeconds: 60,
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("ROSTER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DBUrl == "" {
		log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	store, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Run migrations
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	// Access policy configuration. Defaults apply when no file is given;
	// with a file, edits are picked up live.
	rbac := models.DefaultRBACConfig()
	if cfg.RBACConfigFile != "" {
		rbac, err = config.Load(cfg.RBACConfigFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.RBACConfigFile).Msg("failed to load rbac config")
		}
	}
	holder, err := config.NewHolder(rbac)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rbac config")
	}
	if cfg.RBACConfigFile != "" {
		go func() {
			if err := holder.Watch(ctx, cfg.RBACConfigFile); err != nil {
				log.Error().Err(err).Msg("rbac config watcher stopped")
			}
		}()
	}

	// Create server
	srv := api.NewServer(store, holder, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
	})

	// Background sweep: auto clock-outs, grace expiries, shift boundary
	// re-evaluations.
	sweeper := engine.NewSweeper(srv.Engine(), srv.Clock(),
		time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	go sweeper.Run(ctx)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
