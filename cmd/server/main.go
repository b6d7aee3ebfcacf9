package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luminix/crm/internal/api"
	"github.com/luminix/crm/internal/automation"
	"github.com/luminix/crm/internal/cache"
	"github.com/luminix/crm/internal/config"
	"github.com/luminix/crm/internal/crm"
	"github.com/luminix/crm/internal/mailing"
	"github.com/luminix/crm/internal/messaging"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Luminix CRM server starting")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis cache is optional; response detection falls back to the
	// database when it is absent.
	var redisClient *cache.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewClient(cfg.Redis.URL)
		if err != nil {
			log.Printf("[Cache] Redis unavailable, continuing without cache: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Stores
	leadStore := crm.NewStore(db)
	automationStore := automation.NewStore(db)

	// Message senders. Without credentials everything goes through the
	// log sender so local development needs no external accounts.
	var whatsapp automation.MessageSender = messaging.LogSender{}
	var email automation.Emailer = messaging.LogSender{}
	if cfg.WhatsApp.BaseURL != "" {
		whatsapp = messaging.NewWhatsAppSender(cfg.WhatsApp)
		log.Println("WhatsApp sender configured")
	}
	if cfg.SES.AccessKey != "" {
		email = messaging.NewSESSender(cfg.SES)
		log.Println("SES email sender configured")
	}

	templates := mailing.NewTemplateService()
	registry := automation.DefaultRegistry(leadStore, leadStore, leadStore, whatsapp, email, templates)

	var respCache automation.ResponseCache
	if redisClient != nil {
		respCache = redisClient
	}
	detector := automation.NewDetector(leadStore, respCache)

	engine := automation.NewEngine(automationStore, leadStore, detector, registry, automation.EngineConfig{
		TriggerSchedule:   cfg.Automation.TriggerSchedule,
		ExecutionSchedule: cfg.Automation.ExecutionSchedule,
		BatchSize:         cfg.Automation.BatchSize,
	})
	if cfg.Automation.Enabled {
		if err := engine.Start(); err != nil {
			log.Fatalf("Failed to start automation engine: %v", err)
		}
		log.Printf("Automation engine started (triggers %s, execution %s)",
			cfg.Automation.TriggerSchedule, cfg.Automation.ExecutionSchedule)
	} else {
		log.Println("Automation engine disabled; sweeps run only via /api/automations/sweep")
	}

	// HTTP server
	handlers := api.NewHandlers(leadStore, automationStore, engine)
	healthChecker := api.NewHealthChecker(db, redisClient, engine)
	router := api.SetupRoutes(handlers, healthChecker)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	if cfg.Automation.Enabled {
		engine.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
