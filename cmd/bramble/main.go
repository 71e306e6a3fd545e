package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/bramble/internal/backup"
	"github.com/dukerupert/bramble/internal/database"
	"github.com/dukerupert/bramble/internal/email"
	"github.com/dukerupert/bramble/internal/logging"
	"github.com/dukerupert/bramble/internal/server"
)

func main() {
	port := os.Getenv("BRAMBLE_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("BRAMBLE_DB_PATH")
	if dbPath == "" {
		dbPath = "bramble.db"
	}

	logger := logging.Setup(os.Getenv("BRAMBLE_LOG_LEVEL"), os.Getenv("BRAMBLE_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	businessName := os.Getenv("BRAMBLE_BUSINESS_NAME")
	if businessName == "" {
		businessName = "Bramble"
	}
	emailClient := email.NewClient(
		os.Getenv("BRAMBLE_POSTMARK_TOKEN"),
		os.Getenv("BRAMBLE_FROM_EMAIL"),
		businessName,
	)
	if !emailClient.Configured() {
		logger.Warn("postmark not configured, referral emails disabled")
	}

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("BRAMBLE_BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("BRAMBLE_BACKUP_S3_BUCKET"),
			Region:    os.Getenv("BRAMBLE_BACKUP_S3_REGION"),
			AccessKey: os.Getenv("BRAMBLE_BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("BRAMBLE_BACKUP_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("BRAMBLE_BACKUP_PASSPHRASE"),
	}
	if v := os.Getenv("BRAMBLE_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			backupCfg.Interval = d
		} else {
			logger.Warn("invalid backup interval, using default", "value", v)
		}
	}

	adminToken := os.Getenv("BRAMBLE_ADMIN_TOKEN")
	if adminToken == "" {
		logger.Warn("BRAMBLE_ADMIN_TOKEN not set, admin API disabled")
	}

	srv := server.New(db, emailClient, adminToken, backupCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Orchestrator().Start(ctx)
	srv.BackupManager().Start(ctx)

	// Periodic rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Bramble running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	cancel()
	srv.Orchestrator().Stop()
	srv.BackupManager().Stop()
	srv.Notifier().Wait()
}
