package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/splitnest/splitnest/internal/backup"
	"github.com/splitnest/splitnest/internal/database"
	"github.com/splitnest/splitnest/internal/logging"
	"github.com/splitnest/splitnest/internal/push"
	"github.com/splitnest/splitnest/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("SPLITNEST_LOG_LEVEL"))

	port := os.Getenv("SPLITNEST_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SPLITNEST_DB_PATH")
	if dbPath == "" {
		dbPath = "splitnest.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("SPLITNEST_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("SPLITNEST_VAPID_PRIVATE_KEY"),
	}
	if pushCfg.VAPIDPublicKey == "" {
		logger.Info("push notifications disabled: VAPID keys not configured")
	}

	backupHour, _ := strconv.Atoi(os.Getenv("SPLITNEST_BACKUP_HOUR"))
	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("SPLITNEST_S3_ENDPOINT"),
			Bucket:    os.Getenv("SPLITNEST_S3_BUCKET"),
			Region:    os.Getenv("SPLITNEST_S3_REGION"),
			AccessKey: os.Getenv("SPLITNEST_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SPLITNEST_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("SPLITNEST_BACKUP_PASSPHRASE"),
		Hour:       backupHour,
	}

	srv := server.New(db, pushCfg, backupCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.BackupManager().Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("splitnest listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	srv.BackupManager().Stop()
	srv.Dispatcher().Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
