package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymdesk/internal/clients"
	"gymdesk/internal/config"
	"gymdesk/internal/dedup"
	"gymdesk/internal/jobs"
	"gymdesk/internal/repository"
	"gymdesk/internal/service"
	"gymdesk/internal/transport/auth"
	"gymdesk/internal/transport/rest"
	"gymdesk/internal/transport/websocket"
	"gymdesk/pkg/database/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	localStorage, err := clients.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.PublicPrefix, cfg.Storage.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	files := mustInitFileStore(cfg.S3, localStorage)

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	winner, err := dedup.ParsePlanWinner(cfg.Reconcile.PlanWinner)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	opts := dedup.Options{
		Window:           cfg.Reconcile.PlanWindow,
		PlanWinner:       winner,
		IgnoreStandalone: cfg.Reconcile.IgnoreStandalone,
	}

	store := service.NewSQLStore(repository.NewStore(db))

	clientSvc := service.NewClientService(store, opts)
	reconcileSvc := service.NewReconcileService(store, redisClient, wsClient, opts, cfg.Reconcile.ScanCacheTTL)
	planSvc := service.NewPlanService(store, cfg.Reconcile.PlanWindow)
	paymentSvc := service.NewPaymentService(store)
	exportSvc := service.NewExportService(clientSvc, redisClient, files, wsClient)
	accountSvc := service.NewAccountService(clients.NewCleanupClient(cfg.Cleanup.FunctionURL, cfg.Cleanup.Timeout))

	handler := rest.NewHandler(rest.Services{
		Clients:    clientSvc,
		Duplicates: reconcileSvc,
		Plans:      planSvc,
		Payments:   paymentSvc,
		Exports:    exportSvc,
		ExportList: exportSvc,
		Accounts:   accountSvc,
		Hub:        wsHub,
		Files:      localStorage,
	})
	router := handler.InitRouterWithAuth(auth.JWTMiddleware(cfg.JWTSecret))

	scanJob := jobs.NewDuplicateScanJob(reconcileSvc, jobs.DuplicateScanConfig{
		Schedule: cfg.Reconcile.ScanSchedule,
		TimeZone: cfg.Reconcile.ScanTimezone,
	})
	if err := scanJob.Start(); err != nil {
		log.Fatalf("scheduler init error: %v", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// generated files are only kept long enough to be downloaded
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := localStorage.CleanupOlderThan(30 * time.Minute); err != nil {
					log.Printf("storage cleanup error: %v", err)
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		scanJob.Stop()
		cancel()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Username:        cfg.User,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		Password:        cfg.Password,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

// mustInitFileStore picks S3 when enabled and falls back to the local dir.
func mustInitFileStore(cfg config.S3Config, local *clients.LocalStorage) service.FileStore {
	if !cfg.Enabled {
		return local
	}

	s3, err := clients.NewS3Client(clients.S3Config{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
		Prefix:          cfg.Prefix,
		URLTTL:          cfg.URLTTL,
	})
	if err != nil {
		log.Fatalf("s3 init error: %v", err)
	}
	log.Printf("exports stored in s3 bucket %s", cfg.Bucket)
	return s3
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
