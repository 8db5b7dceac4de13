package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"quotedesk/internal/auth"
	"quotedesk/internal/config"
	"quotedesk/internal/events"
	"quotedesk/internal/handler"
	"quotedesk/internal/notification"
	"quotedesk/internal/preview"
	"quotedesk/internal/repository"
	"quotedesk/internal/service"
	"quotedesk/internal/service/mail"
	"quotedesk/internal/service/pdf"
	"quotedesk/internal/service/s3"
)

// directory both authenticates staff and resolves quote owners.
type directory interface {
	auth.Verifier
	notification.UserDirectory
}

func connectWithRetry(cfg config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// The maintenance database always exists; use it to create ours on first start.
	admin := cfg
	admin.Name = "postgres"
	pgDB, err := sqlx.Connect("postgres", admin.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}
	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Name)
		if _, err = pgDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.Name)); err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func newMailSender(cfg config.MailConfig) (mail.Sender, error) {
	host := "localhost"
	if at := strings.LastIndex(cfg.From, "@"); at >= 0 {
		host = cfg.From[at+1:]
	}
	ids, err := mail.NewIDGenerator(cfg.NodeID, host)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "log" {
		log.Printf("Mail driver is \"log\": messages are written to the log, not delivered")
		return mail.NewLogSender(ids), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
	}, ids), nil
}

func newDirectory(cfg *auth.Config) (directory, func(), error) {
	if cfg.AuthAddr == "" {
		tokens, err := auth.ParseDevTokens(cfg.DevTokens)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Auth service not configured, using %d static dev tokens", len(tokens))
		return auth.NewStaticDirectory(tokens), func() {}, nil
	}

	conn, err := grpc.NewClient(cfg.AuthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to auth service: %w", err)
	}
	return auth.NewClient(conn), func() { conn.Close() }, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.Database, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Object storage is optional; without it artwork can only be linked by URL.
	var storage s3.Storage
	if s3Config, err := s3.NewConfig(".s3.env"); err != nil {
		log.Printf("S3 not configured, artwork file uploads disabled: %v", err)
	} else {
		s3Client, err := s3.NewClient(s3Config)
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		storage = s3Client
	}

	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	users, closeAuth, err := newDirectory(authConfig)
	if err != nil {
		log.Fatalf("Failed to set up auth: %v", err)
	}
	defer closeAuth()

	sender, err := newMailSender(appConfig.Mail)
	if err != nil {
		log.Fatalf("Failed to set up mail: %v", err)
	}

	// Repositories
	quoteRepo := repository.NewQuoteRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Notifications
	formatter := notification.NewFormatter(appConfig.Notification.Locale, appConfig.Notification.CurrencySymbol)
	dispatcher := notification.NewDispatcher(sender, notificationRepo, notification.NewRenderer(formatter), appConfig.Notification.Recipients())
	notifier := notification.NewNotifier(dispatcher, notificationRepo, users, notification.Links{
		AdminBaseURL:  appConfig.Notification.AdminBaseURL,
		PublicBaseURL: appConfig.Notification.PublicBaseURL,
	}, appConfig.Notification.CompanyName)

	// Services. Subscribers run in order: audit first.
	auditService := service.NewAuditService(auditRepo)
	bus := events.NewBus()
	bus.Subscribe("audit", auditService.Handle)
	bus.Subscribe("notifications", notifier.Handle)

	previewService := preview.NewService()
	artworkService := service.NewArtworkService(quoteRepo, storage, previewService, notifier, bus)
	quoteService := service.NewQuoteService(quoteRepo, customerRepo, auditService, notifier, artworkService, bus)
	notificationService := service.NewNotificationService(notificationRepo, notifier)
	pdfGenerator := pdf.New(appConfig.Notification.CompanyName, formatter.Currency)

	// Handlers
	routes := handler.Routes{
		Quotes:        handler.NewQuoteHandler(quoteService, pdfGenerator),
		Artwork:       handler.NewArtworkHandler(artworkService),
		Public:        handler.NewPublicHandler(quoteService, artworkService, pdfGenerator),
		Audit:         handler.NewAuditHandler(auditService),
		Notifications: handler.NewNotificationHandler(notificationService),
	}
	if storage != nil {
		routes.Thumbnail = preview.NewHandler(previewService, artworkService).GetThumbnail
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appConfig.Server.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	routes.Mount(r, users)

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&handler.AuditServiceDesc, handler.NewAuditGRPCHandler(auditService))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", appConfig.Server.GRPCPort))
		if err != nil {
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		log.Printf("Starting gRPC server on port %s", appConfig.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	grpcServer.GracefulStop()

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
