package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamhub/internal/auth"
	"github.com/teamhub/internal/chat"
	"github.com/teamhub/internal/config"
	"github.com/teamhub/internal/handler"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/middleware"
	"github.com/teamhub/internal/notify"
	"github.com/teamhub/internal/push"
	"github.com/teamhub/internal/repository"
	"github.com/teamhub/internal/startup"
	"github.com/teamhub/internal/storage"
	"github.com/teamhub/internal/storage/memory"
	"github.com/teamhub/internal/ws"
	"github.com/teamhub/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory token store (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var authStore storage.AuthStore
	if *dev {
		authStore = memory.New()
	} else {
		authStore = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
	}
	defer authStore.Close()

	verifier := auth.NewVerifier(cfg.Auth, authStore)

	userRepo := repository.NewUserRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	receiptRepo := repository.NewReceiptRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	subsRepo := repository.NewPushSubscriptionRepository(pool)

	pubKey, privKey := cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey
	if pubKey == "" || privKey == "" {
		keys, err := push.EnsureVAPIDKeys("")
		if err != nil {
			logger.Errorf("vapid keys: %v (web push disabled)", err)
		} else {
			pubKey, privKey = keys.PublicKey, keys.PrivateKey
		}
	}
	sender := push.NewSender(pubKey, privKey, cfg.Push.Subscriber, subsRepo)
	var chatOffline chat.OfflinePusher
	var notifyOffline notify.OfflinePusher
	if sender.Enabled() {
		chatOffline = sender
		notifyOffline = sender
	}

	registry := ws.NewRegistry()
	rooms := ws.NewRooms()
	gateway := ws.NewGateway(registry, rooms)

	chatSvc := chat.NewService(projectRepo, msgRepo, receiptRepo, userRepo, gateway, gateway, chatOffline)
	dispatcher := notify.NewDispatcher(notifRepo, gateway, notifyOffline)

	hub := ws.NewHub(registry, rooms, chatSvc, cfg.MaxWSConnections)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	msgH := handler.NewMessageHandler(chatSvc)
	projectH := handler.NewProjectHandler(projectRepo, dispatcher)
	notifH := handler.NewNotificationHandler(dispatcher)
	userH := handler.NewUserHandler(userRepo)
	pushH := handler.NewPushHandler(subsRepo, pubKey)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Never compress the WebSocket upgrade: the compressing ResponseWriter
	// does not implement http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI(authStore))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/push/public-key", pushH.PublicKey)

	// Sibling services on the private network: identity profile sync and the
	// file workflow's notification intake.
	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalOnly)
		r.Post("/internal/users", userH.InternalUpsert)
		r.Post("/internal/notifications", notifH.InternalCreate)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(verifier))

		r.Get("/api/users/me", userH.Me)
		r.Get("/api/users/{id}", userH.Get)

		r.Post("/api/projects", projectH.Create)
		r.Get("/api/projects", projectH.List)
		r.Get("/api/projects/{projectId}", projectH.Get)
		r.Post("/api/projects/{projectId}/members", projectH.AddMember)
		r.Delete("/api/projects/{projectId}/members/{userId}", projectH.RemoveMember)
		r.Patch("/api/projects/{projectId}/members/{userId}/role", projectH.UpdateRole)

		r.Post("/api/projects/{projectId}/messages", msgH.SendMessage)
		r.Get("/api/projects/{projectId}/messages", msgH.GetMessages)
		r.Post("/api/projects/{projectId}/messages/read", msgH.MarkRead)
		r.Get("/api/messages/unread-counts", msgH.GetUnreadCounts)

		r.Get("/api/notifications", notifH.List)
		r.Patch("/api/notifications/read-all", notifH.MarkAllRead)
		r.Patch("/api/notifications/{id}/read", notifH.MarkRead)

		r.Post("/api/push/subscriptions", pushH.Subscribe)
		r.Delete("/api/push/subscriptions", pushH.Unsubscribe)

		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// runMigrations applies the embedded SQL migrations in file order. Every
// statement is idempotent (CREATE ... IF NOT EXISTS), so re-running on boot
// is safe.
func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "teamhub"
		password = "teamhub_secret"
		database = "teamhub"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
