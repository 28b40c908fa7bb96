package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/teamjoin/internal/config"
	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/dimitrije/teamjoin/internal/handlers"
	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/lock"
	"github.com/dimitrije/teamjoin/internal/logging"
	authmw "github.com/dimitrije/teamjoin/internal/middleware"
	"github.com/dimitrije/teamjoin/internal/otel"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/dimitrije/teamjoin/internal/sse"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	log "github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	flush, err := logging.Setup(logging.Options{
		Production: cfg.IsProduction(),
		SentryDSN:  cfg.SentryDSN,
		Release:    version,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "teamjoin", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	app, err := firebase.NewApp(ctx, cfg.Firebase)
	if err != nil {
		log.Fatalf("Failed to init firebase: %v", err)
	}
	authClient, err := firebase.NewAuthClient(ctx, app)
	if err != nil {
		log.Fatalf("Failed to init firebase auth: %v", err)
	}
	firestoreClient, err := firebase.NewFirestoreClient(ctx, app)
	if err != nil {
		log.Fatalf("Failed to init firestore: %v", err)
	}
	defer func() { _ = firestoreClient.Close() }()

	identity := firebase.NewIdentityClient(firebase.IdentityConfig{
		APIKey:         cfg.Firebase.APIKey,
		IdentityURL:    cfg.Firebase.IdentityBaseURL,
		SecureTokenURL: cfg.Firebase.SecureTokenBaseURL,
		Timeout:        cfg.Firebase.HTTPTimeout,
	})
	functions := firebase.NewFunctionsClient(cfg.Firebase.FunctionsBaseURL, cfg.Firebase.HTTPTimeout)
	accounts := firebase.NewAccountDirectory(authClient)
	profiles := firebase.NewProfileStore(firestoreClient)

	var locker invite.Locker = lock.NewLocal()
	if cfg.Redis.Enabled {
		redisClient := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer func() { _ = redisClient.Close() }()
		locker = lock.NewRedis(redisClient)
	}

	deps := invite.Deps{
		Validator:  invite.NewValidator(functions),
		Resolver:   invite.NewResolver(identity, accounts),
		Reconciler: invite.NewReconciler(identity, profiles, cfg.Reconcile.MaxAttempts, cfg.Reconcile.Interval),
		Redeemer:   functions,
		Refresher:  identity,
		Locker:     locker,
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JoinSessionExpiry)
	sessionService := services.NewSessionService(db)
	emailService := services.NewEmailService(cfg.SMTP)
	if !cfg.SMTP.Enabled() {
		log.Warn("SMTP_HOST or SMTP_FROM not set, invite emails are disabled")
	}

	hub := sse.NewHub()
	go hub.Run(ctx)

	flows := handlers.NewFlowRegistry(deps, sessionService, hub, cfg.JoinSessionExpiry)
	go flows.Run(ctx, time.Minute)

	joinHandler := handlers.NewJoinHandler(cfg, flows, jwtService, accounts)
	sseHandler := handlers.NewSSEHandler(hub, flows)
	teamHandler := handlers.NewTeamHandler(functions, emailService)
	healthHandler := handlers.NewHealthHandler(db.Pool)

	server := drift.New()

	if cfg.IsProduction() {
		server.SetMode(drift.ReleaseMode)
	} else {
		server.SetMode(drift.DebugMode)
	}

	server.Use(middleware.Recovery())
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", authmw.JoinSessionHeader},
		MaxAge:       86400,
	}))
	server.Use(middleware.BodyParser())

	// Public join pages
	server.Get("/join", joinHandler.Page)
	server.Get("/join/federated/:provider/callback", joinHandler.FederatedCallback)

	api := server.Group("/api/v1")
	api.Get("/health", healthHandler.Check)
	api.Post("/join", joinHandler.Start)

	join := api.Group("/join")
	join.Use(authmw.JoinSession(jwtService))
	join.Post("/identity", joinHandler.SubmitIdentity)
	join.Post("/redeem", joinHandler.Redeem)
	join.Get("/state", joinHandler.State)
	join.Get("/events", sseHandler.Connect)
	join.Get("/federated/:provider/consent", joinHandler.GetConsentURL)

	team := api.Group("/team")
	team.Use(authmw.Auth(accounts))
	team.Post("/invites", teamHandler.CreateInvite)
	team.Get("/invites", teamHandler.ListInvites)
	team.Delete("/members/:memberId", teamHandler.RemoveMember)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.WithFields(log.Fields{
			"addr":      addr,
			"providers": joinHandler.Providers(),
			"redis":     cfg.Redis.Enabled,
		}).Info("Server starting")
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}
}
