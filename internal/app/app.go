package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal"
	"github.com/lumenflow/portal/internal/config"
	"github.com/lumenflow/portal/internal/contact"
	"github.com/lumenflow/portal/internal/db"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/session"
	"github.com/lumenflow/portal/internal/storage"
	"github.com/lumenflow/portal/internal/webhook"
)

type App struct {
	Cfg              *config.Config
	DB               *sqlx.DB
	Broker           *realtime.Broker
	KV               kv.Store
	Registry         *session.Registry
	AuthService      *service.AuthService
	ProfileService   *service.ProfileService
	EmailService     *service.EmailService
	ProjectService   *service.ProjectService
	KnowledgeService *service.KnowledgeService
	LegalService     *service.LegalService
	SitemapService   *service.SitemapService
	ContactService   *contact.Service
	ChatClient       *webhook.Client
	Resolver         *storage.Resolver
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Change feed: with postgres every write goes through NOTIFY so writes
	// from other processes (portalctl) reach the broker too
	broker := realtime.NewBroker(realtime.DefaultBuffer)
	var publisher realtime.Publisher = broker
	if cfg.UsesPostgres() {
		publisher = realtime.NewPGNotifier(database)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	profileRepository := repository.NewProfileRepository(database)
	tokenRepository := repository.NewTokenRepository(database)
	projectRepository := repository.NewProjectRepository(database, publisher)
	taskRepository := repository.NewTaskRepository(database, publisher)
	assetRepository := repository.NewAssetRepository(database, publisher)
	articleRepository := repository.NewArticleRepository(database, publisher)
	kvRepository := repository.NewKVRepository(database)

	// Storage
	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Webhooks
	var signer *webhook.Signer
	if cfg.WebhookSecret != "" {
		signer, err = webhook.NewSigner(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
	}

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(
		userRepository,
		profileRepository,
		tokenRepository,
		projectRepository,
		emailService,
		cfg.JWTSecret,
		cfg.AppURL,
		service.AuthTokenExpiry{
			Access:   cfg.AccessTokenExpiry,
			Refresh:  cfg.RefreshTokenExpiry,
			Invite:   cfg.InviteExpiry,
			Recovery: cfg.RecoveryExpiry,
		},
	)
	profileService := service.NewProfileService(profileRepository)

	legalFS, reload := contentFS(cfg)

	// One session store per browser, each with its own slice of the kv table
	registry := session.NewRegistry(func(clientID string) *session.Store {
		client := identity.NewClient(authService, kv.ForClient(kvRepository, clientID))
		return session.New(clientID, client, profileService)
	}, cfg.SessionIdleTTL)

	return &App{
		Cfg:              cfg,
		DB:               database,
		Broker:           broker,
		KV:               kvRepository,
		Registry:         registry,
		AuthService:      authService,
		ProfileService:   profileService,
		EmailService:     emailService,
		ProjectService:   service.NewProjectService(projectRepository, taskRepository, assetRepository, cfg.Brand),
		KnowledgeService: service.NewKnowledgeService(articleRepository),
		LegalService:     service.NewLegalService(legalFS, reload),
		SitemapService:   service.NewSitemapService(cfg.AppURL),
		ContactService:   contact.NewService(webhook.NewClient(cfg.ContactWebhookURL, cfg.ContactTimeout, signer), "website"),
		ChatClient:       webhook.NewClient(cfg.ChatWebhookURL, cfg.ChatTimeout, signer),
		Resolver:         storage.NewResolver(fileStorage, cfg.SignedURLExpiry),
	}, nil
}

// contentFS serves the legal pages from CONTENT_PATH when it exists, else
// from the copy embedded in the binary. Pages on disk are re-read in
// development.
func contentFS(cfg *config.Config) (fs.FS, bool) {
	if info, err := os.Stat(cfg.ContentPath); err == nil && info.IsDir() {
		return os.DirFS(cfg.ContentPath), cfg.IsDevelopment()
	}
	sub, err := fs.Sub(portal.ContentFS, "content")
	if err != nil {
		slog.Error("embedded content missing", "error", err)
	}
	return sub, false
}

// Run starts the background work: the idle session sweeper and, with
// postgres, the change feed listener. It returns when ctx is done.
func (a *App) Run(ctx context.Context) {
	if a.Cfg.UsesPostgres() {
		go func() {
			err := realtime.Listen(ctx, a.Cfg.DBConnection, a.Broker)
			if err != nil {
				slog.Error("realtime listener stopped", "error", err)
			}
		}()
	}
	a.Registry.Run(ctx)
}

func (a *App) Close() error {
	a.Registry.Close()
	a.Broker.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
