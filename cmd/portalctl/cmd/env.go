package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/config"
	"github.com/lumenflow/portal/internal/db"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/storage"

	"github.com/spf13/cobra"
)

// Env is what a command works against. Writes go through the same
// repositories as the server, so with postgres every change reaches open
// portal sessions through the change feed.
type Env struct {
	Driver string
	Brand  string
	DB     *sqlx.DB

	Users    repository.UserRepository
	Projects repository.ProjectRepository
	Tasks    repository.TaskRepository
	Assets   repository.AssetRepository
	Articles repository.ArticleRepository
	Tokens   repository.TokenRepository

	Auth *service.AuthService

	// Storage is opened on first use; only asset commands need it
	Storage func(ctx context.Context) (storage.Storage, error)

	close func() error
}

func (e *Env) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// Open builds the Env of one command run.
type Open func(ctx context.Context) (*Env, error)

// Opener connects to the configured database without migrating it.
func Opener(cfg *config.Config) Open {
	return func(ctx context.Context) (*Env, error) {
		database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}

		// Without postgres nothing outside this process listens, the
		// server picks the rows up on its next load
		var publisher realtime.Publisher
		if cfg.UsesPostgres() {
			publisher = realtime.NewPGNotifier(database)
		}

		env := NewEnv(database, cfg.DBDriver, cfg.Brand, publisher)
		env.Auth = service.NewAuthService(
			env.Users,
			repository.NewProfileRepository(database),
			env.Tokens,
			env.Projects,
			service.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppName, cfg.IsDevelopment()),
			cfg.JWTSecret,
			cfg.AppURL,
			service.AuthTokenExpiry{
				Access:   cfg.AccessTokenExpiry,
				Refresh:  cfg.RefreshTokenExpiry,
				Invite:   cfg.InviteExpiry,
				Recovery: cfg.RecoveryExpiry,
			},
		)
		env.Storage = func(ctx context.Context) (storage.Storage, error) {
			return storage.New(ctx, cfg)
		}
		return env, nil
	}
}

// NewEnv wires the repositories over an open database.
func NewEnv(database *sqlx.DB, driver, brand string, publisher realtime.Publisher) *Env {
	return &Env{
		Driver:   driver,
		Brand:    brand,
		DB:       database,
		Users:    repository.NewUserRepository(database),
		Projects: repository.NewProjectRepository(database, publisher),
		Tasks:    repository.NewTaskRepository(database, publisher),
		Assets:   repository.NewAssetRepository(database, publisher),
		Articles: repository.NewArticleRepository(database, publisher),
		Tokens:   repository.NewTokenRepository(database),
		close:    database.Close,
		Storage: func(context.Context) (storage.Storage, error) {
			return nil, fmt.Errorf("storage is not configured")
		},
	}
}

// run opens the Env, hands it to fn and closes it again.
func run(cmd *cobra.Command, open Open, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}
