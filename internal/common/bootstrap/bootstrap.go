package bootstrap

import (
	"context"
	"fmt"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/repository"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/schema"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/config"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/db"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/richtext"
	"github.com/AlibekovAA/lingo-cms/backend/internal/seed"
	"github.com/AlibekovAA/lingo-cms/backend/internal/seo"
)

// App is the assembled CMS: schema, storage and the local API, without any
// HTTP surface.
type App struct {
	Config      config.CMSConfig
	Log         *logger.Logger
	Repo        repository.Repository
	Registry    *domain.Registry
	SEO         *seo.Plugin
	Files       *service.DiskStore
	Collections *service.CollectionService
	Hasher      commoncrypto.PasswordHasher
	IDGenerator commoncrypto.IDGenerator
	Clock       clock.Clock

	closers []func()
}

func NewApp(ctx context.Context, cfg config.CMSConfig, log *logger.Logger) (*App, error) {
	app := &App{
		Config:      cfg,
		Log:         log,
		Hasher:      commoncrypto.NewBcryptHasher(),
		IDGenerator: commoncrypto.NewUUIDGenerator(),
		Clock:       clock.NewRealClock(),
	}

	registry, err := loadRegistry(cfg.CollectionsFile)
	if err != nil {
		return nil, err
	}

	app.SEO = seo.New(seo.DefaultOptions())
	if err := app.SEO.Apply(registry); err != nil {
		return nil, fmt.Errorf("failed to apply seo plugin: %w", err)
	}
	if err := schema.Validate(registry); err != nil {
		return nil, fmt.Errorf("invalid collection config: %w", err)
	}
	app.Registry = registry

	app.Files, err = service.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	if err := app.openRepository(ctx); err != nil {
		app.Close()
		return nil, err
	}

	features := richtext.EditorFeatures()
	app.Collections = service.NewCollectionService(
		app.Registry,
		app.Repo,
		app.Hasher,
		app.IDGenerator,
		features,
		app.SEO,
		app.Files,
		app.Clock,
		log,
	)

	log.Infof("cms initialized: adapter=%s collections=%v richtext=%v", app.Repo.Adapter(), app.Registry.Slugs(), features.List())
	return app, nil
}

// Init runs the startup hook: the admin user is seeded when the users
// collection is empty. An error here must stop startup.
func (a *App) Init(ctx context.Context) error {
	timeout := a.Config.Seed.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultSeedTimeout
	}
	seedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return seed.EnsureAdminSeeded(seedCtx, a.Collections, a.SeedCredentials(), a.Log)
}

func (a *App) SeedCredentials() seed.Credentials {
	creds := seed.DefaultCredentials()
	if a.Config.Seed.Email != "" {
		creds.Email = a.Config.Seed.Email
	}
	if a.Config.Seed.Password != "" {
		creds.Password = a.Config.Seed.Password
	}
	return creds
}

// Close releases storage in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openRepository(ctx context.Context) error {
	switch a.Config.DBAdapter {
	case config.AdapterSQLite:
		repo, err := repository.OpenSQLite(ctx, a.Config.SQLitePath, a.Log)
		if err != nil {
			return fmt.Errorf("failed to open sqlite: %w", err)
		}
		a.Repo = repo
		a.closers = append(a.closers, func() { _ = repo.Close() })
		return nil

	case config.AdapterPostgres:
		pool, err := db.NewPool(ctx, a.Log, a.Config.PostgresURI)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)

		repo := repository.NewPgRepository(pool, a.Log)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate postgres: %w", err)
		}
		a.Repo = repo

		metricsCtx, stop := context.WithCancel(context.Background())
		db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)
		a.closers = append(a.closers, stop)
		return nil
	}
	return fmt.Errorf("%w: got %q", config.ErrInvalidAdapter, a.Config.DBAdapter)
}

func loadRegistry(path string) (*domain.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	registry, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load collections from %s: %w", path, err)
	}
	return registry, nil
}
