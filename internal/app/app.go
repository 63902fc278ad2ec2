package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dedupehq/dedupe-backend/internal/db"
	"github.com/dedupehq/dedupe-backend/internal/jobs"
	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/middleware"
	"github.com/dedupehq/dedupe-backend/internal/queue"
	"github.com/dedupehq/dedupe-backend/internal/schema"
	"github.com/dedupehq/dedupe-backend/internal/server"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Broker   queue.Broker
	cancel   context.CancelFunc
	done     chan struct{}
}

// Options selects which halves of the process to wire. The default binary
// runs both; a worker-only deployment skips the router.
type Options struct {
	API     bool
	Workers bool
}

func New(opts Options) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	sch, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load schema: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	broker, err := queue.NewRedisBroker(log, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init redis broker: %w", err)
	}
	store := jobs.NewRedisStore(log, broker.Client())

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Sync()
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, sch, broker, store, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Broker:   broker,
	}

	if opts.API {
		handlerset := wireHandlers(log, cfg, serviceset)
		authMiddleware := middleware.NewAuthMiddleware(log, nil)
		a.Router = server.NewRouter(server.RouterConfig{
			AllowOrigins:   cfg.AllowOrigins,
			AuthMiddleware: authMiddleware,
			IngestHandler:  handlerset.Ingest,
			JobsHandler:    handlerset.Jobs,
			SearchHandler:  handlerset.Search,
		})
	}
	if !opts.Workers {
		a.Services.IngestWorker = nil
		a.Services.ErrorWorker = nil
	}

	return a, nil
}

// Start launches the queue consumers. It returns immediately; the workers
// run until Close.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		if a.Services.ErrorWorker != nil {
			go func() {
				if err := a.Services.ErrorWorker.Run(ctx); err != nil {
					a.Log.Error("Error worker stopped", "error", err)
				}
			}()
		}
		if a.Services.IngestWorker != nil {
			if err := a.Services.IngestWorker.Run(ctx); err != nil {
				a.Log.Error("Ingest worker stopped", "error", err)
			}
		} else {
			<-ctx.Done()
		}
	}()
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app has no router")
	}
	a.Log.Info("Starting HTTP server", "addr", a.Cfg.ServerAddr)
	return a.Router.Run(a.Cfg.ServerAddr)
}

// Wait blocks until the workers exit, for worker-only binaries.
func (a *App) Wait() {
	if a != nil && a.done != nil {
		<-a.done
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.done != nil {
		<-a.done
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Log.Warn("Broker close failed", "error", err)
		}
	}
	a.Log.Sync()
}
