package daemon

import (
	"context"
	"errors"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/api"
	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/config"
	"github.com/groundctl/gnd/internal/lock"
	"github.com/groundctl/gnd/internal/logging"
	"github.com/groundctl/gnd/internal/outbox"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/session"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
	intsync "github.com/groundctl/gnd/internal/sync"
	"github.com/groundctl/gnd/internal/tasks"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideRunner,
			provideSessionManager,
			provideSyncEngine,
			provideListSource,
			provideActivator,
			provideRemover,
			provideController,
			provideUploader,
			provideAPIHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return &config.Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(cfg *config.Config, logger *zap.Logger) (*remote.Client, error) {
	return remote.NewClient(context.Background(), cfg.Firebase, cfg.Remote, logger)
}

func provideRunner() *tasks.Runner {
	return tasks.NewRunner(context.Background())
}

func provideSessionManager(p Params, machine *status.Machine, b *bus.Bus) *session.Manager {
	return session.NewManager(session.IdentityPath(p.SessionName), machine, b)
}

func provideSyncEngine(client *remote.Client, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(client, db, b, machine, logger)
}

func provideListSource(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.ListSource {
	return intsync.NewListSource(db, b, logger)
}

func provideActivator(client *remote.Client, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *intsync.Activator {
	return intsync.NewActivator(client, db, b, machine, logger)
}

func provideRemover(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Remover {
	return intsync.NewRemover(db, b, logger)
}

func provideController(ls *intsync.ListSource, act *intsync.Activator, rem *intsync.Remover, mgr *session.Manager, runner *tasks.Runner, b *bus.Bus, logger *zap.Logger) *selector.Controller {
	return selector.New(ls, act, rem, mgr, runner, b, logger)
}

func provideUploader(db *store.DB, client *remote.Client, b *bus.Bus, logger *zap.Logger) *outbox.Uploader {
	return outbox.NewUploader(db, client, b, logger, outbox.DefaultInterval)
}

func provideAPIHandler(controller *selector.Controller, db *store.DB, machine *status.Machine, mgr *session.Manager, client *remote.Client, b *bus.Bus, logger *zap.Logger) *api.Handler {
	return api.NewHandler(controller, db, machine, mgr, client, b, logger, nil)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, mgr *session.Manager, engine *intsync.Engine, uploader *outbox.Uploader, controller *selector.Controller, runner *tasks.Runner, client *remote.Client, machine *status.Machine, logger *zap.Logger) {
	var stopList func()

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()

			uploader.Start(context.Background())

			user, err := mgr.CurrentUser()
			if err != nil {
				logger.Info("no identity found, auth required")
				_ = machine.Transition(status.AuthRequired)
				return nil
			}

			_ = machine.Transition(status.Connecting)
			_ = machine.Transition(status.Syncing)
			if err := engine.Start(context.Background(), user.Email); err != nil {
				logger.Error("failed to start sync engine", zap.Error(err))
				_ = machine.Transition(status.Error)
				return nil
			}

			stop, err := controller.Subscribe(context.Background())
			if err != nil {
				logger.Error("failed to subscribe survey list", zap.Error(err))
				return nil
			}
			stopList = stop
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if stopList != nil {
				stopList()
			}
			uploader.Stop()
			engine.Stop()
			if err := runner.Close(ctx); err != nil {
				logger.Warn("background tasks did not drain", zap.Error(err))
			}
			srv.Stop(ctx)
			if err := client.Close(); err != nil {
				logger.Warn("error closing remote client", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
