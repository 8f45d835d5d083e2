package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
)

// Watcher delivers live survey-list batches from the backend.
type Watcher interface {
	WatchSurveys(ctx context.Context, userEmail string) (<-chan remote.SurveyBatch, error)
}

// Engine consumes the live survey query and mirrors it into the local
// store. Each batch is a full snapshot of the surveys visible to the
// user, so ingestion is upsert-everything plus prune-the-vanished.
type Engine struct {
	watcher Watcher
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewEngine creates a sync engine. The watcher is typically the remote
// client; tests substitute a fake.
func NewEngine(watcher Watcher, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		watcher: watcher,
		db:      db,
		bus:     b,
		machine: machine,
		logger:  logger,
	}
}

// Start opens the live query for the given user and begins mirroring
// batches into the store until Stop is called or the context ends.
func (e *Engine) Start(ctx context.Context, userEmail string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	batches, err := e.watcher.WatchSurveys(runCtx, userEmail)
	if err != nil {
		cancel()
		return err
	}

	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.run(runCtx, batches)
	return nil
}

// Stop cancels the live query and waits for the ingest loop to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.running = false
	e.mu.Unlock()

	cancel()
	<-done
}

func (e *Engine) run(ctx context.Context, batches <-chan remote.SurveyBatch) {
	defer close(e.done)

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if batch.Err != nil {
				e.logger.Warn("survey stream error", zap.Error(batch.Err))
				if e.bus != nil {
					e.bus.Publish(bus.Now(bus.KindStreamError, batch.Err))
				}
				continue
			}
			if err := e.IngestBatch(batch.Surveys); err != nil {
				e.logger.Error("failed to ingest survey batch", zap.Error(err))
				continue
			}
			if first {
				first = false
				if e.machine != nil {
					_ = e.machine.Transition(status.Ready)
				}
			}
		}
	}
}

// IngestBatch writes one full survey snapshot into the store: upsert
// every listed survey, then prune whatever the backend no longer
// returns (offline copies are kept regardless).
func (e *Engine) IngestBatch(surveys []remote.SurveyRecord) error {
	now := time.Now().Unix()
	keep := make([]string, 0, len(surveys))
	for _, rec := range surveys {
		keep = append(keep, rec.ID)
		err := e.db.UpsertSurvey(&store.Survey{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			ACLRole:     rec.Role,
			SyncedAt:    now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
	}
	if err := e.db.PruneVanished(keep); err != nil {
		return err
	}

	e.logger.Debug("survey list ingested", zap.Int("count", len(surveys)))
	if e.bus != nil {
		e.bus.Publish(bus.Now(bus.KindListUpdated, len(surveys)))
	}
	return nil
}
