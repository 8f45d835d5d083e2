package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/store"
)

// DefaultInterval is how often the uploader checks for queued submissions.
const DefaultInterval = 15 * time.Second

// Pusher uploads one submission to the backend.
type Pusher interface {
	PushSubmission(ctx context.Context, sub store.Submission) error
}

// Uploader drains the submission outbox on a fixed interval. Entries are
// pushed oldest-first; a failed push marks the entry failed and moves on,
// so one bad submission never blocks the queue.
type Uploader struct {
	db       *store.DB
	pusher   Pusher
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewUploader creates an outbox uploader. A non-positive interval falls
// back to DefaultInterval.
func NewUploader(db *store.DB, pusher Pusher, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Uploader{db: db, pusher: pusher, bus: b, logger: logger, interval: interval}
}

// Start begins the periodic drain. The first drain runs immediately.
func (u *Uploader) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.done = make(chan struct{})
	u.running = true

	go func() {
		defer close(u.done)
		u.Drain(runCtx)
		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				u.Drain(runCtx)
			}
		}
	}()
}

// Stop cancels the drain loop and waits for it to finish.
func (u *Uploader) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	cancel, done := u.cancel, u.done
	u.running = false
	u.mu.Unlock()

	cancel()
	<-done
}

// Drain pushes every queued outbox entry once.
func (u *Uploader) Drain(ctx context.Context) {
	pending, err := u.db.PendingOutbox()
	if err != nil {
		u.logger.Error("failed to read outbox", zap.Error(err))
		return
	}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		u.send(ctx, entry)
	}
}

func (u *Uploader) send(ctx context.Context, entry store.OutboxEntry) {
	if err := u.db.MarkOutboxSending(entry.ClientID); err != nil {
		u.logger.Error("failed to mark outbox entry sending",
			zap.String("client_id", entry.ClientID), zap.Error(err))
		return
	}

	sub, err := u.db.GetSubmission(entry.SubmissionID)
	if err != nil || sub == nil {
		u.logger.Error("outbox entry references missing submission",
			zap.String("submission_id", entry.SubmissionID), zap.Error(err))
		_ = u.db.MarkOutboxFailed(entry.ClientID, "submission not found")
		return
	}

	if err := u.pusher.PushSubmission(ctx, *sub); err != nil {
		u.logger.Warn("submission push failed",
			zap.String("submission_id", sub.ID),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(err))
		_ = u.db.MarkOutboxFailed(entry.ClientID, err.Error())
		if u.bus != nil {
			u.bus.Publish(bus.Now(bus.KindSendFailed, sub.ID))
		}
		return
	}

	if err := u.db.MarkOutboxSent(entry.ClientID); err != nil {
		u.logger.Error("failed to mark outbox entry sent",
			zap.String("client_id", entry.ClientID), zap.Error(err))
		return
	}
	if err := u.db.SetSubmissionState(sub.ID, store.SubmissionSynced); err != nil {
		u.logger.Error("failed to mark submission synced",
			zap.String("submission_id", sub.ID), zap.Error(err))
	}
	u.logger.Info("submission uploaded", zap.String("submission_id", sub.ID))
	if u.bus != nil {
		u.bus.Publish(bus.Now(bus.KindSent, sub.ID))
	}
}
