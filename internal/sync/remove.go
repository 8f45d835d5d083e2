package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/store"
)

// Remover deletes a survey's locally cached content. Draft and queued
// submissions survive the removal; only downloaded content goes.
type Remover struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewRemover creates an offline-content remover.
func NewRemover(db *store.DB, b *bus.Bus, logger *zap.Logger) *Remover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remover{db: db, bus: b, logger: logger}
}

// RemoveOffline implements selector.Remover.
func (r *Remover) RemoveOffline(ctx context.Context, surveyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.db.DeleteOfflineContent(surveyID); err != nil {
		return fmt.Errorf("delete offline content %s: %w", surveyID, err)
	}

	// Removing the active survey also clears the checkpoint.
	active, err := r.db.GetCheckpoint(store.ActiveSurveyKey)
	if err == nil && active == surveyID {
		if err := r.db.SetCheckpoint(store.ActiveSurveyKey, ""); err != nil {
			return fmt.Errorf("clear active survey: %w", err)
		}
	}

	r.logger.Info("offline content removed", zap.String("survey_id", surveyID))
	if r.bus != nil {
		r.bus.Publish(bus.Now(bus.KindOfflineRemoved, surveyID))
	}
	return nil
}
