package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
)

// Fetcher downloads the full offline payload for one survey.
type Fetcher interface {
	FetchSurvey(ctx context.Context, surveyID string) (*remote.SurveyContent, error)
}

// Activator makes a survey the active one: download its content, store
// it for offline use, and record it as the session checkpoint.
type Activator struct {
	fetcher Fetcher
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewActivator creates a survey activator.
func NewActivator(fetcher Fetcher, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Activator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activator{fetcher: fetcher, db: db, bus: b, machine: machine, logger: logger}
}

// Activate implements selector.Activator.
func (a *Activator) Activate(ctx context.Context, surveyID string) error {
	if a.machine != nil {
		_ = a.machine.Transition(status.Syncing)
	}

	content, err := a.fetcher.FetchSurvey(ctx, surveyID)
	if err != nil {
		return fmt.Errorf("fetch survey %s: %w", surveyID, err)
	}

	if err := a.db.UpsertSurvey(&content.Survey); err != nil {
		return fmt.Errorf("store survey %s: %w", surveyID, err)
	}
	if err := a.db.ReplaceContent(surveyID, content.Jobs, content.LOIs); err != nil {
		return fmt.Errorf("store survey content %s: %w", surveyID, err)
	}
	if err := a.db.SetOffline(surveyID, true); err != nil {
		return fmt.Errorf("mark survey offline %s: %w", surveyID, err)
	}
	if err := a.db.SetCheckpoint(store.ActiveSurveyKey, surveyID); err != nil {
		return fmt.Errorf("record active survey %s: %w", surveyID, err)
	}

	a.logger.Info("survey activated",
		zap.String("survey_id", surveyID),
		zap.Int("jobs", len(content.Jobs)),
		zap.Int("lois", len(content.LOIs)))

	if a.machine != nil {
		_ = a.machine.Transition(status.Ready)
	}
	if a.bus != nil {
		a.bus.Publish(bus.Now(bus.KindActivated, surveyID))
		a.bus.Publish(bus.Now(bus.KindFlash, fmt.Sprintf("%s downloaded for offline use", content.Survey.Title)))
	}
	return nil
}
