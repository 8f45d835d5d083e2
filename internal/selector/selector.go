// Package selector implements the survey selection screen's controller:
// a continuously updated, sorted view of the surveys visible to the
// signed-in user, plus activation and offline-removal mediation.
package selector

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/tasks"
	"go.uber.org/zap"
)

// Item represents one survey as shown in the selection list.
type Item struct {
	ID               string
	Title            string
	AvailableOffline bool
}

// LoadStatus describes the controller's current view of the survey list.
// It is unset until the first subscription begins.
type LoadStatus string

const (
	StatusLoading  LoadStatus = "LOADING"
	StatusNotFound LoadStatus = "NOT_FOUND"
	StatusLoaded   LoadStatus = "LOADED"
	StatusFailed   LoadStatus = "FAILED"
)

// Snapshot is one delivery from the survey data source: either a full
// list of visible surveys or a stream error.
type Snapshot struct {
	Items []Item
	Err   error
}

// NavEvent signals one-shot navigation to the home screen after a
// successful activation. It is delivered to at most one receiver and
// never replayed.
type NavEvent struct {
	SurveyID string
}

// User identifies the signed-in field worker.
type User struct {
	Email       string
	DisplayName string
}

// SurveySource delivers live survey-list snapshots scoped to a user. The
// returned channel carries at least one snapshot (possibly empty) and is
// closed when ctx is cancelled.
type SurveySource interface {
	WatchSurveys(ctx context.Context, userEmail string) (<-chan Snapshot, error)
}

// Activator downloads a survey's content for offline use and records it
// as the active survey.
type Activator interface {
	Activate(ctx context.Context, surveyID string) error
}

// Remover deletes a survey's locally cached content.
type Remover interface {
	RemoveOffline(ctx context.Context, surveyID string) error
}

// Session exposes the signed-in user and sign-out.
type Session interface {
	CurrentUser() (User, error)
	SignOut() error
}

// ErrActivationInFlight is returned when Activate is called while a
// previous activation has not settled yet.
var ErrActivationInFlight = errors.New("survey activation already in flight")

// StatusChange is the bus payload for load-status updates.
type StatusChange struct {
	Status LoadStatus
	Reason string
}

// Controller owns the survey list state: the current ordered items and
// the load status, both observed read-only by callers.
type Controller struct {
	source    SurveySource
	activator Activator
	remover   Remover
	session   Session
	runner    *tasks.Runner
	bus       *bus.Bus
	logger    *zap.Logger

	mu         sync.RWMutex
	status     LoadStatus
	failure    error
	items      []Item
	activating bool

	nav chan NavEvent
}

// New creates a controller with its collaborators. runner is the
// application-lifetime scope used for offline removal; b may be nil when
// no observer cares about status events.
func New(source SurveySource, activator Activator, remover Remover, session Session, runner *tasks.Runner, b *bus.Bus, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		source:    source,
		activator: activator,
		remover:   remover,
		session:   session,
		runner:    runner,
		bus:       b,
		logger:    logger,
		nav:       make(chan NavEvent, 1),
	}
}

// Subscribe starts consuming live survey-list snapshots for the current
// user. Status becomes LOADING immediately; each snapshot then drives it
// to NOT_FOUND (empty), LOADED (non-empty), or FAILED (stream error).
// The returned stop function must be called when the owning screen goes
// away; it releases the data-source subscription.
func (c *Controller) Subscribe(ctx context.Context) (func(), error) {
	user, err := c.session.CurrentUser()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.setStatus(StatusLoading, nil)

	ch, err := c.source.WatchSurveys(ctx, user.Email)
	if err != nil {
		cancel()
		c.setStatus(StatusFailed, err)
		return nil, err
	}

	go func() {
		for {
			select {
			case snap, ok := <-ch:
				if !ok {
					return
				}
				c.applySnapshot(snap)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel, nil
}

func (c *Controller) applySnapshot(snap Snapshot) {
	if snap.Err != nil {
		c.logger.Error("survey stream error", zap.Error(snap.Err))
		c.setStatus(StatusFailed, snap.Err)
		return
	}

	items := Order(snap.Items)
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	if len(items) == 0 {
		c.setStatus(StatusNotFound, nil)
	} else {
		c.setStatus(StatusLoaded, nil)
	}
}

// Activate downloads the given survey for offline use. While in flight
// the status is LOADING and further Activate calls are rejected with
// ErrActivationInFlight. On success the status becomes LOADED and a
// single NavEvent is emitted; on failure the status becomes FAILED and
// no navigation happens.
func (c *Controller) Activate(ctx context.Context, surveyID string) error {
	c.mu.Lock()
	if c.activating {
		c.mu.Unlock()
		return ErrActivationInFlight
	}
	c.activating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.activating = false
		c.mu.Unlock()
	}()

	c.setStatus(StatusLoading, nil)

	if err := c.activator.Activate(ctx, surveyID); err != nil {
		c.logger.Error("survey activation failed", zap.String("survey_id", surveyID), zap.Error(err))
		c.setStatus(StatusFailed, err)
		return err
	}

	c.setStatus(StatusLoaded, nil)
	select {
	case c.nav <- NavEvent{SurveyID: surveyID}:
	default:
		// A previous event is still unconsumed; never queue more than one.
	}
	return nil
}

// RemoveOffline requests deletion of a survey's local copy. The work runs
// on the application scope and completes even if the invoking screen is
// torn down right after the call. No status transition is tied to it.
func (c *Controller) RemoveOffline(surveyID string) {
	c.runner.Go(func(ctx context.Context) {
		if err := c.remover.RemoveOffline(ctx, surveyID); err != nil {
			c.logger.Error("offline removal failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	})
}

// SignOut delegates to the session collaborator.
func (c *Controller) SignOut() error {
	return c.session.SignOut()
}

// Status returns the current load status ("" before the first Subscribe).
func (c *Controller) Status() LoadStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Failure returns the error behind a FAILED status, or nil.
func (c *Controller) Failure() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failure
}

// Items returns a copy of the current ordered survey list.
func (c *Controller) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Nav returns the one-shot navigation channel. Each event is consumed by
// exactly one receive; receivers attaching after an event was consumed
// see nothing.
func (c *Controller) Nav() <-chan NavEvent {
	return c.nav
}

func (c *Controller) setStatus(s LoadStatus, cause error) {
	c.mu.Lock()
	c.status = s
	c.failure = cause
	c.mu.Unlock()

	if c.bus != nil {
		reason := ""
		if cause != nil {
			reason = cause.Error()
		}
		c.bus.Publish(bus.Now(bus.KindLoadStatus, StatusChange{Status: s, Reason: reason}))
	}
}

// Order sorts survey items for display: ascending title first, then a
// stable offline-first pass layered on top, so offline availability
// dominates and ties keep title order.
func Order(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		return strings.Compare(a.Title, b.Title)
	})
	slices.SortStableFunc(out, func(a, b Item) int {
		switch {
		case a.AvailableOffline == b.AvailableOffline:
			return 0
		case a.AvailableOffline:
			return -1
		default:
			return 1
		}
	})
	return out
}
