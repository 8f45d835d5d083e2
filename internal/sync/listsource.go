package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/store"
)

// ListSource adapts the local store into a live survey-list feed for the
// selection controller. It emits one snapshot immediately, then a fresh
// one whenever the list changes underneath it; remote stream errors are
// forwarded as error snapshots.
type ListSource struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewListSource creates a store-backed survey source.
func NewListSource(db *store.DB, b *bus.Bus, logger *zap.Logger) *ListSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListSource{db: db, bus: b, logger: logger}
}

// WatchSurveys implements selector.SurveySource. The user email is not
// consulted here: the store only ever holds surveys visible to the
// signed-in user, so the local list is already scoped.
func (ls *ListSource) WatchSurveys(ctx context.Context, _ string) (<-chan selector.Snapshot, error) {
	events, unsub := ls.bus.Subscribe("", 16)

	out := make(chan selector.Snapshot, 1)
	out <- ls.read()

	go func() {
		defer unsub()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				var snap selector.Snapshot
				switch evt.Kind {
				case bus.KindListUpdated, bus.KindActivated, bus.KindOfflineRemoved:
					snap = ls.read()
				case bus.KindStreamError:
					err, _ := evt.Payload.(error)
					snap = selector.Snapshot{Err: err}
				default:
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (ls *ListSource) read() selector.Snapshot {
	surveys, err := ls.db.ListSurveys()
	if err != nil {
		ls.logger.Error("failed to read survey list", zap.Error(err))
		return selector.Snapshot{Err: err}
	}
	items := make([]selector.Item, 0, len(surveys))
	for _, s := range surveys {
		items = append(items, selector.Item{
			ID:               s.ID,
			Title:            s.Title,
			AvailableOffline: s.AvailableOffline,
		})
	}
	return selector.Snapshot{Items: items}
}
