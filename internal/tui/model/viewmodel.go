package model

import (
	"context"
	"sync"
	"time"

	"github.com/groundctl/gnd/internal/api"
	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/tui/client"
)

// ViewModel caches daemon state for the UI and signals refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client       *client.Client
	Status       *api.StatusResponse
	SurveyList   *api.SurveyListResponse
	ActiveDetail *api.SurveyDetailResponse
	Flash        Flash

	refreshCh chan struct{}
	navCh     chan string
}

// NewViewModel creates a view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		refreshCh: make(chan struct{}, 1),
		navCh:     make(chan string, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// NavCh delivers one-shot navigation to the home screen after a
// successful activation. At most one event is buffered; events are
// consumed, never replayed.
func (vm *ViewModel) NavCh() <-chan string {
	return vm.navCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the current daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadSurveys fetches the ordered survey list.
func (vm *ViewModel) LoadSurveys(ctx context.Context) error {
	resp, err := vm.client.Surveys(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.SurveyList = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadDetail fetches the offline detail of one survey.
func (vm *ViewModel) LoadDetail(ctx context.Context, surveyID string) error {
	resp, err := vm.client.Survey(ctx, surveyID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveDetail = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Activate downloads the survey and, on success, emits one navigation
// event toward the home screen.
func (vm *ViewModel) Activate(ctx context.Context, surveyID string) error {
	if err := vm.client.Activate(ctx, surveyID); err != nil {
		vm.Flash.Set("Activation failed: "+err.Error(), 5*time.Second)
		vm.signalRefresh()
		return err
	}
	select {
	case vm.navCh <- surveyID:
	default:
	}
	vm.signalRefresh()
	return nil
}

// RemoveOffline asks the daemon to delete a survey's local copy. The
// daemon finishes the job even if the UI goes away right after.
func (vm *ViewModel) RemoveOffline(ctx context.Context, surveyID string) error {
	if err := vm.client.RemoveOffline(ctx, surveyID); err != nil {
		vm.Flash.Set("Removal failed: "+err.Error(), 5*time.Second)
		vm.signalRefresh()
		return err
	}
	vm.Flash.Set("Removing offline copy", 3*time.Second)
	vm.signalRefresh()
	return nil
}

// SignOut clears the stored identity.
func (vm *ViewModel) SignOut(ctx context.Context) error {
	return vm.client.SignOut(ctx)
}

// Terms fetches the terms-of-service text.
func (vm *ViewModel) Terms(ctx context.Context) (string, error) {
	resp, err := vm.client.Terms(ctx)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// WatchEvents long-polls the daemon event feed until the context ends,
// reloading cached state when something relevant happens.
func (vm *ViewModel) WatchEvents(ctx context.Context) {
	for ctx.Err() == nil {
		resp, err := vm.client.PollEvents(ctx, 25)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for _, evt := range resp.Events {
			switch evt.Kind {
			case bus.KindListUpdated, bus.KindActivated, bus.KindOfflineRemoved:
				_ = vm.LoadSurveys(ctx)
			case bus.KindStatusChanged, bus.KindSignedOut:
				_ = vm.LoadStatus(ctx)
			case bus.KindSent:
				vm.Flash.Set("Submission uploaded", 3*time.Second)
				vm.signalRefresh()
			case bus.KindSendFailed:
				vm.Flash.Set("Submission upload failed", 5*time.Second)
				vm.signalRefresh()
			case bus.KindFlash:
				if msg, ok := evt.Detail.(string); ok {
					vm.Flash.Set(msg, 3*time.Second)
					vm.signalRefresh()
				}
			}
		}
	}
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}

// GetSurveys returns a snapshot of the survey list.
func (vm *ViewModel) GetSurveys() *api.SurveyListResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.SurveyList
}

// GetDetail returns a snapshot of the loaded survey detail.
func (vm *ViewModel) GetDetail() *api.SurveyDetailResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveDetail
}
