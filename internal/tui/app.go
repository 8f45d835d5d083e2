package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/groundctl/gnd/internal/tui/client"
	"github.com/groundctl/gnd/internal/tui/keys"
	"github.com/groundctl/gnd/internal/tui/model"
	"github.com/groundctl/gnd/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	vm         *model.ViewModel
	registry   *keys.Registry
	statusBar  *views.StatusBar
	surveyList *views.SurveyList
	homeView   *views.HomeView
	helpView   *views.HelpView
	termsView  *tview.TextView
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		vm:         model.NewViewModel(c),
		registry:   keys.NewRegistry(),
		statusBar:  views.NewStatusBar(),
		surveyList: views.NewSurveyList(),
		homeView:   views.NewHomeView(),
		helpView:   views.NewHelpView(),
		ctx:        ctx,
		cancel:     cancel,
	}
	a.termsView = tview.NewTextView().SetScrollable(true)
	a.termsView.SetBorder(true)
	a.termsView.SetTitle(" Terms of Service ")

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.pages.SwitchToPage("help") },
	})
	a.registry.AddView("surveys", "remove", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:remove offline", Visible: true,
		Handler: func() { a.removeSelected() },
	})
	a.registry.AddView("surveys", "terms", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "t:terms", Visible: true,
		Handler: func() { a.showTerms() },
	})
	a.registry.AddView("surveys", "signout", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:sign out", Visible: true,
		Handler: func() { a.signOut() },
	})
}

func (a *App) setupCallbacks() {
	a.surveyList.SetSelectedFunc(func(row, col int) {
		id := a.surveyList.Selected()
		if id != "" {
			a.activateSurvey(id)
		}
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage("surveys", a.surveyList, true, true)
	a.pages.AddPage("home", a.homeView, true, false)
	a.pages.AddPage("help", a.helpView, true, false)
	a.pages.AddPage("terms", a.termsView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "home", "help", "terms":
				a.pages.SwitchToPage("surveys")
				a.app.SetFocus(a.surveyList)
				return nil
			}
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

// activateSurvey downloads the survey in the background; navigation to
// the home page happens only through the view model's one-shot channel.
func (a *App) activateSurvey(id string) {
	a.vm.Flash.Set("Activating…", 10*time.Second)
	a.redraw()
	go func() {
		if err := a.vm.Activate(a.ctx, id); err != nil {
			a.redraw()
			return
		}
		_ = a.vm.LoadSurveys(a.ctx)
	}()
}

func (a *App) removeSelected() {
	id := a.surveyList.Selected()
	if id == "" {
		return
	}
	go func() {
		_ = a.vm.RemoveOffline(a.ctx, id)
		_ = a.vm.LoadSurveys(a.ctx)
	}()
}

func (a *App) showTerms() {
	go func() {
		text, err := a.vm.Terms(a.ctx)
		if err != nil {
			a.vm.Flash.Set("Terms unavailable: "+err.Error(), 5*time.Second)
			a.redraw()
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.termsView.Clear()
			a.termsView.SetText(text)
			a.pages.SwitchToPage("terms")
		})
	}()
}

func (a *App) signOut() {
	go func() {
		if err := a.vm.SignOut(a.ctx); err != nil {
			a.vm.Flash.Set("Sign-out failed: "+err.Error(), 5*time.Second)
		} else {
			a.vm.Flash.Set("Signed out", 3*time.Second)
		}
		_ = a.vm.LoadStatus(a.ctx)
		a.redraw()
	}()
}

func (a *App) openHome(surveyID string) {
	go func() {
		if err := a.vm.LoadDetail(a.ctx, surveyID); err != nil {
			a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.redraw()
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.homeView.Update(a.vm.GetDetail())
			a.pages.SwitchToPage("home")
			a.app.SetFocus(a.homeView)
		})
	}()
}

func (a *App) redraw() {
	a.app.QueueUpdateDraw(func() {
		currentPage, _ := a.pages.GetFrontPage()
		if currentPage == "surveys" {
			a.surveyList.Update(a.vm.GetSurveys())
		}
		if st := a.vm.GetStatus(); st != nil {
			a.statusBar.SetState(st.State)
			a.statusBar.SetUser(st.Email)
		}
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		_ = a.vm.LoadSurveys(a.ctx)
		a.redraw()

		go a.vm.WatchEvents(a.ctx)
		a.startLoops()
	}()

	return a.app.Run()
}

func (a *App) startLoops() {
	// Repaint whenever the view model changes, navigate exactly once per
	// successful activation.
	go func() {
		for {
			select {
			case <-a.vm.RefreshCh():
				a.redraw()
			case surveyID := <-a.vm.NavCh():
				a.openHome(surveyID)
			case <-a.ctx.Done():
				return
			}
		}
	}()

	// Periodic fallback refresh in case an event poll was missed.
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				_ = a.vm.LoadSurveys(a.ctx)
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
