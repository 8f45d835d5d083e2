package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/groundctl/gnd/internal/api"
)

// HomeView shows the active survey's offline content: its jobs and how
// much data is cached locally.
type HomeView struct {
	*tview.TextView
}

// NewHomeView creates the active-survey home view.
func NewHomeView() *HomeView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true).SetTitle(" Active Survey ")
	return &HomeView{TextView: tv}
}

// Update renders the survey detail.
func (hv *HomeView) Update(detail *api.SurveyDetailResponse) {
	hv.Clear()
	if detail == nil {
		_, _ = fmt.Fprint(hv, "\n  No active survey.")
		return
	}

	hv.SetTitle(fmt.Sprintf(" %s ", detail.Title))
	_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n", detail.Title)
	if detail.Description != "" {
		_, _ = fmt.Fprintf(hv, "  %s\n", detail.Description)
	}
	_, _ = fmt.Fprintf(hv, "\n  Sites: %d   Submissions: %d\n\n  [::b]Jobs[-:-:-]\n", detail.LOICount, detail.SubmissionCount)

	if len(detail.Jobs) == 0 {
		_, _ = fmt.Fprint(hv, "  (none downloaded)\n")
		return
	}
	for _, job := range detail.Jobs {
		_, _ = fmt.Fprintf(hv, "  - %s\n", job.Name)
	}
}
