package views

import (
	"github.com/rivo/tview"

	"github.com/groundctl/gnd/internal/api"
)

// SurveyList is the main survey selection table. Offline surveys always
// sort first; ordering comes from the daemon untouched.
type SurveyList struct {
	*tview.Table
	items      []api.SurveyItem
	selectedFn func() (int, int)
}

// NewSurveyList creates a new survey list table.
func NewSurveyList() *SurveyList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Surveys ")

	sl := &SurveyList{Table: table}
	sl.selectedFn = table.GetSelection
	return sl
}

// Update refreshes the table with the daemon's current list.
func (sl *SurveyList) Update(list *api.SurveyListResponse) {
	sl.Clear()
	if list == nil {
		return
	}
	sl.items = list.Items

	sl.SetCell(0, 0, tview.NewTableCell(" Title").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	sl.SetCell(0, 1, tview.NewTableCell(" Offline").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	switch list.Status {
	case "LOADING":
		sl.SetTitle(" Surveys (loading…) ")
	case "NOT_FOUND":
		sl.SetTitle(" Surveys (none visible) ")
	case "FAILED":
		sl.SetTitle(" Surveys (sync failed) ")
	default:
		sl.SetTitle(" Surveys ")
	}

	for i, item := range list.Items {
		row := i + 1
		offline := ""
		if item.AvailableOffline {
			offline = "[green]yes[-]"
		}
		sl.SetCell(row, 0, tview.NewTableCell(" "+item.Title).SetMaxWidth(50).SetExpansion(2))
		sl.SetCell(row, 1, tview.NewTableCell(" "+offline).SetMaxWidth(10))
	}
}

// Selected returns the id of the currently selected survey.
func (sl *SurveyList) Selected() string {
	row, _ := sl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(sl.items) {
		return sl.items[idx].ID
	}
	return ""
}
