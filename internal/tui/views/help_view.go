package views

import (
	"fmt"

	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates a new help view.
func NewHelpView() *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetTitle(" Help ")

	hv := &HelpView{TextView: tv}
	hv.render()
	return hv
}

func (hv *HelpView) render() {
	help := `
  [::b]Global Keys[-:-:-]

  [yellow]q[-:-:-]      Quit                [yellow]Esc[-:-:-]   Back to survey list
  [yellow]?[-:-:-]      This help           [yellow]Ctrl-C[-:-:-] Quit immediately

  [::b]Survey List[-:-:-]

  [yellow]Enter[-:-:-]  Activate survey (download for offline use)
  [yellow]r[-:-:-]      Remove offline copy of selected survey
  [yellow]t[-:-:-]      Show terms of service
  [yellow]o[-:-:-]      Sign out
  [yellow]j/Down[-:-:-] Move down           [yellow]k/Up[-:-:-]  Move up

  [::b]Active Survey[-:-:-]

  [yellow]Esc[-:-:-]    Back to survey list
`
	_, _ = fmt.Fprint(hv, help)
}
