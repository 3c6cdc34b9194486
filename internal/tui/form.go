package tui

import (
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"
)

// searchEditor edits the keyword popup. Every keystroke is handed to the
// page at once; the page debounces it before anything is fetched.
type searchEditor struct {
	ui *UI
}

func (e *searchEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || !ui.searchActive || view == nil {
		return false
	}

	switch key {
	case gocui.KeyEnter, gocui.KeyEsc:
		return false
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(ui.searchValue)
		if len(runes) > 0 {
			ui.setSearch(string(runes[:len(runes)-1]))
		}
	case gocui.KeySpace:
		ui.setSearch(ui.searchValue + " ")
	case gocui.KeyCtrlU:
		ui.setSearch("")
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		ui.setSearch(ui.searchValue + string(ch))
	}

	renderSearch(view, ui.searchValue)
	return true
}

func renderSearch(view *gocui.View, value string) {
	view.Clear()
	fmt.Fprint(view, value)
	view.SetCursor(len([]rune(value)), 0)
}

// setSearch records the raw keyword and forwards it to the page.
func (u *UI) setSearch(value string) {
	u.searchValue = value
	if u.screen != nil {
		u.screen.Page().SetKeyword(value)
	}
}

func (u *UI) startSearch(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if !searchable(u.screen) {
		u.status = "search is only available on the knowledge base list"
		return nil
	}
	u.searchActive = true
	u.searchBefore = u.screen.Page().Keyword()
	u.searchValue = u.searchBefore
	return nil
}

func (u *UI) submitSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	u.searchValue = strings.TrimSpace(u.searchValue)
	u.closePopup(gui, viewSearch)
	return nil
}

// cancelSearch restores the keyword that was active before the popup opened.
func (u *UI) cancelSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	u.setSearch(u.searchBefore)
	u.closePopup(gui, viewSearch)
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewSearch, x0, y0, x1, y1, 0)
	if err != nil && !isUnknownView(err) {
		return err
	}
	if isUnknownView(err) {
		view.Title = "Search knowledge bases (enter keep, esc revert)"
		view.Wrap = false
		renderSearch(view, u.searchValue)
	}
	view.Editable = true
	view.Editor = u.searchEditor
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}
