// Copyright 2026 The Fleetvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
	"github.com/fleetvisor/fleetvisor/rest"
)

// MainPanel shows the processes of the current fleet, one per line, with
// those needing attention first.
type MainPanel struct {
	content  *views.CellView
	selected string // id of the selected process
	width    int
	height   int
	curx     int
	cury     int
	lines    []string
	styles   []tcell.Style
	items    []rest.ProcInfo

	Panel
}

// mainModel provides the model for a CellArea.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	app := m.App()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			m.unselect()
			return true
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyEnter:
			if m.selected != "" {
				app.ShowInfo(m.selected)
				return true
			}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.Quit()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'I', 'i':
				if m.selected != "" {
					app.ShowInfo(m.selected)
					return true
				}
			case 'L', 'l':
				app.ShowLog(app.fleet)
				return true
			case 'G', 'g':
				app.ShowLog("")
				return true
			case 'N', 'n':
				m.unselect()
				app.NextFleet()
				return true
			case 'A', 'a':
				app.Apply()
				return true
			case 'F', 'f':
				app.Survey()
				return true
			case 'K', 'k':
				if p := m.running(); p != nil {
					app.Kill(p.ID)
					return true
				}
			case 'R', 'r':
				if p := m.running(); p != nil {
					app.Restart(p.ID)
					return true
				}
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

// running returns the selected process if it is running.
func (m *MainPanel) running() *rest.ProcInfo {
	if m.selected == "" {
		return nil
	}
	p, _ := m.App().GetItem(m.selected)
	if p == nil || util.Status(p) != "running" {
		return nil
	}
	return p
}

// Model items
func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	m := model.m

	if y < 0 || y >= len(m.lines) {
		return ' ', StyleNormal, nil, 1
	}

	ch := ' '
	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	}
	style := m.styles[y]
	if m.items[y].ID == m.selected {
		style = style.Reverse(true)
	}
	return ch, style, nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	// This assumes that all content is displayable runes of width 1.
	return model.m.width, model.m.height
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	m := model.m
	return m.curx, m.cury, true, false
}

func (model *mainModel) MoveCursor(offx, offy int) {
	m := model.m
	m.curx += offx
	m.cury += offy
	m.updateCursor(true)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	m.curx = x
	m.cury = y
	m.updateCursor(true)
}

func (m *MainPanel) unselect() {
	m.cury = 0
	m.curx = 0
	m.updateCursor(false)
}

func (m *MainPanel) updateCursor(selected bool) {
	if m.curx > m.width-1 {
		m.curx = m.width - 1
	}
	if m.cury > m.height-1 {
		m.cury = m.height - 1
	}
	if m.curx < 0 {
		m.curx = 0
	}
	if m.cury < 0 {
		m.cury = 0
	}
	if selected && m.height > 0 {
		if m.selected == "" {
			m.curx = 0
			m.cury = 0
		}
		m.selected = m.items[m.cury].ID
	} else {
		m.selected = ""
	}
}

// update is called to update content, e.g. in response to Draw() or
// as part of another update.
func (m *MainPanel) update() {
	app := m.App()
	fleet, info, err := app.GetFleet()
	m.items, _ = app.GetItems()
	m.SetTitle(fleet)

	// The selection follows the process, wherever it has sorted to.
	found := false
	for i := range m.items {
		if m.items[i].ID == m.selected {
			m.cury = i
			found = true
		}
	}
	if !found {
		m.selected = ""
	}

	words := []string{"[Q] Quit", "[H] Help", "[A] Apply", "[F] Refresh",
		"[N] Next fleet", "[L] Log"}

	if err != nil || info == nil {
		if err != nil {
			m.SetSeverity(util.Bad)
			m.SetStatus(fmt.Sprintf("Cannot load %s: %v", fleet, err))
		} else {
			m.SetSeverity(util.Idle)
			m.SetStatus("Loading...")
		}
		m.lines = nil
		m.styles = nil
		m.items = nil
		m.width, m.height = 0, 0
		m.SetKeys(words)
		return
	}

	lines := make([]string, 0, len(m.items))
	styles := make([]tcell.Style, 0, len(m.items))
	var counts [util.Bad + 1]int
	width := 0
	for i := range m.items {
		p := &m.items[i]
		line := fmt.Sprintf("%-24s %-10s %-8s %-28s %s",
			p.ID, util.Status(p), p.Pending, util.Location(p), p.Dir)
		if len(line) > width {
			width = len(line)
		}
		lines = append(lines, line)

		sev := util.Rate(p)
		counts[sev]++
		styles = append(styles, rowStyle(sev))
	}
	m.lines = lines
	m.styles = styles
	m.width = width
	m.height = len(lines)

	status := fmt.Sprintf(
		"%5d Processes %5d Running %5d Pending %5d Down %5d Idle",
		len(m.items), counts[util.Good], counts[util.Warn],
		counts[util.Bad], counts[util.Idle])
	if info.Busy {
		status += "   (pass in progress)"
	} else if !info.SurveyTime.IsZero() {
		d := time.Since(info.SurveyTime)
		status += "   as of " + util.FormatDuration(d) + " ago"
	}
	notice, bad := app.Notice()
	if notice != "" {
		status += "   " + notice
	}
	m.SetStatus(status)

	switch {
	case bad || counts[util.Bad] > 0 || info.Error != "":
		m.SetSeverity(util.Bad)
	case counts[util.Warn] > 0:
		m.SetSeverity(util.Warn)
	case counts[util.Good] > 0:
		m.SetSeverity(util.Good)
	default:
		m.SetSeverity(util.Idle)
	}

	if p := m.running(); p != nil {
		words = append(words, "[I] Info", "[K] Kill", "[R] Restart")
	} else if m.selected != "" {
		words = append(words, "[I] Info")
	}
	m.SetKeys(words)
}
