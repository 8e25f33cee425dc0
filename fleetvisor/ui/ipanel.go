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

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
)

// InfoPanel shows everything known about one process.
type InfoPanel struct {
	text *views.TextArea
	id   string

	Panel
}

func NewInfoPanel(app *App) *InfoPanel {
	p := &InfoPanel{}
	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)
	return p
}

func (p *InfoPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *InfoPanel) HandleEvent(ev tcell.Event) bool {
	app := p.App()
	if ev, ok := ev.(*tcell.EventKey); ok {
		if p.commonKeys(ev) {
			return true
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'L', 'l':
				app.ShowLog(app.fleet)
				return true
			case 'K', 'k':
				app.Kill(p.id)
				return true
			case 'R', 'r':
				app.Restart(p.id)
				return true
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

func (p *InfoPanel) SetID(id string) {
	p.id = id
}

func (p *InfoPanel) update() {
	app := p.App()
	p.SetTitle(fmt.Sprintf("%s in %s", p.id, app.fleet))
	words := []string{"[ESC] Main", "[H] Help", "[L] Log"}

	s, err := app.GetItem(p.id)
	if s == nil {
		if err != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", err))
			p.SetSeverity(util.Bad)
		} else {
			p.SetStatus("Loading...")
			p.SetSeverity(util.Idle)
		}
		p.text.SetLines(nil)
		p.SetKeys(words)
		return
	}

	status := ""
	if s.Pending != "" {
		status = "Next pass will " + s.Pending + " it"
	}
	if notice, _ := app.Notice(); notice != "" {
		status += "   " + notice
	}
	p.SetStatus(status)
	p.SetSeverity(util.Rate(s))

	f := "%14s %v"
	lines := []string{
		fmt.Sprintf(f, "Id:", s.ID),
		fmt.Sprintf(f, "Status:", s.Status),
		fmt.Sprintf(f, "Configured:", s.Configured),
		fmt.Sprintf(f, "Disabled:", s.Disable),
		fmt.Sprintf(f, "Wanted at:", fmt.Sprintf("%s:%d", s.Host, s.Port)),
		fmt.Sprintf(f, "Wanted from:", s.Dir),
		"",
	}
	if s.RHost != "" {
		lines = append(lines,
			fmt.Sprintf(f, "Running at:", fmt.Sprintf("%s:%d", s.RHost, s.RPort)),
			fmt.Sprintf(f, "Running from:", s.RDir),
			fmt.Sprintf(f, "PID:", s.PID),
			fmt.Sprintf(f, "Auto restart:", s.AutoRestart),
			fmt.Sprintf(f, "Has marker:", s.NewStyle))
	}
	p.text.SetLines(lines)

	if util.Status(s) == "running" {
		words = append(words, "[K] Kill", "[R] Restart")
	}
	p.SetKeys(words)
}
