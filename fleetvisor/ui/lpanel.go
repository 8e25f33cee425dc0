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
)

// LogPanel shows the log of a fleet, or the consolidated log of the
// server.
type LogPanel struct {
	text *views.TextArea
	name string // fleet name, "" for the server

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	app := p.App()
	if ev, ok := ev.(*tcell.EventKey); ok {
		if p.commonKeys(ev) {
			return true
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'G', 'g':
				if p.name != "" {
					app.ShowLog("")
					return true
				}
			case 'L', 'l':
				if p.name == "" {
					app.ShowLog(app.fleet)
					return true
				}
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

func (p *LogPanel) SetName(name string) {
	p.SetTitle("Loading")
	p.text.SetLines(nil)
	p.name = name
}

func (p *LogPanel) update() {
	info, err := p.App().GetLog(p.name)

	words := []string{"[ESC] Main", "[H] Help"}
	if p.name == "" {
		p.SetTitle("Consolidated Log")
		words = append(words, "[L] Fleet log")
	} else {
		p.SetTitle("Log for " + p.name)
		words = append(words, "[G] Consolidated log")
	}
	p.SetKeys(words)

	if info == nil {
		if err != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", err))
			p.SetSeverity(util.Bad)
		} else {
			p.SetStatus("Loading...")
			p.SetSeverity(util.Idle)
		}
		p.text.SetLines([]string{""})
		return
	}

	p.SetStatus(fmt.Sprintf("%d lines", len(info.Records)))
	p.SetSeverity(util.Idle)
	lines := make([]string, 0, len(info.Records))
	for _, r := range info.Records {
		lines = append(lines, fmt.Sprintf("%s %s",
			r.Time.Format(time.StampMilli), r.Text))
	}
	p.text.SetLines(lines)
}
