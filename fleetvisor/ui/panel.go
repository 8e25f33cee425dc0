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
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
)

// Panel is a views.Panel with our bars: a title, a status line under it,
// and the keys along the bottom.
type Panel struct {
	tb   *TitleBar
	sb   *StatusBar
	kb   *KeyBar
	once sync.Once
	app  *App

	views.Panel
}

func (p *Panel) SetTitle(title string) {
	p.tb.SetCenter(title)
}

func (p *Panel) SetServer(server string) {
	p.tb.SetLeft(server)
}

func (p *Panel) SetKeys(words []string) {
	p.kb.SetKeys(words)
}

func (p *Panel) SetStatus(status string) {
	p.sb.SetText(status)
}

func (p *Panel) SetSeverity(sev util.Severity) {
	p.sb.SetSeverity(sev)
}

// rowStyle is the style of a line describing something of severity sev.
func rowStyle(sev util.Severity) tcell.Style {
	switch sev {
	case util.Good:
		return StyleGood
	case util.Warn:
		return StyleWarn
	case util.Bad:
		return StyleError
	}
	return StyleNormal
}

func (p *Panel) Init(app *App) {
	p.once.Do(func() {
		p.app = app

		p.tb = NewTitleBar()
		p.tb.SetRight(app.GetAppName())
		p.tb.SetLeft(app.server)
		p.tb.SetCenter(" ")

		p.kb = NewKeyBar()

		p.sb = NewStatusBar()

		p.Panel.SetTitle(p.tb)
		p.Panel.SetMenu(p.sb)
		p.Panel.SetStatus(p.kb)
	})
}

func (p *Panel) App() *App {
	return p.app
}

// commonKeys handles the keys that mean the same on every panel but the
// main one.
func (p *Panel) commonKeys(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEsc:
		p.app.ShowMain()
		return true
	case tcell.KeyF1:
		p.app.ShowHelp()
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'Q', 'q':
			p.app.ShowMain()
			return true
		case 'H', 'h':
			p.app.ShowHelp()
			return true
		}
	}
	return false
}
