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
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
)

const fieldWidth = 16

var (
	fieldFocus = tcell.StyleDefault.
			Foreground(tcell.ColorWhite).
			Background(tcell.ColorNavy)
	fieldIdle = StyleNormal
)

// field is a one line text entry.
type field struct {
	text   *views.Text
	value  []rune
	secret bool
}

func newField() *field {
	f := &field{text: views.NewText(), value: make([]rune, 0, 64)}
	f.text.SetStyle(fieldIdle)
	return f
}

// key edits the field, and reports whether the key was for it.
func (f *field) key(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlU, tcell.KeyCtrlW:
		f.value = f.value[:0]
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(f.value) > 0 {
			f.value = f.value[:len(f.value)-1]
		}
	case tcell.KeyRune:
		if len(f.value) < 256 {
			f.value = append(f.value, ev.Rune())
		}
	default:
		return false
	}
	return true
}

func (f *field) show(focus bool) {
	shown := f.value
	if f.secret {
		shown = []rune(strings.Repeat("*", len(f.value)))
	}
	shown = append([]rune{}, shown...)
	if focus {
		shown = append(shown, '_')
		f.text.SetStyle(fieldFocus)
	} else {
		f.text.SetStyle(fieldIdle)
	}
	if len(shown) > fieldWidth {
		shown = shown[len(shown)-fieldWidth:]
		shown[0] = '<'
	}
	for len(shown) < fieldWidth {
		shown = append(shown, ' ')
	}
	f.text.SetText(string(shown))
}

// AuthPanel asks who to make changes as.  It is shown when the server
// refuses a change for want of a user.
type AuthPanel struct {
	user   *field
	pass   *field
	onPass bool

	Panel
}

func NewAuthPanel(app *App) *AuthPanel {
	a := &AuthPanel{user: newField(), pass: newField()}
	a.pass.secret = true
	a.Panel.Init(app)

	prompt := func(s string) *views.Text {
		t := views.NewText()
		t.SetText(s)
		t.SetStyle(StyleNormal)
		return t
	}
	column := func(top, bottom views.Widget) *views.BoxLayout {
		b := views.NewBoxLayout(views.Vertical)
		b.SetStyle(StyleNormal)
		b.AddWidget(views.NewSpacer(), 1.0)
		b.AddWidget(top, 0.0)
		b.AddWidget(bottom, 0.0)
		b.AddWidget(views.NewSpacer(), 1.0)
		return b
	}

	layout := views.NewBoxLayout(views.Horizontal)
	layout.SetStyle(StyleNormal)
	layout.AddWidget(views.NewSpacer(), 1.0)
	layout.AddWidget(column(prompt("Username: "), prompt("Password: ")), 0.0)
	layout.AddWidget(column(a.user.text, a.pass.text), 0.0)
	layout.AddWidget(views.NewSpacer(), 1.0)

	a.SetTitle("Authentication Required")
	a.SetStatus("The server needs to know who is making changes")
	a.SetKeys([]string{"[ESC] Cancel", "[TAB] Next field", "[ENTER] Done"})
	a.SetContent(layout)
	return a
}

func (a *AuthPanel) ResetFields() {
	a.onPass = false
	a.user.value = a.user.value[:0]
	a.pass.value = a.pass.value[:0]
}

func (a *AuthPanel) Draw() {
	a.SetSeverity(util.Warn)
	a.user.show(!a.onPass)
	a.pass.show(a.onPass)
	a.Panel.Draw()
}

func (a *AuthPanel) HandleEvent(ev tcell.Event) bool {
	kev, ok := ev.(*tcell.EventKey)
	if !ok {
		return a.Panel.HandleEvent(ev)
	}
	switch kev.Key() {
	case tcell.KeyEsc:
		a.App().ShowMain()
	case tcell.KeyEnter:
		if a.onPass || len(a.user.value) > 0 {
			a.App().SetUser(string(a.user.value), string(a.pass.value))
			a.App().ShowMain()
		}
	case tcell.KeyTab, tcell.KeyBacktab:
		a.onPass = !a.onPass
	default:
		if a.onPass {
			return a.pass.key(kev)
		}
		return a.user.key(kev)
	}
	return true
}
