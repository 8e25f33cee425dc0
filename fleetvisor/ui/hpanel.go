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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

type HelpPanel struct {
	text *views.TextArea

	Panel
}

func NewHelpPanel(app *App) *HelpPanel {
	h := &HelpPanel{}
	h.Panel.Init(app)
	h.SetTitle("Help")

	h.text = views.NewTextArea()
	h.text.EnableCursor(false)
	h.text.SetStyle(StyleNormal)
	h.text.SetLines([]string{
		"Supported keys (not all keys available in all contexts)",
		"",
		"  <ESC>          : return to main screen",
		"  <CTRL-C>       : quit",
		"  <CTRL-L>       : refresh the screen",
		"  <H>            : show this help",
		"  <UP>, <DOWN>   : navigation",
		"  <N>            : switch to the next fleet",
		"  <A>            : apply the fleet now",
		"  <F>            : look at the fleet again",
		"  <I>            : view details of the selected process",
		"  <K>            : kill the selected process",
		"  <R>            : restart the selected process in place",
		"  <L>            : view the fleet's log",
		"  <G>            : view the consolidated log",
		"",
		"A killed process is started again by the next pass if it is",
		"still configured.  Changing a fleet needs a user on its",
		"allow-list; you are asked for one when the server wants it.",
		"",
		"This program is distributed under the Apache 2.0 License",
		"Copyright 2026 The Fleetvisor Authors",
	})
	h.SetContent(h.text)
	h.SetKeys([]string{"[ESC] Main"})

	return h
}

func (h *HelpPanel) HandleEvent(ev tcell.Event) bool {
	if ev, ok := ev.(*tcell.EventKey); ok {
		switch ev.Key() {
		case tcell.KeyEsc:
			h.App().ShowMain()
			return true
		case tcell.KeyRune:
			if ev.Rune() == 'Q' || ev.Rune() == 'q' {
				h.App().ShowMain()
				return true
			}
		}
	}
	return h.Panel.HandleEvent(ev)
}
