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
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
)

var (
	barStyle = tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
	barAccent = tcell.StyleDefault.
			Foreground(tcell.ColorBlue).
			Background(tcell.ColorSilver)
)

// TitleBar is the top line of every panel: server on the left, what the
// panel shows in the middle, and the program on the right.
type TitleBar struct {
	once sync.Once
	views.SimpleStyledTextBar
}

func (tb *TitleBar) Init() {
	tb.once.Do(func() {
		tb.SimpleStyledTextBar.Init()
		tb.SimpleStyledTextBar.SetStyle(barStyle)
		for _, reg := range []func(rune, tcell.Style){
			tb.RegisterLeftStyle,
			tb.RegisterCenterStyle,
			tb.RegisterRightStyle,
		} {
			reg('N', barStyle)
			reg('A', barAccent)
		}
	})
}

func NewTitleBar() *TitleBar {
	tb := &TitleBar{}
	tb.Init()
	return tb
}

// StatusBar is the line under the title.  Its color reflects how healthy
// whatever is shown is.
type StatusBar struct {
	once   sync.Once
	status string
	views.SimpleStyledTextBar
}

var (
	StatusBarStyleNormal = barStyle
	StatusBarStyleGood   = tcell.StyleDefault.
				Foreground(tcell.ColorWhite).
				Background(tcell.ColorGreen).
				Bold(true)
	StatusBarStyleWarn = tcell.StyleDefault.
				Foreground(tcell.ColorBlack).
				Background(tcell.ColorYellow)
	StatusBarStyleError = tcell.StyleDefault.
				Foreground(tcell.ColorWhite).
				Background(tcell.ColorMaroon).
				Bold(true)
)

func (sb *StatusBar) Init() {
	sb.once.Do(func() {
		sb.SimpleStyledTextBar.Init()
		sb.SetSeverity(util.Idle)
	})
}

func (sb *StatusBar) SetStyle(style tcell.Style) {
	sb.SimpleStyledTextBar.SetStyle(style)
	sb.SimpleStyledTextBar.RegisterLeftStyle('N', style)
	sb.SimpleStyledTextBar.SetLeft(sb.status)
}

// SetSeverity colors the bar for the worst thing on show.
func (sb *StatusBar) SetSeverity(sev util.Severity) {
	switch sev {
	case util.Good:
		sb.SetStyle(StatusBarStyleGood)
	case util.Warn:
		sb.SetStyle(StatusBarStyleWarn)
	case util.Bad:
		sb.SetStyle(StatusBarStyleError)
	default:
		sb.SetStyle(StatusBarStyleNormal)
	}
}

// SetText sets the message.  A % is shown as is.
func (sb *StatusBar) SetText(status string) {
	sb.status = strings.ReplaceAll(status, "%", "%%")
	sb.SetLeft(sb.status)
}

func NewStatusBar() *StatusBar {
	sb := &StatusBar{}
	sb.Init()
	return sb
}

// KeyBar is the bottom line, listing the keys that do something.  The key
// in brackets is highlighted, so "[Q] Quit" shows Q in the accent style.
type KeyBar struct {
	once sync.Once
	views.SimpleStyledTextBar
}

func (k *KeyBar) Init() {
	k.once.Do(func() {
		k.SimpleStyledTextBar.Init()
		k.SimpleStyledTextBar.SetStyle(barStyle)
		k.RegisterLeftStyle('N', barStyle)
		k.RegisterLeftStyle('A', barAccent.Bold(true))
	})
}

func (k *KeyBar) SetKeys(words []string) {
	var b strings.Builder
	for i, w := range words {
		if i != 0 {
			b.WriteByte(' ')
		}
		w = strings.ReplaceAll(w, "%", "%%")
		w = strings.ReplaceAll(w, "[", "[%A")
		w = strings.ReplaceAll(w, "]", "%N]")
		b.WriteString(w)
	}
	k.SetLeft(b.String())
}

func NewKeyBar() *KeyBar {
	kb := &KeyBar{}
	kb.Init()
	return kb
}
