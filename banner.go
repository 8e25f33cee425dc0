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

package fleetvisor

import (
	"strings"
)

// Banner is what a supervisor tells us about itself when we connect.
type Banner struct {
	Status      Status
	PID         string
	ID          string
	AutoRestart bool
	Dir         string // normalized startup directory
	Text        string // the raw banner, for diagnostics
}

func errorBanner(text string) Banner {
	return Banner{
		Status: StatusError,
		PID:    NoPID,
		ID:     NoID,
		Dir:    NoDir,
		Text:   text,
	}
}

type tokenKind int

const (
	tokEnd tokenKind = iota
	tokShutDown
	tokAutoRestart
	tokChildPID
	tokChildStart
	tokServerDir
)

type token struct {
	kind  tokenKind
	name  string
	value string
}

// scanBanner breaks banner text into the markers we care about.  Lines
// that carry no marker produce no tokens, so unexpected chatter from the
// supervisor is ignored rather than tripping up the parse.
func scanBanner(text string) []token {
	var toks []token
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.Contains(line, MsgBannerEnd) {
			toks = append(toks, token{kind: tokEnd})
		}
		if strings.Contains(line, MsgIsShutDown) {
			toks = append(toks, token{kind: tokShutDown})
		}
		if strings.Contains(line, MsgAutoRestartIsOn) {
			toks = append(toks, token{kind: tokAutoRestart})
		}
		if i := strings.Index(line, bannerServerDir); i >= 0 {
			toks = append(toks, token{
				kind:  tokServerDir,
				value: strings.TrimSpace(line[i+len(bannerServerDir):]),
			})
		}
		if i := strings.Index(line, bannerChild); i >= 0 {
			if t, ok := scanChild(line[i+len(bannerChild):]); ok {
				toks = append(toks, t)
			}
		}
	}
	return toks
}

// scanChild handles the remainder of an `@@@ Child "<name>" ...` line.
func scanChild(rest string) (token, bool) {
	for off := 0; off < len(rest); {
		q := strings.Index(rest[off:], "\" ")
		if q < 0 {
			break
		}
		q += off
		name, tail := rest[:q], rest[q+2:]
		switch {
		case strings.HasPrefix(tail, "PID: "):
			pid := tail[len("PID: "):]
			n := 0
			for n < len(pid) && pid[n] >= '0' && pid[n] <= '9' {
				n++
			}
			return token{kind: tokChildPID, name: name, value: pid[:n]}, true
		case strings.HasPrefix(tail, "start"):
			return token{kind: tokChildStart, name: name}, true
		}
		off = q + 1
	}
	return token{}, false
}

// parseBanner interprets banner text, which should run up to and
// including MsgBannerEnd.  Anything short of that yields an error banner.
func parseBanner(text string, layout Layout) Banner {
	var end, down, arst, havePID bool
	var pid, id string
	dir := NoDir
	for _, t := range scanBanner(text) {
		switch t.kind {
		case tokEnd:
			end = true
		case tokShutDown:
			down = true
		case tokAutoRestart:
			arst = true
		case tokChildPID:
			havePID = true
			pid = t.value
		case tokChildStart:
			id = t.name
		case tokServerDir:
			dir = t.value
		}
	}
	if !end {
		return errorBanner(text)
	}
	b := Banner{
		AutoRestart: arst,
		ID:          id,
		Text:        text,
	}
	switch {
	case down:
		b.Status = StatusShutdown
		b.PID = NoPID
	case havePID:
		b.Status = StatusRunning
		b.PID = pid
	default:
		// Running, but no child identity: treat as garbage.
		return errorBanner(text)
	}
	if b.ID == "" {
		b.ID = NoID
	}
	if dir != NoDir {
		dir = layout.FixDir(dir, b.ID)
	}
	b.Dir = dir
	return b
}
