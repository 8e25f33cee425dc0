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
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

// testSite returns a site rooted in a scratch directory, with timing
// short enough for tests.
func testSite(t *testing.T) *Site {
	dir := t.TempDir()
	site := DefaultSite()
	site.ProcServ = "/bin/procServ"
	site.StartupDir = "/scripts"
	site.ConfigFile = filepath.Join(dir, "config", "%s.toml")
	site.AuthFile = filepath.Join(dir, "config", "%s.auth")
	site.StatusDir = filepath.Join(dir, "status", "%s")
	site.LogFile = filepath.Join(dir, "logs", "%s.log_")
	site.PVFile = filepath.Join(dir, "pv", "%s.pvlist")
	site.Workers = 4
	site.Timeouts = Timeouts{
		Connect: 500 * time.Millisecond,
		Banner:  300 * time.Millisecond,
		Reply:   300 * time.Millisecond,
		Prompt:  300 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
		Settle:  5 * time.Millisecond,
		Pass:    10 * time.Millisecond,
		Retries: 2,
	}
	return site
}

// deadPort returns a local port that nothing is listening on.
func deadPort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// fakeSupervisor imitates the control port of a supervisor, or of a
// launcher, closely enough for the client to be driven against it.
type fakeSupervisor struct {
	ID          string
	Dir         string
	Running     bool
	AutoRestart bool

	Launcher  bool // accept command lines and answer with a prompt
	Mute      bool // never acknowledge anything
	Drop      bool // hang up on the first control byte
	Partial   bool // never finish the banner
	Hangup    bool // hang up right after the banner
	Negotiate bool // open with telnet option negotiation
	Linger    bool // keep listening after a quit

	Port     int
	Quit     bool
	Lines    []string
	Received []byte

	active int
	peak   int // most clients mid-conversation at once

	l     net.Listener
	conns map[net.Conn]bool
	mx    sync.Mutex
}

func newFake(id, dir string) *fakeSupervisor {
	return &fakeSupervisor{ID: id, Dir: dir, Running: true,
		conns: make(map[net.Conn]bool)}
}

func newLauncher() *fakeSupervisor {
	f := newFake("launcher", "/tmp")
	f.Launcher = true
	return f
}

// Start begins listening.  Settings must not be changed afterwards.
func (f *fakeSupervisor) Start() *fakeSupervisor {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	f.l = l
	f.Port = l.Addr().(*net.TCPAddr).Port
	go f.accept()
	return f
}

func (f *fakeSupervisor) Close() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.l.Close()
	for c := range f.conns {
		c.Close()
	}
}

func (f *fakeSupervisor) accept() {
	for {
		c, err := f.l.Accept()
		if err != nil {
			return
		}
		f.mx.Lock()
		f.conns[c] = true
		f.mx.Unlock()
		go f.serve(c)
	}
}

func (f *fakeSupervisor) banner() string {
	arst := "OFF"
	if f.AutoRestart {
		arst = "ON"
	}
	b := "@@@ Welcome to procServ (procServ Process Server 2.5.1)\r\n" +
		"@@@ Use ^X to kill the child, auto restart is " + arst +
		", use ^T to toggle auto restart\r\n" +
		"@@@ procServ server PID: 999\r\n" +
		"@@@ Server startup directory: " + f.Dir + "\r\n"
	if f.Running {
		b += fmt.Sprintf("@@@ Child \"%s\" started as: ./st.cmd\r\n", f.ID)
		b += fmt.Sprintf("@@@ Child \"%s\" PID: 1234\r\n", f.ID)
	} else {
		b += fmt.Sprintf("@@@ Child \"%s\" is SHUT DOWN\r\n", f.ID)
	}
	if f.Partial {
		return b
	}
	return b + "@@@ procServ server started at: Mon Oct 12 09:10:11 2026\r\n"
}

func (f *fakeSupervisor) serve(c net.Conn) {
	defer c.Close()

	f.mx.Lock()
	var hello string
	if f.Negotiate {
		hello = string([]byte{telIAC, telDO, 1, telIAC, telWILL, 3})
	}
	hello += f.banner()
	hangup := f.Hangup
	f.mx.Unlock()

	f.enter()
	live := true
	defer func() {
		if live {
			f.leave()
		}
	}()

	if _, err := c.Write([]byte(hello)); err != nil || hangup {
		return
	}

	var line []byte
	buf := make([]byte, 256)
	for {
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			// A client is through once its last exchange is under
			// way; counting stops before the answer goes out.
			if live && f.last(b, line) {
				live = false
				f.leave()
			}
			reply, done := f.handle(b, &line)
			if reply != "" {
				if _, err := c.Write([]byte(reply)); err != nil {
					return
				}
			}
			if done {
				return
			}
		}
	}
}

// handle processes one byte from the client, returning what to send back
// and whether to hang up.
func (f *fakeSupervisor) handle(b byte, line *[]byte) (string, bool) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.Received = append(f.Received, b)

	if f.Launcher {
		var reply string
		switch b {
		case 0x15:
			*line = (*line)[:0]
		case '\r', '\n':
			if len(*line) > 0 {
				f.Lines = append(f.Lines, string(*line))
				*line = (*line)[:0]
			}
			reply = MsgPrompt
		default:
			*line = append(*line, b)
		}
		if f.Mute {
			reply = ""
		}
		return reply, false
	}

	if isControl(b) && f.Drop {
		return "", true
	}
	var reply string
	switch b {
	case 0x14:
		f.AutoRestart = !f.AutoRestart
		if f.AutoRestart {
			reply = "@@@ Toggled auto restart to ON\r\n"
		} else {
			reply = "@@@ Toggled auto restart to OFF\r\n"
		}
	case 0x18:
		if f.Running {
			f.Running = false
			reply = "@@@ Got a sigChild for PID 1234: the process was killed by signal 9\r\n"
			if f.AutoRestart {
				f.Running = true
				reply += "@@@ Restarting child \"" + f.ID + "\"\r\n" +
					"@@@ The PID of new child \"" + f.ID + "\" is: 1235\r\n"
			}
		}
	case 0x12:
		if !f.Running {
			f.Running = true
			reply = "@@@ Restarting child \"" + f.ID + "\"\r\n" +
				"@@@ The PID of new child \"" + f.ID + "\" is: 1235\r\n"
		}
	case 0x11:
		f.Quit = true
		f.Running = false
		if !f.Linger {
			f.l.Close()
		}
		return "", true
	}
	if f.Mute {
		reply = ""
	}
	return reply, false
}

func (f *fakeSupervisor) enter() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
}

func (f *fakeSupervisor) leave() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.active--
}

// last reports whether b ends the conversation a client came for: a
// command line for a launcher, a kill or quit for a supervisor.
func (f *fakeSupervisor) last(b byte, line []byte) bool {
	if f.Launcher {
		return (b == '\r' || b == '\n') && len(line) > 0
	}
	return b == 0x18 || b == 0x11
}

// Busiest returns the most clients seen mid-conversation at once.
func (f *fakeSupervisor) Busiest() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.peak
}

func isControl(b byte) bool {
	return b == 0x11 || b == 0x12 || b == 0x14 || b == 0x18
}

// Controls waits up to a second for at least n control bytes to arrive,
// and returns those that have.
func (f *fakeSupervisor) Controls(n int) []byte {
	deadline := time.Now().Add(time.Second)
	for {
		f.mx.Lock()
		var ctl []byte
		for _, b := range f.Received {
			if isControl(b) {
				ctl = append(ctl, b)
			}
		}
		f.mx.Unlock()
		if len(ctl) >= n || time.Now().After(deadline) {
			return ctl
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Saw waits up to a second for the client to have sent seq.
func (f *fakeSupervisor) Saw(seq []byte) bool {
	deadline := time.Now().Add(time.Second)
	for {
		f.mx.Lock()
		found := strings.Contains(string(f.Received), string(seq))
		f.mx.Unlock()
		if found || time.Now().After(deadline) {
			return found
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Commands returns the command lines a launcher has received.
func (f *fakeSupervisor) Commands() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string{}, f.Lines...)
}

func (f *fakeSupervisor) State() (running, quit bool) {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.Running, f.Quit
}
