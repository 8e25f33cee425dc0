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
	"context"
	"errors"
	"log"
	"os"
	"time"
)

// Controller issues kill, restart and start requests to supervisors.  Each
// request opens its own Session and runs its command sequence to
// completion on it.
type Controller struct {
	site   *Site
	logger *log.Logger

	// ScriptRoot is the directory holding the startProc script used when
	// an entry has no command of its own.  It defaults to $SCRIPTROOT,
	// or the site StartupDir.
	ScriptRoot string

	// Now supplies launch timestamps.
	Now func() time.Time
}

// NewController returns a Controller for the site.
func NewController(site *Site) *Controller {
	c := &Controller{
		site:       site,
		logger:     log.New(os.Stderr, "", log.LstdFlags),
		ScriptRoot: os.Getenv("SCRIPTROOT"),
		Now:        time.Now,
	}
	if c.ScriptRoot == "" {
		c.ScriptRoot = site.StartupDir
	}
	return c
}

// SetLogger directs the controller's messages to l.
func (c *Controller) SetLogger(l *log.Logger) {
	c.logger = l
}

func (c *Controller) logf(format string, v ...interface{}) {
	c.logger.Printf(format, v...)
}

func (c *Controller) dial(ctx context.Context, host string, port int) (*Session, error) {
	t := c.site.Timeouts
	s, err := DialRetry(ctx, host, port, t.Connect, t.Retries, t.Backoff)
	if err != nil {
		return nil, err
	}
	s.Layout = c.site.Layout()
	s.WriteTimeout = t.Reply
	return s, nil
}

// sequence runs the steps of one command sequence.  A missing
// acknowledgement is remembered and the sequence carries on; losing the
// connection (or the context) ends it.
type sequence struct {
	c    *Controller
	s    *Session
	ctx  context.Context
	what string
	err  error
}

func (q *sequence) do(cmd Command) bool {
	if q.ctx.Err() != nil {
		q.err = q.ctx.Err()
		return false
	}
	err := q.s.Do(cmd, q.c.site.Timeouts.Reply)
	var perr *ProtocolError
	switch {
	case err == nil:
		return true
	case errors.As(err, &perr):
		q.c.logf("ERROR: %s: %v", q.what, err)
		if q.err == nil {
			q.err = err
		}
		return true
	}
	q.fail(err)
	return false
}

func (q *sequence) fail(err error) {
	if IsWarning(err) {
		q.c.logf("WARNING: %s: %v", q.what, err)
	}
	q.err = err
}

func (q *sequence) settle() {
	pause(q.ctx, q.c.site.Timeouts.Settle)
}

// Kill stops the process at host:port and then the supervisor itself, so
// that the port is free for a new one.  Auto restart is switched off first
// when it is on, otherwise the supervisor would simply launch a
// replacement.
//
// An unreachable supervisor yields an UnreachableError and nothing is
// done.  If the connection drops part way, the error is a
// ConnectionLostError; the target has very likely died as asked, so
// callers should treat that as a warning.
func (c *Controller) Kill(ctx context.Context, host string, port int) error {
	c.logf("Killing process on host %s, port %d...", host, port)
	s, err := c.dial(ctx, host, port)
	if err != nil {
		c.logf("ERROR: kill: %v", err)
		return err
	}
	defer s.Close()

	q := &sequence{c: c, s: s, ctx: ctx, what: "kill"}
	b := s.ReadBanner(c.site.Timeouts.Banner)
	switch b.Status {
	case StatusRunning:
		if b.AutoRestart {
			if !q.do(CmdAutoRestartOff) {
				return q.err
			}
			q.settle()
		}
		if !q.do(CmdKill) {
			return q.err
		}
		q.settle()
		q.do(CmdQuit)
	case StatusShutdown:
		q.do(CmdQuit)
	default:
		q.err = &ProtocolError{Host: host, Port: port,
			Detail: "unrecognized banner, not killing"}
		c.logf("ERROR: kill: %v", q.err)
	}
	return q.err
}

// Restart restarts the process at host:port in place and reports whether
// the supervisor announced the new child.
func (c *Controller) Restart(ctx context.Context, host string, port int) (bool, error) {
	c.logf("Restarting process on host %s, port %d...", host, port)
	s, err := c.dial(ctx, host, port)
	if err != nil {
		c.logf("ERROR: restart: %v", err)
		return false, err
	}
	defer s.Close()

	q := &sequence{c: c, s: s, ctx: ctx, what: "restart"}
	b := s.ReadBanner(c.site.Timeouts.Banner)
	if b.Status == StatusRunning {
		if !q.do(CmdKill) {
			return false, q.err
		}
		q.settle()
	}
	if !b.AutoRestart {
		// With auto restart on, the supervisor relaunches by itself.
		if err := s.Send(CtrlRestart); err != nil {
			q.fail(err)
			return false, q.err
		}
	}
	ok, err := s.WaitFor(MsgRestart, c.site.Timeouts.Reply)
	if err != nil {
		q.fail(err)
		return false, q.err
	}
	if !ok {
		c.logf("ERROR: no restart message from %s port %d", host, port)
		return false, &ProtocolError{Host: host, Port: port,
			Detail: "no restart message"}
	}
	return true, nil
}

// Start launches a process through the launcher supervisor on its host.
// It returns once the launcher has accepted the command; whether the
// process came up is only seen on the next pass.
func (c *Controller) Start(ctx context.Context, e DesiredEntry, fleet string) error {
	cmd := c.LaunchCommand(e, fleet, c.Now())
	port := c.site.LauncherPort(fleet)
	c.logf("Starting %s on port %d of host %s, platform %d...",
		e.ID, e.Port, e.Host, c.site.Platform(fleet))

	t := c.site.Timeouts
	s, err := Dial(ctx, e.Host, port, t.Connect)
	if err != nil {
		c.logf("ERROR: telnet to launcher (%s port %d) failed", e.Host, port)
		c.logf(">>> Please start the launcher procServ on host %s, port %d!",
			e.Host, port)
		return err
	}
	defer s.Close()
	s.WriteTimeout = t.Reply

	q := &sequence{c: c, s: s, ctx: ctx, what: "start " + e.ID}

	// ^U and a carriage return get us a clean prompt, whatever was
	// typed at the launcher before.
	if err := s.Send(CmdResetInput.Bytes); err != nil {
		q.fail(err)
		return q.err
	}
	if ok, err := s.WaitFor(MsgPrompt, t.Prompt); err != nil {
		q.fail(err)
		return q.err
	} else if !ok {
		c.logf("ERROR: no prompt at %s port %d", e.Host, port)
	}

	if err := s.Send([]byte(cmd + "\n")); err != nil {
		q.fail(err)
		return q.err
	}
	if ok, err := s.WaitFor(MsgPrompt, t.Prompt); err != nil {
		q.fail(err)
		return q.err
	} else if !ok {
		c.logf("ERROR: no prompt at %s port %d after launch", e.Host, port)
		return &ProtocolError{Host: e.Host, Port: port,
			Detail: "launcher did not return to its prompt"}
	}
	return nil
}

// pause sleeps for d, or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
