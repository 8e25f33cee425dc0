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
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// Session is one telnet connection to a supervisor control port.  A
// Session is not safe for concurrent use; a command sequence against a
// target is expected to run start to finish on one goroutine.
type Session struct {
	Host string
	Port int

	// Layout is used to normalize the startup directory in the banner.
	Layout Layout

	// WriteTimeout bounds each Send.
	WriteTimeout time.Duration

	ctx    context.Context
	conn   net.Conn
	tel    telnetFilter
	buf    []byte
	stop   func() bool
	closer sync.Once
}

// Dial opens a session, making a single connection attempt.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Session, error) {
	d := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &UnreachableError{Host: host, Port: port, Err: err}
	}
	s := &Session{
		Host:         host,
		Port:         port,
		WriteTimeout: time.Second,
		ctx:          ctx,
		conn:         conn,
	}
	// Cancelling the context unblocks any read or write in progress.
	s.stop = context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	return s, nil
}

// DialRetry is Dial for callers about to issue commands.  It makes up to
// attempts connection attempts, pausing backoff between them.
func DialRetry(ctx context.Context, host string, port int, timeout time.Duration,
	attempts int, backoff time.Duration) (*Session, error) {

	var err error
	for i := 0; i < attempts; i++ {
		var s *Session
		if s, err = Dial(ctx, host, port, timeout); err == nil {
			return s, nil
		}
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return nil, err
			case <-time.After(backoff):
			}
		}
	}
	return nil, err
}

// Close releases the connection.  It may be called more than once.
func (s *Session) Close() error {
	var err error
	s.closer.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		err = s.conn.Close()
	})
	return err
}

// fill reads whatever the peer has sent, waiting no later than deadline.
func (s *Session) fill(deadline time.Time) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	raw := make([]byte, 4096)
	n, err := s.conn.Read(raw)
	if n > 0 {
		data, reply := s.tel.filter(raw[:n])
		s.buf = append(s.buf, data...)
		if len(reply) > 0 {
			if werr := s.write(reply); werr != nil {
				return werr
			}
		}
	}
	return err
}

// ReadUntil reads until marker has been seen or timeout elapses.  It
// returns the text consumed (through the marker, if found).  On a timeout
// everything read so far is consumed and returned with found false; a
// timeout is not an error.
func (s *Session) ReadUntil(marker string, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	m := []byte(marker)
	for {
		if i := bytes.Index(s.buf, m); i >= 0 {
			text := string(s.buf[:i+len(m)])
			s.buf = s.buf[i+len(m):]
			return text, true, nil
		}
		if err := s.fill(deadline); err != nil {
			text := string(s.buf)
			s.buf = s.buf[:0]
			switch {
			case bytes.Contains([]byte(text), m):
				return text, true, nil
			case s.ctx.Err() != nil:
				return text, false, s.ctx.Err()
			case isTimeout(err):
				return text, false, nil
			}
			return text, false, s.lost("read", err)
		}
	}
}

// WaitFor blocks until marker is seen or timeout elapses, and reports
// whether it was seen.
func (s *Session) WaitFor(marker string, timeout time.Duration) (bool, error) {
	_, found, err := s.ReadUntil(marker, timeout)
	return found, err
}

// ReadBanner reads and interprets the text a supervisor sends on connect.
// A banner that does not finish within timeout is reported with
// StatusError.
func (s *Session) ReadBanner(timeout time.Duration) Banner {
	text, found, _ := s.ReadUntil(MsgBannerEnd, timeout)
	if !found {
		return errorBanner(text)
	}
	return parseBanner(text, s.Layout)
}

// Send writes raw control bytes.
func (s *Session) Send(b []byte) error {
	if err := s.write(b); err != nil {
		return s.lost("write", err)
	}
	return nil
}

// Do sends a command and, if it is acknowledged, waits for the
// acknowledgement.  A missing acknowledgement is a ProtocolError.
func (s *Session) Do(cmd Command, timeout time.Duration) error {
	if err := s.Send(cmd.Bytes); err != nil {
		return err
	}
	if cmd.Confirm == "" {
		return nil
	}
	ok, err := s.WaitFor(cmd.Confirm, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return &ProtocolError{
			Host:   s.Host,
			Port:   s.Port,
			Detail: "no reply to " + cmd.Name,
		}
	}
	return nil
}

func (s *Session) write(b []byte) error {
	if s.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.Write(b)
	return err
}

func (s *Session) lost(op string, err error) error {
	return &ConnectionLostError{Host: s.Host, Port: s.Port, Op: op, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
