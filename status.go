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
	"net"
	"strconv"
)

// Status is what a supervisor reports about its child process.
type Status int

const (
	StatusInitializing Status = iota

	// StatusNoConnect means the control port did not answer.
	StatusNoConnect
	StatusRunning

	// StatusShutdown means the supervisor is alive but its child is not.
	StatusShutdown

	// StatusError means the supervisor answered with a banner that could
	// not be understood.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "INITIALIZE WAIT"
	case StatusNoConnect:
		return "NOCONNECT"
	case StatusRunning:
		return "RUNNING"
	case StatusShutdown:
		return "SHUTDOWN"
	case StatusError:
		return "ERROR"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText lets a Status travel as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	for c := StatusInitializing; c <= StatusError; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	*s = StatusError
	return nil
}

// Sentinel values reported when a field is unknown.
const (
	NoPID = "-"
	NoID  = "-"
	NoDir = "/tmp"
)

// DesiredEntry is one process as the fleet configuration describes it.
type DesiredEntry struct {
	ID      string   `json:"id"`
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Dir     string   `json:"dir"`
	Cmd     string   `json:"cmd,omitempty"`
	Flags   string   `json:"flags,omitempty"`
	Delay   int      `json:"delay"`
	Disable bool     `json:"disable"`
	History []string `json:"history,omitempty"`
}

// HasFlag reports whether the single-letter launch modifier f is set.
func (d DesiredEntry) HasFlag(f rune) bool {
	for _, c := range d.Flags {
		if c == f {
			return true
		}
	}
	return false
}

// ObservedEntry is what a host currently reports for a process.  Host,
// Port and Dir are where the running instance actually is, which may
// differ from where it is configured to be.
type ObservedEntry struct {
	ID          string `json:"id"`
	Status      Status `json:"status"`
	PID         string `json:"pid"`
	Host        string `json:"rhost"`
	Port        int    `json:"rport"`
	Dir         string `json:"rdir"`
	AutoRestart bool   `json:"autorestart"`

	// NewStyle is true when the observation came from a status marker
	// rather than from a fallback probe of the configured location.
	NewStyle bool `json:"newstyle"`
}

// Target is a supervisor control port.
type Target struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the host:port form of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.ID + "@" + t.Addr()
}
