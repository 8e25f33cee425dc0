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
	"errors"
	"fmt"
)

var (
	ErrUnreachable      = errors.New("Supervisor unreachable")
	ErrProtocol         = errors.New("Protocol error")
	ErrConnectionLost   = errors.New("Connection lost")
	ErrConfigUnreadable = errors.New("Configuration unreadable")
	ErrStatusUnreadable = errors.New("Status directory unreadable")
	ErrUnauthorized     = errors.New("Not authorized")
	ErrUnchanged        = errors.New("Configuration unchanged")
	ErrNoFleet          = errors.New("No such fleet")
	ErrNoProcess        = errors.New("No such process")
	ErrBusy             = errors.New("Fleet is being applied")
	ErrBadMarker        = errors.New("Malformed status marker")
	ErrBadConfigEntry   = errors.New("Bad configuration entry")
)

// UnreachableError reports a control channel that could not be opened.
type UnreachableError struct {
	Host string
	Port int
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("telnet to %s port %d failed: %v", e.Host, e.Port, e.Err)
}

func (e *UnreachableError) Unwrap() error { return ErrUnreachable }

// ProtocolError reports a supervisor that answered, but not with what we
// expected to see.
type ProtocolError struct {
	Host   string
	Port   int
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s port %d: %s", e.Host, e.Port, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// ConnectionLostError reports a read or write failure part way through a
// command sequence.  This is frequently the expected result of the command
// itself (the target went away), so callers treat it as a warning.
type ConnectionLostError struct {
	Host string
	Port int
	Op   string
	Err  error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection to %s port %d lost during %s: %v",
		e.Host, e.Port, e.Op, e.Err)
}

func (e *ConnectionLostError) Unwrap() []error {
	return []error{ErrConnectionLost, e.Err}
}

// ConfigError reports a fleet configuration that could not be read or parsed.
type ConfigError struct {
	Fleet string
	Path  string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cannot read configuration for %s (%s): %v",
		e.Fleet, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfigUnreadable, e.Err}
}

// IsWarning reports whether err is one of the outcomes that should be
// logged but not counted as a failed action.
func IsWarning(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}
