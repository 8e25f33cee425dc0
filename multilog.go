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
	"log"
	"strings"
	"sync"
)

// MultiLogger fans lines out to several loggers.  It is an io.Writer that
// splits what it is given into lines and hands each to every registered
// logger, which applies its own prefix and flags.  MultiLoggers nest, so a
// fleet can log both to its own Log and, prefixed, to the manager's.
type MultiLogger struct {
	log     *log.Logger
	loggers []*log.Logger
	mx      sync.Mutex
}

// NewMultiLogger returns a MultiLogger with no destinations.
func NewMultiLogger() *MultiLogger {
	m := &MultiLogger{}
	m.log = log.New(m, "", 0)
	return m
}

// Write delivers each line of b to every logger.
func (m *MultiLogger) Write(b []byte) (int, error) {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	m.mx.Lock()
	dest := m.loggers
	m.mx.Unlock()

	for _, line := range lines {
		for _, l := range dest {
			l.Println(line)
		}
	}
	return len(b), nil
}

// AddLogger adds a destination.  Adding the same logger twice has no
// effect.
func (m *MultiLogger) AddLogger(l *log.Logger) {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, x := range m.loggers {
		if x == l {
			return
		}
	}
	// Copy, since Write may be ranging over the old slice.
	dest := make([]*log.Logger, 0, len(m.loggers)+1)
	m.loggers = append(append(dest, m.loggers...), l)
}

// DelLogger removes a destination.
func (m *MultiLogger) DelLogger(l *log.Logger) {
	m.mx.Lock()
	defer m.mx.Unlock()
	dest := make([]*log.Logger, 0, len(m.loggers))
	for _, x := range m.loggers {
		if x != l {
			dest = append(dest, x)
		}
	}
	m.loggers = dest
}

// Logger returns a logger writing to every destination.
func (m *MultiLogger) Logger() *log.Logger {
	return m.log
}
