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
)

// Prober answers the question "what is running at host:port?".  Probing
// is read-only: it connects, reads the banner, and hangs up.
type Prober struct {
	Layout   Layout
	Timeouts Timeouts
}

// NewProber returns a Prober configured for the site.
func NewProber(site *Site) *Prober {
	return &Prober{Layout: site.Layout(), Timeouts: site.Timeouts}
}

// Probe reports the state of the supervisor at host:port, which is expected
// to be running the process id.  A supervisor that cannot be reached is
// reported as StatusNoConnect; that is an ordinary answer, not an error.
func (p *Prober) Probe(ctx context.Context, host string, port int, id string) ObservedEntry {
	obs := ObservedEntry{
		ID:     id,
		Status: StatusNoConnect,
		PID:    NoPID,
		Host:   host,
		Port:   port,
		Dir:    NoDir,
	}
	s, err := Dial(ctx, host, port, p.Timeouts.Connect)
	if err != nil {
		return obs
	}
	defer s.Close()
	s.Layout = p.Layout

	b := s.ReadBanner(p.Timeouts.Banner)
	obs.Status = b.Status
	obs.PID = b.PID
	obs.Dir = b.Dir
	obs.AutoRestart = b.AutoRestart
	if b.ID != NoID && b.ID != "" {
		obs.ID = b.ID
	}
	return obs
}
