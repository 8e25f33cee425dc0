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
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
)

// FleetConfig is the desired state of a fleet.
type FleetConfig struct {
	Fleet   string         `json:"fleet"`
	ModTime time.Time      `json:"mtime"`
	Procs   []DesiredEntry `json:"procs"`
	Hosts   []string       `json:"hosts"` // a hint, not a constraint
}

// Entry returns the configured entry for id.
func (c *FleetConfig) Entry(id string) (DesiredEntry, bool) {
	for _, e := range c.Procs {
		if e.ID == id {
			return e, true
		}
	}
	return DesiredEntry{}, false
}

// configFile is the on-disk form of a fleet configuration:
//
//	hosts = ["ioc-host-01", "ioc-host-02"]
//
//	[[procmgr_config]]
//	id = "ioc-xpp-motors"
//	host = "ioc-host-01"
//	port = 30001
//	dir = "ioc/xpp/motors/R1.0.3"
type configFile struct {
	Hosts []string      `toml:"hosts"`
	Procs []configEntry `toml:"procmgr_config"`
}

type configEntry struct {
	ID      string   `toml:"id"`
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	Dir     string   `toml:"dir"`
	Cmd     string   `toml:"cmd"`
	Flags   string   `toml:"flags"`
	Delay   int      `toml:"delay"`
	Disable bool     `toml:"disable"`
	History []string `toml:"history"`
}

// ConfigStore reads fleet configurations.
type ConfigStore struct {
	site *Site

	// LockWait is how often a blocked shared lock is retried.
	LockWait time.Duration
}

// NewConfigStore returns a ConfigStore for the site.
func NewConfigStore(site *Site) *ConfigStore {
	return &ConfigStore{site: site, LockWait: 50 * time.Millisecond}
}

// Path returns the configuration file of a fleet.
func (cs *ConfigStore) Path(fleet string) string {
	return cs.site.path(cs.site.ConfigFile, fleet)
}

// Read returns the configuration of a fleet.  If since is not zero and the
// file has not been modified since then, ErrUnchanged is returned instead.
// The file is read under a shared lock, so that a writer holding the
// exclusive lock is never seen half way through an update.  Missing
// optional fields take their defaults.
func (cs *ConfigStore) Read(ctx context.Context, fleet string, since time.Time) (*FleetConfig, error) {
	path := cs.Path(fleet)
	fail := func(err error) (*FleetConfig, error) {
		return nil, &ConfigError{Fleet: fleet, Path: path, Err: err}
	}

	// flock creates what it locks, so check that there is something
	// to lock first.
	if _, err := os.Stat(path); err != nil {
		return fail(err)
	}
	lock := flock.New(path)
	locked, err := lock.TryRLockContext(ctx, cs.LockWait)
	if err != nil {
		return fail(fmt.Errorf("locking: %w", err))
	}
	if !locked {
		return fail(fmt.Errorf("could not lock %s", path))
	}
	defer func() { _ = lock.Unlock() }()

	st, err := os.Stat(path)
	if err != nil {
		return fail(err)
	}
	if !since.IsZero() && st.ModTime().Equal(since) {
		return nil, ErrUnchanged
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	var f configFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return fail(fmt.Errorf("parsing: %w", err))
	}
	cfg := &FleetConfig{
		Fleet:   fleet,
		ModTime: st.ModTime(),
		Hosts:   f.Hosts,
		Procs:   make([]DesiredEntry, 0, len(f.Procs)),
	}
	seen := make(map[string]bool, len(f.Procs))
	for i, e := range f.Procs {
		if err := e.validate(); err != nil {
			return fail(fmt.Errorf("entry %d: %w", i+1, err))
		}
		if seen[e.ID] {
			return fail(fmt.Errorf("entry %d: %w: duplicate id %q",
				i+1, ErrBadConfigEntry, e.ID))
		}
		seen[e.ID] = true
		cfg.Procs = append(cfg.Procs, e.desired())
	}
	return cfg, nil
}

func (e *configEntry) validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", ErrBadConfigEntry)
	case e.Host == "":
		return fmt.Errorf("%w: %s has no host", ErrBadConfigEntry, e.ID)
	case e.Port <= 0 || e.Port > 65535:
		return fmt.Errorf("%w: %s has bad port %d", ErrBadConfigEntry, e.ID, e.Port)
	case e.Delay < 0:
		return fmt.Errorf("%w: %s has negative delay", ErrBadConfigEntry, e.ID)
	}
	return nil
}

func (e *configEntry) desired() DesiredEntry {
	d := DesiredEntry{
		ID:      e.ID,
		Host:    e.Host,
		Port:    e.Port,
		Dir:     e.Dir,
		Cmd:     e.Cmd,
		Flags:   e.Flags,
		Delay:   e.Delay,
		Disable: e.Disable,
		History: e.History,
	}
	if d.History == nil {
		d.History = []string{}
	}
	return d
}
