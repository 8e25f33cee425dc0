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
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MarkerFilter selects which status markers are read.  It is given the
// process id and the modification time of its marker.
type MarkerFilter func(id string, mtime time.Time) bool

// StatusDir is the per-fleet directory of status markers.  Each marker is
// a file named by process id whose first line is "PID HOST PORT DIRECTORY".
// Supervisors write them when they start their child; we only read and
// delete them.
type StatusDir struct {
	site   *Site
	logger *log.Logger
}

// NewStatusDir returns the StatusDir for the site.
func NewStatusDir(site *Site) *StatusDir {
	return &StatusDir{site: site, logger: log.New(os.Stderr, "", log.LstdFlags)}
}

// SetLogger directs messages about malformed markers to l.
func (sd *StatusDir) SetLogger(l *log.Logger) {
	sd.logger = l
}

// Path returns the marker directory of a fleet.
func (sd *StatusDir) Path(fleet string) string {
	return sd.site.path(sd.site.StatusDir, fleet)
}

// Read returns one entry per marker in the fleet's directory.  If filter
// is not nil, only the markers it accepts are read.  Markers that cannot
// be parsed are logged and skipped.
func (sd *StatusDir) Read(fleet string, filter MarkerFilter) ([]ObservedEntry, error) {
	dir := sd.Path(fleet)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusUnreadable, err)
	}
	var res []ObservedEntry
	for _, de := range ents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		id := de.Name()
		info, err := de.Info()
		if err != nil {
			// Deleted under us.
			continue
		}
		if filter != nil && !filter(id, info.ModTime()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, id))
		if err != nil {
			continue
		}
		obs, err := ParseMarker(id, data)
		if err != nil {
			sd.logger.Printf("Ignoring status marker %s: %v",
				filepath.Join(dir, id), err)
			continue
		}
		res = append(res, obs)
	}
	return res, nil
}

// Delete removes the marker for id.  A missing marker is not an error.
func (sd *StatusDir) Delete(fleet, id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrBadMarker, id)
	}
	err := os.Remove(filepath.Join(sd.Path(fleet), id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ParseMarker decodes the contents of the marker for id.
func ParseMarker(id string, data []byte) (ObservedEntry, error) {
	line, _, _ := strings.Cut(string(data), "\n")
	f := strings.Fields(line)
	if len(f) < 4 {
		return ObservedEntry{}, fmt.Errorf("%w: want at least 4 fields, got %d",
			ErrBadMarker, len(f))
	}
	port, err := strconv.Atoi(f[2])
	if err != nil || port <= 0 || port > 65535 {
		return ObservedEntry{}, fmt.Errorf("%w: bad port %q", ErrBadMarker, f[2])
	}
	return ObservedEntry{
		ID:       id,
		Status:   StatusInitializing,
		PID:      f[0],
		Host:     f[1],
		Port:     port,
		Dir:      f[3],
		NewStyle: true,
	}, nil
}

// FormatMarker is the inverse of ParseMarker.
func FormatMarker(obs ObservedEntry) string {
	return fmt.Sprintf("%s %s %d %s\n", obs.PID, obs.Host, obs.Port, obs.Dir)
}
