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
	"sort"
)

// Plan is the set of corrective actions for one pass.  Kill targets are
// where the processes are running now, Start entries are where they
// should run, and Restart targets are processes already in the right
// place.  Each list is sorted by id.
//
// An id in both Kill and Start is being relocated.  An id in Restart is
// never in either of the others.
type Plan struct {
	Kill    []Target       `json:"kill"`
	Start   []DesiredEntry `json:"start"`
	Restart []Target       `json:"restart"`
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.Kill) == 0 && len(p.Start) == 0 && len(p.Restart) == 0
}

// Len returns the total number of actions in the plan.
func (p *Plan) Len() int {
	return len(p.Kill) + len(p.Start) + len(p.Restart)
}

// ComputePlan compares the desired entries of a fleet against what is
// observed running, keyed by id.  Only observations that are running
// should be passed in.  It is a pure function of its arguments.
//
//   - kill: running but not wanted, running on the wrong host or port, or
//     observed only by a fallback probe and running from the wrong
//     directory.
//   - start: wanted but not running, running on the wrong host or port, or
//     observed by a fallback probe in the wrong directory.
//   - restart: wanted, running in the right place according to its status
//     marker, but from the wrong directory.
func ComputePlan(desired []DesiredEntry, observed map[string]ObservedEntry) Plan {
	config := make(map[string]DesiredEntry, len(desired))
	for _, d := range desired {
		config[d.ID] = d
	}

	var plan Plan
	for _, id := range sortedIDs(observed) {
		cur := observed[id]
		want, ok := config[id]
		if !ok || want.Disable || misplaced(want, cur) || stale(want, cur) {
			plan.Kill = append(plan.Kill, Target{ID: id, Host: cur.Host, Port: cur.Port})
		}
	}

	for _, id := range sortedIDs(config) {
		want := config[id]
		if want.Disable {
			continue
		}
		cur, running := observed[id]
		switch {
		case !running, misplaced(want, cur), stale(want, cur):
			plan.Start = append(plan.Start, want)
		case cur.NewStyle && cur.Dir != want.Dir:
			plan.Restart = append(plan.Restart, Target{ID: id, Host: cur.Host, Port: cur.Port})
		}
	}
	return plan
}

// misplaced reports a process running somewhere other than configured.
func misplaced(want DesiredEntry, cur ObservedEntry) bool {
	return cur.Host != want.Host || cur.Port != want.Port
}

// stale reports a process without a status marker running from the wrong
// directory.  Such processes cannot be restarted in place, so they are
// replaced instead.
func stale(want DesiredEntry, cur ObservedEntry) bool {
	return !cur.NewStyle && cur.Dir != want.Dir
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
