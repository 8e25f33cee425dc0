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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"sort"
	"time"

	"github.com/fleetvisor/fleetvisor"
	"github.com/fleetvisor/fleetvisor/rest"
)

// Severity orders processes by how much attention they need.
type Severity int

const (
	Idle Severity = iota
	Good
	Warn
	Bad
)

// Status returns a short word for the state of a process.
func Status(p *rest.ProcInfo) string {
	switch {
	case !p.Configured:
		return "unwanted"
	case p.Disable && p.Status != fleetvisor.StatusRunning:
		return "disabled"
	case p.Status == fleetvisor.StatusInitializing:
		return "unknown"
	}
	switch p.Status {
	case fleetvisor.StatusRunning:
		return "running"
	case fleetvisor.StatusShutdown:
		return "shutdown"
	case fleetvisor.StatusNoConnect:
		return "noconnect"
	}
	return "error"
}

// Rate returns the severity of the state of a process.
func Rate(p *rest.ProcInfo) Severity {
	switch {
	case p.Pending != "" && p.Status == fleetvisor.StatusRunning:
		return Warn
	case p.Pending != "":
		return Bad
	case p.Status == fleetvisor.StatusRunning:
		return Good
	case p.Disable, p.Status == fleetvisor.StatusInitializing:
		return Idle
	}
	return Bad
}

// Location returns where a process runs, or is meant to.
func Location(p *rest.ProcInfo) string {
	if p.RHost != "" && (p.RHost != p.Host || p.RPort != p.Port) {
		return fmt.Sprintf("%s:%d (wants %s:%d)", p.RHost, p.RPort, p.Host, p.Port)
	}
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// SortProcs puts the processes needing attention first, then orders by id.
func SortProcs(items []rest.ProcInfo) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := Rate(&items[i]), Rate(&items[j])
		if a != b {
			return a > b
		}
		return items[i].ID < items[j].ID
	})
}
