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
	"strings"
)

// Layout names the installation prefixes that reported directories are
// made relative to.
type Layout struct {
	SiteTop  string // stripped entirely
	EpicsTop string // replaced by "../"
}

// FixDir abbreviates the directory a process reports it started from so
// that it can be compared with a configured directory.  The directory is
// made relative to SiteTop (or, failing that, expressed as "../" relative
// to SiteTop when it lies under EpicsTop), and a trailing
// "/build/iocBoot/<id>" or "/iocBoot/<id>" is dropped.  Anything else is
// returned as is.
func (l Layout) FixDir(dir, id string) string {
	if l.SiteTop != "" && strings.HasPrefix(dir, l.SiteTop) {
		dir = dir[len(l.SiteTop):]
	} else if l.EpicsTop != "" && strings.HasPrefix(dir, l.EpicsTop) {
		dir = "../" + dir[len(l.EpicsTop):]
	}
	dir = strings.TrimSuffix(dir, "/build/iocBoot/"+id)
	dir = strings.TrimSuffix(dir, "/iocBoot/"+id)
	return dir
}
