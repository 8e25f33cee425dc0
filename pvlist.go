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
	"bufio"
	"os"
	"strings"
)

const heartbeat = ":HEARTBEAT"

// BaseName returns the PV prefix of a process, taken from the first
// heartbeat record in its PV list.  The list is written by the process
// itself, so it only exists once the process has run.
func (s *Site) BaseName(id string) (string, bool) {
	f, err := os.Open(s.path(s.PVFile, id))
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		pv, _, _ := strings.Cut(sc.Text(), ",")
		pv = strings.TrimSpace(pv)
		if strings.HasSuffix(pv, heartbeat) {
			return strings.TrimSuffix(pv, heartbeat), true
		}
	}
	return "", false
}
