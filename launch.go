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
	"strconv"
	"strings"
	"time"
)

// LogStamp is the layout of the timestamp appended to process log names.
const LogStamp = "01022006_150405"

// LogName returns the log file a process launched at the given time
// writes to.  tmpl has a single %s for the process id.
func LogName(tmpl, id string, at time.Time) string {
	return fmt.Sprintf(tmpl, id) + at.Format(LogStamp)
}

// ProcessCommand returns the command the supervisor should run for an
// entry: its own command if it has one, otherwise the site startProc
// script.  Entries flagged 'u' get their id appended with -u.
func (c *Controller) ProcessCommand(e DesiredEntry, fleet string) string {
	cmd := e.Cmd
	if cmd == "" {
		root := c.ScriptRoot
		if root != "" && !strings.HasSuffix(root, "/") {
			root += "/"
		}
		cmd = fmt.Sprintf("%sstartProc %s %d %s", root, e.ID, e.Port, fleet)
	}
	if e.HasFlag('u') {
		cmd += " -u " + e.ID
	}
	return cmd
}

// LaunchCommand returns the full command line sent to the launcher for an
// entry: a new supervisor on the entry's port, wrapping the process.
func (c *Controller) LaunchCommand(e DesiredEntry, fleet string, at time.Time) string {
	args := []string{
		c.site.ProcServ,
		"--logfile", LogName(c.site.LogFile, e.ID, at),
		"--name", e.ID,
		"--allow",
		"--coresize", "0",
		strconv.Itoa(e.Port),
		c.ProcessCommand(e, fleet),
	}
	cmd := strings.Join(args, " ")
	if e.Delay != 0 {
		cmd += "; sleep " + strconv.Itoa(e.Delay)
	}
	return cmd
}
