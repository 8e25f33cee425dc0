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

package rest

import (
	"strconv"

	"github.com/fleetvisor/fleetvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollEtagHeader carries the ETag a long poll waits to see change.
	PollEtagHeader = "X-Fleetvisor-Poll-Etag"

	// PollTimeHeader carries the longest a long poll may wait, in
	// seconds.
	PollTimeHeader = "X-Fleetvisor-Poll-Time"

	// MaxPollTime bounds PollTimeHeader.
	MaxPollTime = 300
)

type (
	LogRecord    = fleetvisor.LogRecord
	ActionResult = fleetvisor.ActionResult
	Report       = fleetvisor.Report
	Plan         = fleetvisor.Plan
	ProcInfo     = fleetvisor.ProcInfo
)

// ManagerInfo is the top level of the server.
type ManagerInfo struct {
	fleetvisor.ManagerInfo
	etag string
}

// FleetInfo is one fleet.
type FleetInfo struct {
	fleetvisor.FleetInfo
	etag string
}

// LogInfo is a log, as of the ETag it was fetched with.
type LogInfo struct {
	name    string
	etag    string
	Records []LogRecord
}

// Error is the body of every failed request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func etag(serial int64) string {
	return `"` + strconv.FormatInt(serial, 16) + `"`
}
