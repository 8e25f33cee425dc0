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

// Package fleetvisor keeps a fleet of remotely supervised processes in the
// state that its configuration describes.
//
// Each controlled process runs under a procServ-style supervisor on some
// host.  The supervisor owns the process lifecycle and exposes a telnet
// control port; fleetvisor never runs processes itself.  Instead it reads
// the desired state of a fleet (a TOML configuration), gathers the observed
// state (status marker files written by the supervisors, cross-checked by
// probing the control ports), and computes a Plan of kills, starts, and
// restarts.  The Reconciler then drives the plan through the control
// protocol, one Session per target.
//
// Nothing is persisted between passes.  Every pass starts over from the
// configuration and the hosts, so re-running a pass that failed part way is
// always safe.
//
// A Manager groups several fleets, serializes passes per fleet, optionally
// applies them periodically, and keeps a consolidated log.  The rest package
// exposes a Manager over HTTP.
package fleetvisor
