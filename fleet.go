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
	"errors"
	"log"
	"sort"
	"time"
)

// Fleet is a fleet under the control of a Manager.  All fields are
// protected by the manager's lock.
type Fleet struct {
	name    string
	rec     *Reconciler
	log     *Log
	mlog    *MultiLogger
	cfg     *FleetConfig
	survey  *Survey
	report  *Report
	err     error
	busy    bool
	serial  int64
	lastRun time.Time
}

// ProcInfo is one row of a fleet's status table: a process as configured,
// beside what was last seen of it.
type ProcInfo struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Dir         string `json:"dir"`
	Disable     bool   `json:"disable"`
	Configured  bool   `json:"configured"`
	Status      Status `json:"status"`
	PID         string `json:"pid"`
	RHost       string `json:"rhost"`
	RPort       int    `json:"rport"`
	RDir        string `json:"rdir"`
	AutoRestart bool   `json:"autorestart"`
	NewStyle    bool   `json:"newstyle"`

	// Pending is the action the next pass would take, if any.
	Pending string `json:"pending,omitempty"`
}

// FleetInfo is a snapshot of a fleet.
type FleetInfo struct {
	Name       string     `json:"name"`
	Serial     int64      `json:"serial,string"`
	Busy       bool       `json:"busy"`
	ConfigTime time.Time  `json:"config_time"`
	SurveyTime time.Time  `json:"survey_time"`
	LastRun    time.Time  `json:"last_run"`
	Error      string     `json:"error,omitempty"`
	Hosts      []string   `json:"hosts"`
	Procs      []ProcInfo `json:"procs"`
	Plan       Plan       `json:"plan"`
	LastPass   *Report    `json:"last_pass,omitempty"`
}

func newFleet(name string, site *Site, parent *MultiLogger) *Fleet {
	f := &Fleet{
		name: name,
		rec:  NewReconciler(site),
		log:  NewLog(),
		mlog: NewMultiLogger(),
	}
	f.mlog.AddLogger(log.New(f.log, "", 0))
	f.mlog.AddLogger(log.New(parent, name+": ", 0))
	f.rec.SetLogger(f.mlog.Logger())
	return f
}

func (f *Fleet) logf(format string, v ...interface{}) {
	f.mlog.Logger().Printf(format, v...)
}

// refresh reloads the configuration if it changed since it was last read.
// It is called without the manager lock; the caller owns the fleet.
func (f *Fleet) refresh(ctx context.Context, since time.Time) (*FleetConfig, error) {
	cfg, err := f.rec.Config().Read(ctx, f.name, since)
	if errors.Is(err, ErrUnchanged) {
		return nil, nil
	}
	if err != nil {
		f.logf("ERROR: %v", err)
		return nil, err
	}
	return cfg, nil
}

// info builds the snapshot.  Call with the manager lock held.
func (f *Fleet) info() *FleetInfo {
	i := &FleetInfo{
		Name:     f.name,
		Serial:   f.serial,
		Busy:     f.busy,
		LastRun:  f.lastRun,
		LastPass: f.report,
		Procs:    []ProcInfo{},
	}
	if f.err != nil {
		i.Error = f.err.Error()
	}
	if f.cfg != nil {
		i.ConfigTime = f.cfg.ModTime
		i.Hosts = f.cfg.Hosts
	}
	if f.survey == nil {
		if f.cfg != nil {
			for _, d := range f.cfg.Procs {
				i.Procs = append(i.Procs, procInfo(d, true, nil))
			}
		}
		return i
	}

	sv := f.survey
	i.SurveyTime = sv.Time
	i.Plan = sv.Plan
	pending := make(map[string]string)
	for _, t := range sv.Plan.Restart {
		pending[t.ID] = string(ActionRestart)
	}
	for _, e := range sv.Plan.Start {
		pending[e.ID] = string(ActionStart)
	}
	for _, t := range sv.Plan.Kill {
		if pending[t.ID] == string(ActionStart) {
			pending[t.ID] = "move"
		} else {
			pending[t.ID] = string(ActionKill)
		}
	}

	seen := make(map[string]bool)
	for _, d := range sv.Config.Procs {
		seen[d.ID] = true
		var obs *ObservedEntry
		if o, ok := sv.Observed[d.ID]; ok {
			obs = &o
		}
		p := procInfo(d, true, obs)
		p.Pending = pending[d.ID]
		i.Procs = append(i.Procs, p)
	}
	// Things running that nobody asked for.
	var extra []string
	for id, o := range sv.Observed {
		if !seen[id] && o.Status == StatusRunning {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		o := sv.Observed[id]
		d := DesiredEntry{ID: id, Host: o.Host, Port: o.Port, Dir: o.Dir}
		p := procInfo(d, false, &o)
		p.Pending = pending[id]
		i.Procs = append(i.Procs, p)
	}
	return i
}

func procInfo(d DesiredEntry, configured bool, obs *ObservedEntry) ProcInfo {
	p := ProcInfo{
		ID:         d.ID,
		Host:       d.Host,
		Port:       d.Port,
		Dir:        d.Dir,
		Disable:    d.Disable,
		Configured: configured,
		Status:     StatusInitializing,
		PID:        NoPID,
	}
	if obs != nil {
		p.Status = obs.Status
		p.PID = obs.PID
		p.RHost = obs.Host
		p.RPort = obs.Port
		p.RDir = obs.Dir
		p.AutoRestart = obs.AutoRestart
		p.NewStyle = obs.NewStyle
	}
	return p
}
