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
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// DefaultInterval is how often a monitoring Manager applies each fleet.
const DefaultInterval = time.Minute

// Manager keeps a set of fleets converged.  Passes over different fleets
// may run at the same time, but a fleet only ever has one pass in
// progress.
type Manager struct {
	fleets     map[string]*Fleet
	name       string
	site       *Site
	auth       *AuthCache
	logger     *log.Logger
	log        *Log
	mlog       *MultiLogger
	interval   time.Duration
	monitoring bool
	cleanup    bool
	ctx        context.Context
	cancel     context.CancelFunc
	passes     sync.WaitGroup
	serial     int64
	createTime time.Time
	updateTime time.Time
	mx         sync.Mutex
	cvs        map[*sync.Cond]bool
}

// ManagerInfo is the top-level state of a Manager.
type ManagerInfo struct {
	Name       string        `json:"name"`
	Serial     int64         `json:"serial,string"`
	UpdateTime time.Time     `json:"update_time"`
	CreateTime time.Time     `json:"create_time"`
	Monitoring bool          `json:"monitoring"`
	Interval   time.Duration `json:"interval"`
	Fleets     []string      `json:"fleets"`
}

// NewManager returns a Manager for the site.  Monitoring is off until
// StartMonitoring is called.
func NewManager(name string, site *Site) *Manager {
	if name == "" {
		name = "fleetvisor"
	}
	// The serial starts at the clock, so that a client holding a serial
	// from before a restart sees a change.
	m := &Manager{
		name:     name,
		site:     site,
		serial:   time.Now().UnixNano(),
		fleets:   make(map[string]*Fleet),
		cvs:      make(map[*sync.Cond]bool),
		auth:     NewAuthCache(site),
		interval: DefaultInterval,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.createTime = time.Now()
	m.updateTime = m.createTime
	m.mlog = NewMultiLogger()
	m.log = NewLog()
	m.mlog.AddLogger(log.New(m.log, "", 0))
	m.logger = log.New(os.Stderr, "", log.LstdFlags)
	m.mlog.AddLogger(m.logger)
	go m.monitor()
	return m
}

func (m *Manager) lock() {
	m.mx.Lock()
}

func (m *Manager) unlock() {
	m.mx.Unlock()
}

func (m *Manager) wakeUp() {
	// The lock must be held, or a woken watcher may miss the new serial.
	for cv := range m.cvs {
		cv.Broadcast()
	}
}

// bumpSerial increments the serial and wakes watchers.  Call with the lock
// held.
func (m *Manager) bumpSerial() int64 {
	m.updateTime = time.Now()
	m.serial++
	m.wakeUp()
	return m.serial
}

// WatchSerial waits for the serial to move on from old, or for expire to
// pass, and returns the current serial.  An expire of zero polls.
func (m *Manager) WatchSerial(old int64, expire time.Duration) int64 {
	cv := sync.NewCond(&m.mx)
	expired := expire <= 0
	if !expired {
		timer := time.AfterFunc(expire, func() {
			m.lock()
			expired = true
			cv.Broadcast()
			m.unlock()
		})
		defer timer.Stop()
	}

	m.lock()
	defer m.unlock()
	m.cvs[cv] = true
	for m.serial == old && !expired {
		cv.Wait()
	}
	delete(m.cvs, cv)
	return m.serial
}

// Serial returns the serial number, which changes whenever any fleet does.
func (m *Manager) Serial() int64 {
	m.lock()
	defer m.unlock()
	return m.serial
}

// Name returns the name the manager was created with.
func (m *Manager) Name() string {
	return m.name
}

// Site returns the site the manager works in.
func (m *Manager) Site() *Site {
	return m.site
}

// Auth returns the authorization cache.
func (m *Manager) Auth() *AuthCache {
	return m.auth
}

// GetInfo returns a consistent snapshot of the manager.
func (m *Manager) GetInfo() *ManagerInfo {
	m.lock()
	defer m.unlock()
	return &ManagerInfo{
		Name:       m.name,
		Serial:     m.serial,
		CreateTime: m.createTime,
		UpdateTime: m.updateTime,
		Monitoring: m.monitoring,
		Interval:   m.interval,
		Fleets:     m.fleetNames(),
	}
}

// AddFleet puts a fleet under management.  Adding a fleet twice has no
// effect.
func (m *Manager) AddFleet(name string) {
	m.lock()
	defer m.unlock()
	if _, ok := m.fleets[name]; ok {
		return
	}
	m.fleets[name] = newFleet(name, m.site, m.mlog)
	m.bumpSerial()
}

// Fleets returns the names of the managed fleets, sorted.
func (m *Manager) Fleets() []string {
	m.lock()
	defer m.unlock()
	return m.fleetNames()
}

func (m *Manager) fleetNames() []string {
	names := make([]string, 0, len(m.fleets))
	for n := range m.fleets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) fleet(name string) (*Fleet, error) {
	if f, ok := m.fleets[name]; ok {
		return f, nil
	}
	return nil, ErrNoFleet
}

// Authorize checks that user may change fleet.
func (m *Manager) Authorize(user, fleet string) error {
	m.lock()
	_, err := m.fleet(fleet)
	m.unlock()
	if err != nil {
		return err
	}
	return m.auth.Authorize(user, fleet)
}

// Info returns what is known of a fleet without looking at it again.
func (m *Manager) Info(name string) (*FleetInfo, error) {
	m.lock()
	defer m.unlock()
	f, err := m.fleet(name)
	if err != nil {
		return nil, err
	}
	return f.info(), nil
}

// begin claims a fleet for one operation.  Call with the lock held.
func (m *Manager) begin(f *Fleet) error {
	if f.busy {
		return ErrBusy
	}
	f.busy = true
	f.serial = m.bumpSerial()
	return nil
}

// config returns the fleet's configuration, re-reading it if the file has
// changed.  The caller must own the fleet.
func (m *Manager) config(ctx context.Context, f *Fleet) (*FleetConfig, error) {
	m.lock()
	cur := f.cfg
	m.unlock()

	var since time.Time
	if cur != nil {
		since = cur.ModTime
	}
	cfg, err := f.refresh(ctx, since)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return cur, nil
	}
	if cur != nil {
		f.logf("Configuration of %s changed", f.name)
	}
	m.lock()
	f.cfg = cfg
	m.unlock()
	return cfg, nil
}

// end releases a fleet, recording what happened.
func (m *Manager) end(f *Fleet, sv *Survey, rep *Report, err error) {
	m.lock()
	defer m.unlock()
	f.busy = false
	f.err = err
	if sv != nil {
		f.survey = sv
	}
	if rep != nil {
		f.report = rep
		f.lastRun = rep.Finished
	}
	f.serial = m.bumpSerial()
}

// Survey looks at a fleet afresh and returns its state.
func (m *Manager) Survey(ctx context.Context, name string) (*FleetInfo, error) {
	m.lock()
	f, err := m.fleet(name)
	if err == nil {
		err = m.begin(f)
	}
	m.unlock()
	if err != nil {
		return nil, err
	}

	cfg, err := m.config(ctx, f)
	var sv *Survey
	if err == nil {
		sv, err = f.rec.Survey(ctx, cfg)
	}
	m.end(f, sv, nil, err)
	if err != nil {
		return nil, err
	}
	return m.Info(name)
}

// Apply runs a reconciliation pass over a fleet.  If a pass over the fleet
// is already in progress, ErrBusy is returned.
func (m *Manager) Apply(ctx context.Context, name string) (*Report, error) {
	m.lock()
	f, err := m.fleet(name)
	if err == nil {
		err = m.begin(f)
	}
	m.unlock()
	if err != nil {
		return nil, err
	}
	return m.pass(ctx, f)
}

// pass applies a claimed fleet.
func (m *Manager) pass(ctx context.Context, f *Fleet) (*Report, error) {
	cfg, err := m.config(ctx, f)
	if err != nil {
		m.end(f, nil, nil, err)
		return nil, err
	}
	sv, err := f.rec.Survey(ctx, cfg)
	if err != nil {
		f.logf("ERROR: %v", err)
		m.end(f, nil, nil, err)
		return nil, err
	}
	rep := f.rec.Execute(ctx, f.name, sv.Plan)
	pause(ctx, m.site.Timeouts.Pass)
	if !sv.Plan.Empty() {
		if n := rep.Failures(); n > 0 {
			f.logf("Pass %s over %s: %d of %d actions failed",
				rep.ID, f.name, n, len(rep.Results))
		}
		// What is running has changed, so look again.
		if after, err := f.rec.Survey(ctx, cfg); err == nil {
			sv = after
		}
	}
	rep.Finished = time.Now()
	m.end(f, sv, rep, nil)
	return rep, nil
}

// act carries out a single action on a running process of a fleet.
func (m *Manager) act(ctx context.Context, name, id string, action Action) (*ActionResult, error) {
	m.lock()
	f, err := m.fleet(name)
	if err == nil {
		err = m.begin(f)
	}
	m.unlock()
	if err != nil {
		return nil, err
	}

	cfg, err := m.config(ctx, f)
	var sv *Survey
	if err == nil {
		sv, err = f.rec.Survey(ctx, cfg)
	}
	if err != nil {
		m.end(f, nil, nil, err)
		return nil, err
	}
	obs, ok := sv.Running()[id]
	if !ok {
		m.end(f, sv, nil, nil)
		return nil, ErrNoProcess
	}

	t := Target{ID: id, Host: obs.Host, Port: obs.Port}
	var plan Plan
	switch action {
	case ActionKill:
		plan.Kill = []Target{t}
	case ActionRestart:
		plan.Restart = []Target{t}
	}
	f.logf("Operator %s of %s requested", action, t)
	rep := f.rec.Execute(ctx, name, plan)
	m.end(f, nil, nil, nil)
	res := rep.Results[0]
	return &res, nil
}

// Kill stops a process of a fleet, wherever it is running.  The next pass
// starts it again if it is still configured.
func (m *Manager) Kill(ctx context.Context, fleet, id string) (*ActionResult, error) {
	return m.act(ctx, fleet, id, ActionKill)
}

// Restart restarts a process of a fleet in place.
func (m *Manager) Restart(ctx context.Context, fleet, id string) (*ActionResult, error) {
	return m.act(ctx, fleet, id, ActionRestart)
}

// SetLogger replaces the logger that the manager's messages go to, in
// addition to its own Log.
func (m *Manager) SetLogger(l *log.Logger) {
	if m.logger != nil {
		m.mlog.DelLogger(m.logger)
	}
	m.logger = l
	if l != nil {
		m.mlog.AddLogger(l)
	}
}

func (m *Manager) logf(format string, v ...interface{}) {
	m.mlog.Logger().Printf(format, v...)
}

// SetInterval sets how often monitoring applies each fleet.
func (m *Manager) SetInterval(d time.Duration) {
	m.lock()
	m.interval = d
	m.unlock()
}

func (m *Manager) monitor() {
	for {
		var due []*Fleet
		m.lock()
		if m.cleanup {
			m.monitoring = false
			m.unlock()
			return
		}
		if m.monitoring {
			now := time.Now()
			for _, name := range m.fleetNames() {
				f := m.fleets[name]
				if now.Sub(f.lastRun) < m.interval {
					continue
				}
				if m.begin(f) == nil {
					due = append(due, f)
				}
			}
		}
		m.passes.Add(len(due))
		m.unlock()

		for _, f := range due {
			go func() {
				defer m.passes.Done()
				_, _ = m.pass(m.ctx, f)
				// A failed pass still waits out the interval.
				m.lock()
				f.lastRun = time.Now()
				m.unlock()
			}()
		}

		// a "prime" number of milliseconds, to spread out the
		// clock events
		time.Sleep(time.Millisecond * 587)
	}
}

// StartMonitoring begins applying every fleet periodically.
func (m *Manager) StartMonitoring() {
	m.logf("*** Fleetvisor starting monitoring: %s ***", m.name)
	m.lock()
	m.monitoring = true
	m.unlock()
}

// StopMonitoring stops periodic passes.  Passes in progress carry on.
func (m *Manager) StopMonitoring() {
	m.lock()
	m.monitoring = false
	m.unlock()
	m.logf("*** Fleetvisor stopping monitoring: %s ***", m.name)
}

// Shutdown stops monitoring, cancels the passes in progress and waits for
// them to wind down.
func (m *Manager) Shutdown() {
	m.lock()
	m.monitoring = false
	m.cleanup = true
	m.unlock()
	m.cancel()
	m.passes.Wait()
	m.logf("*** Fleetvisor shut down: %s ***", m.name)
}

// GetLog returns the consolidated log of all fleets.
func (m *Manager) GetLog(last int64) ([]LogRecord, int64) {
	return m.log.GetRecords(last)
}

// WatchLog waits for the consolidated log to change.
func (m *Manager) WatchLog(old int64, expire time.Duration) int64 {
	return m.log.Watch(old, expire)
}

// FleetLog returns the log of one fleet.
func (m *Manager) FleetLog(name string, last int64) ([]LogRecord, int64, error) {
	m.lock()
	f, err := m.fleet(name)
	m.unlock()
	if err != nil {
		return nil, 0, err
	}
	recs, id := f.log.GetRecords(last)
	return recs, id, nil
}
