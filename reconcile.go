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
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Action names a corrective action.
type Action string

const (
	ActionKill    Action = "kill"
	ActionStart   Action = "start"
	ActionRestart Action = "restart"
)

// ActionResult is the outcome of one action in a pass.
type ActionResult struct {
	Action  Action `json:"action"`
	ID      string `json:"id"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Failed reports whether the action did not do what was asked.  A warning
// is not a failure.
func (r ActionResult) Failed() bool {
	return r.Skipped || r.Error != ""
}

// Report describes one reconciliation pass.
type Report struct {
	ID       uuid.UUID      `json:"id"`
	Fleet    string         `json:"fleet"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Plan     Plan           `json:"plan"`
	Results  []ActionResult `json:"results"`
}

// Failures counts the actions that failed or were skipped.
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}

// Survey is the state of a fleet at one moment: its configuration, every
// observation made of it, and the plan that follows.
type Survey struct {
	Config *FleetConfig `json:"config"`

	// Observed holds every observation, keyed by id, including those
	// of processes that are not running.
	Observed map[string]ObservedEntry `json:"observed"`
	Plan     Plan                     `json:"plan"`
	Time     time.Time                `json:"time"`
}

// Running returns the observations of running processes.
func (sv *Survey) Running() map[string]ObservedEntry {
	return running(sv.Observed)
}

func running(all map[string]ObservedEntry) map[string]ObservedEntry {
	res := make(map[string]ObservedEntry, len(all))
	for id, obs := range all {
		if obs.Status == StatusRunning {
			res[id] = obs
		}
	}
	return res
}

// Reconciler drives one fleet toward its configuration.
type Reconciler struct {
	site   *Site
	config *ConfigStore
	status *StatusDir
	prober *Prober
	ctl    *Controller
	logger *log.Logger
}

// NewReconciler returns a Reconciler for the site.
func NewReconciler(site *Site) *Reconciler {
	return &Reconciler{
		site:   site,
		config: NewConfigStore(site),
		status: NewStatusDir(site),
		prober: NewProber(site),
		ctl:    NewController(site),
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLogger directs the messages of the reconciler, and of the parts it
// drives, to l.
func (r *Reconciler) SetLogger(l *log.Logger) {
	r.logger = l
	r.status.SetLogger(l)
	r.ctl.SetLogger(l)
}

// Controller returns the controller used for actions.
func (r *Reconciler) Controller() *Controller {
	return r.ctl
}

// Config returns the configuration store.
func (r *Reconciler) Config() *ConfigStore {
	return r.config
}

// StatusDir returns the status marker directory.
func (r *Reconciler) StatusDir() *StatusDir {
	return r.status
}

func (r *Reconciler) logf(format string, v ...interface{}) {
	r.logger.Printf(format, v...)
}

// probe is one scheduled probe.
type probe struct {
	host string
	port int
	id   string
}

// probeAll probes the targets concurrently, at most site.Workers at once.
// The results are in the order of the targets.
func (r *Reconciler) probeAll(ctx context.Context, targets []probe) []ObservedEntry {
	res := make([]ObservedEntry, len(targets))
	var g errgroup.Group
	g.SetLimit(r.site.Workers)
	for i, t := range targets {
		g.Go(func() error {
			res[i] = r.prober.Probe(ctx, t.host, t.port, t.id)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// Observe finds out what is running for a fleet.  The status markers are
// probed first; a running process found that way is where its marker says
// it is.  Every configured process that is still unaccounted for is then
// probed where the configuration puts it.  A supervisor that names a
// process other than the one expected there is recorded as an error.  The
// result holds every observation made; Survey.Running selects the live
// ones.
func (r *Reconciler) Observe(ctx context.Context, fleet string, desired []DesiredEntry) (map[string]ObservedEntry, error) {
	markers, err := r.status.Read(fleet, nil)
	if err != nil {
		return nil, err
	}
	targets := make([]probe, 0, len(markers))
	for _, m := range markers {
		targets = append(targets, probe{host: m.Host, port: m.Port, id: m.ID})
	}
	all := make(map[string]ObservedEntry, len(markers)+len(desired))
	probed := make(map[Target]bool, len(markers))
	for i, p := range r.probeAll(ctx, targets) {
		m := markers[i]
		probed[Target{ID: m.ID, Host: m.Host, Port: m.Port}] = true
		if p.Status != StatusRunning {
			p.ID = m.ID
			p.NewStyle = true
			all[m.ID] = p
			continue
		}
		if p.ID != m.ID {
			// A stale marker for a port that has since been reused.
			r.logf("WARNING: %s port %d is running %s, not %s",
				m.Host, m.Port, p.ID, m.ID)
			p.ID = m.ID
			p.Status = StatusError
			p.NewStyle = true
			all[m.ID] = p
			continue
		}
		obs := m
		obs.Status = StatusRunning
		obs.PID = p.PID
		obs.AutoRestart = p.AutoRestart
		if p.Dir != NoDir {
			// The supervisor knows better than the marker.
			obs.Dir = p.Dir
			obs.NewStyle = false
		}
		all[m.ID] = obs
	}

	targets = targets[:0]
	for _, d := range desired {
		if cur, ok := all[d.ID]; ok && cur.Status == StatusRunning {
			continue
		}
		if probed[Target{ID: d.ID, Host: d.Host, Port: d.Port}] {
			continue
		}
		targets = append(targets, probe{host: d.Host, port: d.Port, id: d.ID})
	}
	for i, p := range r.probeAll(ctx, targets) {
		t := targets[i]
		if p.Status == StatusRunning && p.ID != t.id {
			r.logf("WARNING: %s port %d is running %s, not %s",
				t.host, t.port, p.ID, t.id)
			p.Status = StatusError
		}
		p.ID = t.id
		p.NewStyle = false
		if _, seen := all[t.id]; !seen || p.Status == StatusRunning {
			all[t.id] = p
		}
	}

	// Some processes never report the directory they were started
	// from, so take the configuration's word for it.
	for _, d := range desired {
		cur, ok := all[d.ID]
		if ok && cur.Status == StatusRunning && r.site.IsRelocated(d.Dir) {
			cur.Dir = d.Dir
			all[d.ID] = cur
		}
	}
	return all, nil
}

// Survey reads the markers, probes the fleet and computes the plan for
// cfg.
func (r *Reconciler) Survey(ctx context.Context, cfg *FleetConfig) (*Survey, error) {
	all, err := r.Observe(ctx, cfg.Fleet, cfg.Procs)
	if err != nil {
		return nil, err
	}
	return &Survey{
		Config:   cfg,
		Observed: all,
		Plan:     ComputePlan(cfg.Procs, running(all)),
		Time:     time.Now(),
	}, nil
}

// Apply runs one reconciliation pass over a fleet.  If the configuration
// or the status markers cannot be read, nothing is done and the error is
// returned.  Failures of individual actions are in the report.
func (r *Reconciler) Apply(ctx context.Context, fleet string) (*Report, error) {
	cfg, err := r.config.Read(ctx, fleet, time.Time{})
	if err != nil {
		r.logf("ERROR: %v", err)
		return nil, err
	}
	return r.ApplyConfig(ctx, cfg)
}

// ApplyConfig is Apply with the configuration already in hand.
func (r *Reconciler) ApplyConfig(ctx context.Context, cfg *FleetConfig) (*Report, error) {
	sv, err := r.Survey(ctx, cfg)
	if err != nil {
		r.logf("ERROR: %s: %v", cfg.Fleet, err)
		return nil, err
	}
	rep := r.Execute(ctx, cfg.Fleet, sv.Plan)
	// Give the supervisors a moment before anyone looks again.
	pause(ctx, r.site.Timeouts.Pass)
	rep.Finished = time.Now()
	return rep, nil
}

// job is one action bound to the port it is carried out on.
type job struct {
	action Action
	target Target
	entry  DesiredEntry
}

// Execute carries out a plan: all kills, then all starts, then all
// restarts.  Within a phase, the actions are grouped by the port they use;
// groups run concurrently and the actions of a group run in order.  Once
// ctx is done, the remaining actions are reported as skipped.
func (r *Reconciler) Execute(ctx context.Context, fleet string, plan Plan) *Report {
	rep := &Report{
		ID:      uuid.New(),
		Fleet:   fleet,
		Started: time.Now(),
		Plan:    plan,
	}
	if !plan.Empty() {
		r.logf("Pass %s on %s: %d to kill, %d to start, %d to restart",
			rep.ID, fleet, len(plan.Kill), len(plan.Start), len(plan.Restart))
	}

	var kills, starts, restarts []job
	for _, t := range plan.Kill {
		kills = append(kills, job{action: ActionKill, target: t})
	}
	lport := r.site.LauncherPort(fleet)
	for _, e := range plan.Start {
		t := Target{ID: e.ID, Host: e.Host, Port: lport}
		starts = append(starts, job{action: ActionStart, target: t, entry: e})
	}
	for _, t := range plan.Restart {
		restarts = append(restarts, job{action: ActionRestart, target: t})
	}

	rep.Results = append(rep.Results, r.phase(ctx, fleet, kills)...)
	rep.Results = append(rep.Results, r.phase(ctx, fleet, starts)...)
	rep.Results = append(rep.Results, r.phase(ctx, fleet, restarts)...)
	rep.Finished = time.Now()
	return rep
}

// phase runs the jobs of one phase and returns their results, sorted by
// id.
func (r *Reconciler) phase(ctx context.Context, fleet string, jobs []job) []ActionResult {
	type port struct {
		host string
		port int
	}
	var order []port
	groups := make(map[port][]job)
	for _, j := range jobs {
		k := port{j.target.Host, j.target.Port}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], j)
	}

	done := make(chan []ActionResult, len(order))
	var g errgroup.Group
	g.SetLimit(r.site.Workers)
	for _, k := range order {
		grp := groups[k]
		g.Go(func() error {
			out := make([]ActionResult, 0, len(grp))
			for _, j := range grp {
				out = append(out, r.run(ctx, fleet, j))
			}
			done <- out
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	var res []ActionResult
	for out := range done {
		res = append(res, out...)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// run carries out a single job.
func (r *Reconciler) run(ctx context.Context, fleet string, j job) ActionResult {
	res := ActionResult{
		Action: j.action,
		ID:     j.target.ID,
		Host:   j.target.Host,
		Port:   j.target.Port,
	}
	if err := ctx.Err(); err != nil {
		res.Skipped = true
		res.Err = err
		res.Error = err.Error()
		return res
	}

	var err error
	switch j.action {
	case ActionKill:
		err = r.ctl.Kill(ctx, j.target.Host, j.target.Port)
		// The marker goes whatever happened; a process that is still
		// there is found again by the next pass.
		if derr := r.status.Delete(fleet, j.target.ID); derr != nil {
			r.logf("ERROR: removing status of %s: %v", j.target.ID, derr)
		}
	case ActionStart:
		err = r.ctl.Start(ctx, j.entry, fleet)
	case ActionRestart:
		_, err = r.ctl.Restart(ctx, j.target.Host, j.target.Port)
	}

	switch {
	case err == nil:
	case IsWarning(err):
		res.Warning = err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Skipped = true
		res.Err = err
		res.Error = err.Error()
	default:
		res.Err = err
		res.Error = err.Error()
	}
	return res
}
