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

// Command fleetvisor is the client for fleetvisord.  It uses subcommands.
//
// The global flags are
//
//	-a <address>     - server address, default http://127.0.0.1:8321
//	-u <user[:pass]> - user for changes, default $USER
//	-c <file>        - site configuration, for probe
//
// Subcommands are
//
//	fleets                     - list the managed fleets
//	status [<fleet> ...]       - show the processes of fleets (or all)
//	plan <fleet>               - show what a pass would do now
//	apply <fleet>              - run a pass now
//	kill <fleet> <id>          - stop a process
//	restart <fleet> <id>       - restart a process in place
//	log [<fleet>]              - show a fleet's log, or the server's
//	probe <host> <port> [<id>] - ask a supervisor directly
//	ui [<fleet>]               - full screen interface
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetvisor/fleetvisor"
	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
	"github.com/fleetvisor/fleetvisor/rest"
)

var (
	addr    = "http://127.0.0.1:8321"
	auth    = ""
	siteCfg = ""
	refresh bool
	timeout = 5 * time.Minute
)

var rootCmd = &cobra.Command{
	Use:           "fleetvisor",
	Short:         "Control fleets of supervised processes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var fleetsCmd = &cobra.Command{
	Use:   "fleets",
	Short: "List the managed fleets",
	Args:  cobra.NoArgs,
	RunE:  runFleets,
}

var statusCmd = &cobra.Command{
	Use:   "status [fleet...]",
	Short: "Show the processes of fleets",
	Long: `Show the processes of the named fleets, or of every fleet.

The state shown is the one from the last pass or survey.  With --refresh
the server looks at each fleet again first.`,
	RunE: runStatus,
}

var planCmd = &cobra.Command{
	Use:   "plan <fleet>",
	Short: "Show what a pass over a fleet would do",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var applyCmd = &cobra.Command{
	Use:   "apply <fleet>",
	Short: "Run a pass over a fleet now",
	Long: `Run a reconciliation pass over a fleet: kill what should not run,
start what should, and restart what runs from the wrong directory.

The user must be on the fleet's allow-list.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var killCmd = &cobra.Command{
	Use:   "kill <fleet> <id>",
	Short: "Stop a process",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args, (*rest.Client).Kill)
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart <fleet> <id>",
	Short: "Restart a process in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args, (*rest.Client).Restart)
	},
}

var logCmd = &cobra.Command{
	Use:   "log [fleet]",
	Short: "Show a fleet's log, or the server's",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

var probeCmd = &cobra.Command{
	Use:   "probe <host> <port> [id]",
	Short: "Ask a supervisor directly what it is running",
	Long: `Connect to the supervisor at host:port and report its banner.  The
server is not involved.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runProbe,
}

var uiCmd = &cobra.Command{
	Use:   "ui [fleet]",
	Short: "Full screen interface",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet := ""
		if len(args) > 0 {
			fleet = args[0]
		}
		return doUI(client(), addr, fleet)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&addr, "addr", "a", addr, "fleetvisord address")
	pf.StringVarP(&auth, "user", "u", auth, "user[:pass] to make changes as (default $USER)")
	pf.StringVarP(&siteCfg, "config", "c", siteCfg, "site configuration (default $"+fleetvisor.ConfigEnv+")")
	pf.DurationVar(&timeout, "timeout", timeout, "how long to wait for the server")
	statusCmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "look at the fleets again first")

	rootCmd.AddCommand(fleetsCmd, statusCmd, planCmd, applyCmd, killCmd,
		restartCmd, logCmd, probeCmd, uiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
		os.Exit(1)
	}
}

func client() *rest.Client {
	c := rest.NewClient(nil, addr)
	user, pass := os.Getenv("USER"), ""
	if auth != "" {
		user, pass, _ = strings.Cut(auth, ":")
	}
	if user != "" {
		c.SetAuth(user, pass)
	}
	return c
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func runFleets(cmd *cobra.Command, args []string) error {
	names, err := client().Fleets()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func showProc(p *rest.ProcInfo) {
	fmt.Printf("  %-24s %-10s %-8s %-26s %s\n", p.ID, util.Status(p),
		p.Pending, util.Location(p), p.Dir)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := client()
	names := args
	if len(names) == 0 {
		var err error
		if names, err = c.Fleets(); err != nil {
			return err
		}
	}
	ctx, cancel := withTimeout()
	defer cancel()
	failed := 0
	for _, n := range names {
		info, err := c.GetFleet(ctx, n, refresh)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", n, err)
			failed++
			continue
		}
		fmt.Printf("%s", info.Name)
		if !info.SurveyTime.IsZero() {
			d := time.Since(info.SurveyTime)
			fmt.Printf(" (as of %s ago)", util.FormatDuration(d))
		}
		if info.Busy {
			fmt.Printf(" [busy]")
		}
		fmt.Println()
		if info.Error != "" {
			fmt.Printf("  error: %s\n", info.Error)
		}
		procs := append([]rest.ProcInfo(nil), info.Procs...)
		util.SortProcs(procs)
		for i := range procs {
			showProc(&procs[i])
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fleets unavailable", failed, len(names))
	}
	return nil
}

func showPlan(p *rest.Plan) {
	if p.Empty() {
		fmt.Println("Nothing to do.")
		return
	}
	for _, t := range p.Kill {
		fmt.Printf("kill    %-24s %s:%d\n", t.ID, t.Host, t.Port)
	}
	for _, e := range p.Start {
		fmt.Printf("start   %-24s %s:%d %s\n", e.ID, e.Host, e.Port, e.Dir)
	}
	for _, t := range p.Restart {
		fmt.Printf("restart %-24s %s:%d\n", t.ID, t.Host, t.Port)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()
	p, err := client().Plan(ctx, args[0])
	if err != nil {
		return err
	}
	showPlan(p)
	return nil
}

func showResult(r *rest.ActionResult) {
	state := "ok"
	switch {
	case r.Skipped:
		state = "skipped: " + r.Error
	case r.Error != "":
		state = "FAILED: " + r.Error
	case r.Warning != "":
		state = "warning: " + r.Warning
	}
	fmt.Printf("%-7s %-24s %s:%d %s\n", r.Action, r.ID, r.Host, r.Port, state)
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout()
	defer cancel()
	rep, err := client().Apply(ctx, args[0])
	if err != nil {
		return err
	}
	if len(rep.Results) == 0 {
		fmt.Printf("%s is converged.\n", rep.Fleet)
		return nil
	}
	for i := range rep.Results {
		showResult(&rep.Results[i])
	}
	if n := rep.Failures(); n > 0 {
		return fmt.Errorf("%d of %d actions failed", n, len(rep.Results))
	}
	return nil
}

func runAction(args []string, fn func(*rest.Client, context.Context, string, string) (*rest.ActionResult, error)) error {
	ctx, cancel := withTimeout()
	defer cancel()
	res, err := fn(client(), ctx, args[0], args[1])
	if err != nil {
		return err
	}
	showResult(res)
	if res.Failed() {
		return fmt.Errorf("%s %s failed", res.Action, res.ID)
	}
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	info, err := client().GetLog(name)
	if err != nil {
		return err
	}
	for _, r := range info.Records {
		fmt.Printf("%s %s\n", r.Time.Format(time.StampMilli), r.Text)
	}
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	site, err := fleetvisor.LoadSite(siteCfg)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad port %q", args[1])
	}
	id := fleetvisor.NoID
	if len(args) > 2 {
		id = args[2]
	}
	obs := fleetvisor.NewProber(site).Probe(context.Background(), args[0], port, id)
	fmt.Printf("Status:      %s\n", obs.Status)
	fmt.Printf("ID:          %s\n", obs.ID)
	fmt.Printf("PID:         %s\n", obs.PID)
	fmt.Printf("Directory:   %s\n", obs.Dir)
	fmt.Printf("AutoRestart: %v\n", obs.AutoRestart)
	if obs.Status != fleetvisor.StatusRunning {
		os.Exit(2)
	}
	return nil
}
