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

package ui

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/net/context"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/fleetvisor/fleetvisor/fleetvisor/util"
	"github.com/fleetvisor/fleetvisor/rest"
)

type App struct {
	app       *views.Application
	view      views.View
	panel     views.Widget
	info      *InfoPanel
	help      *HelpPanel
	log       *LogPanel
	main      *MainPanel
	auth      *AuthPanel
	client    *rest.Client
	server    string
	logger    *log.Logger
	fleets    []string
	fleet     string
	finfo     *rest.FleetInfo
	items     []rest.ProcInfo
	err       error
	notice    string
	noticeBad bool
	watch     context.CancelFunc
	logName   string
	logInfo   *rest.LogInfo
	logErr    error
	logCancel context.CancelFunc

	views.WidgetWatchers
}

// NewApp returns the interface for the server at url, starting on fleet
// (or the first fleet, if that is empty).
func NewApp(client *rest.Client, url string, fleet string) *App {
	app := &App{
		app:    &views.Application{},
		client: client,
		server: url,
		fleet:  fleet,
	}
	app.info = NewInfoPanel(app)
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.auth = NewAuthPanel(app)
	app.main = NewMainPanel(app)
	app.panel = app.main
	return app
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowInfo(id string) {
	a.info.SetID(id)
	a.show(a.info)
}

func (a *App) ShowAuth() {
	a.auth.ResetFields()
	a.show(a.auth)
}

// ShowLog shows the log of a fleet, or with name "" the server's.
func (a *App) ShowLog(name string) {
	if a.logCancel != nil {
		a.logCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.logInfo = nil
	a.logErr = nil
	a.logName = name
	a.logCancel = cancel
	a.log.SetName(name)
	go a.refreshLog(ctx, name)

	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

// NextFleet switches to the fleet after the current one.
func (a *App) NextFleet() {
	if len(a.fleets) == 0 {
		return
	}
	next := a.fleets[0]
	for i, f := range a.fleets {
		if f == a.fleet && i+1 < len(a.fleets) {
			next = a.fleets[i+1]
		}
	}
	a.selectFleet(next)
}

func (a *App) selectFleet(name string) {
	if a.watch != nil {
		a.watch()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.watch = cancel
	a.fleet = name
	a.finfo = nil
	a.items = nil
	a.err = nil
	a.notice = ""
	go a.refresh(ctx, name)
}

// act runs a request in the background, reporting on the status line.
func (a *App) act(what string, fn func(ctx context.Context) (string, error)) {
	a.notice = what + "..."
	a.noticeBad = false
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		msg, err := fn(ctx)
		a.app.PostFunc(func() {
			var re *rest.Error
			if errors.As(err, &re) && re.Code == http.StatusUnauthorized {
				a.notice = ""
				a.ShowAuth()
				return
			}
			if err != nil {
				a.notice = fmt.Sprintf("%s: %v", what, err)
				a.noticeBad = true
			} else {
				a.notice = msg
			}
			a.app.Update()
		})
	}()
}

func (a *App) Apply() {
	fleet := a.fleet
	a.act("Applying "+fleet, func(ctx context.Context) (string, error) {
		rep, err := a.client.Apply(ctx, fleet)
		if err != nil {
			return "", err
		}
		if n := rep.Failures(); n > 0 {
			return "", fmt.Errorf("%d of %d actions failed", n, len(rep.Results))
		}
		return fmt.Sprintf("Applied %s: %d actions", fleet, len(rep.Results)), nil
	})
}

func (a *App) Survey() {
	fleet := a.fleet
	a.act("Looking at "+fleet, func(ctx context.Context) (string, error) {
		_, err := a.client.GetFleet(ctx, fleet, true)
		return "", err
	})
}

func (a *App) actOn(verb string, id string, fn func(*rest.Client, context.Context, string, string) (*rest.ActionResult, error)) {
	fleet := a.fleet
	a.act(verb+" "+id, func(ctx context.Context) (string, error) {
		res, err := fn(a.client, ctx, fleet, id)
		switch {
		case err != nil:
			return "", err
		case res.Failed():
			return "", errors.New(res.Error)
		case res.Warning != "":
			return verb + " " + id + ": " + res.Warning, nil
		}
		return verb + " " + id + ": done", nil
	})
}

func (a *App) Kill(id string) {
	a.actOn("Killing", id, (*rest.Client).Kill)
}

func (a *App) Restart(id string) {
	a.actOn("Restarting", id, (*rest.Client).Restart)
}

func (a *App) SetUser(user, pass string) {
	a.client.SetAuth(user, pass)
}

func (a *App) Quit() {
	/* This just posts the quit event. */
	a.app.Quit()
}

func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
}

func (a *App) Logf(fmt string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(fmt, v...)
	}
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetAppName() string {
	return "Fleetvisor v1.0"
}

// refresh keeps the fleet current until ctx is done.
func (a *App) refresh(ctx context.Context, fleet string) {
	var info *rest.FleetInfo
	var e error
	for {
		info, e = a.client.WatchFleet(ctx, fleet, info)
		if ctx.Err() != nil {
			return
		}
		var items []rest.ProcInfo
		if info != nil {
			items = append(items, info.Procs...)
			util.SortProcs(items)
		}
		a.app.PostFunc(func() {
			if a.fleet == fleet {
				a.finfo = info
				a.items = items
				a.err = e
				a.app.Update()
			}
		})
		if e != nil {
			info = nil
			time.Sleep(2 * time.Second)
		}
	}
}

func (a *App) refreshLog(ctx context.Context, name string) {
	info, e := a.client.GetLog(name)
	for {
		a.app.PostFunc(func() {
			if a.logName == name {
				a.logInfo = info
				a.logErr = e
				a.app.Update()
			}
		})
		if e != nil {
			time.Sleep(2 * time.Second)
		}
		if ctx.Err() != nil {
			return
		}
		info, e = a.client.WatchLog(ctx, name, info)
	}
}

// GetFleet returns the current fleet and its state.
func (a *App) GetFleet() (string, *rest.FleetInfo, error) {
	return a.fleet, a.finfo, a.err
}

func (a *App) GetItems() ([]rest.ProcInfo, error) {
	return a.items, a.err
}

func (a *App) GetItem(id string) (*rest.ProcInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	for i := range a.items {
		if a.items[i].ID == id {
			return &a.items[i], nil
		}
	}
	return nil, errors.New("Process not found")
}

// Notice returns the outcome of the last request, and whether it failed.
func (a *App) Notice() (string, bool) {
	return a.notice, a.noticeBad
}

func (a *App) GetLog(name string) (*rest.LogInfo, error) {
	if a.logName == name {
		return a.logInfo, a.logErr
	}
	return nil, nil
}

func (a *App) Run() error {
	fleets, err := a.client.Fleets()
	if err != nil {
		return err
	}
	if len(fleets) == 0 {
		return errors.New("the server manages no fleets")
	}
	a.fleets = fleets
	if a.fleet == "" {
		a.fleet = fleets[0]
	}
	a.Logf("Starting up user interface")
	a.app.SetRootWidget(a)
	a.selectFleet(a.fleet)
	a.ShowMain()
	go func() {
		// Give us periodic updates
		for {
			a.app.Update()
			time.Sleep(time.Second)
		}
	}()
	return a.app.Run()
}
