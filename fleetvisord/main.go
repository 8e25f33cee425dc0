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

// Command fleetvisord keeps fleets of supervised processes converged on
// their configuration, and serves their state over REST.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/fleetvisor/fleetvisor"
	"github.com/fleetvisor/fleetvisor/rest"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("fleetvisord: %v", err)
	}
}

func run(args []string) error {
	addr := "127.0.0.1:8321"
	name := "fleetvisord"
	var config string
	var fleets []string
	interval := fleetvisor.DefaultInterval
	monitor := true

	fs := pflag.NewFlagSet("fleetvisord", pflag.ContinueOnError)
	fs.StringVarP(&addr, "addr", "a", addr, "listen address")
	fs.StringVarP(&config, "config", "c", "", "site configuration file (default $"+fleetvisor.ConfigEnv+")")
	fs.StringSliceVarP(&fleets, "fleets", "f", nil, "fleets to manage, comma separated")
	fs.DurationVarP(&interval, "interval", "i", interval, "time between passes over a fleet")
	fs.BoolVarP(&monitor, "monitor", "m", monitor, "apply fleets periodically")
	fs.StringVarP(&name, "name", "n", name, "name of this instance")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(fleets) == 0 {
		return fmt.Errorf("no fleets given (use -f)")
	}

	site, err := fleetvisor.LoadSite(config)
	if err != nil {
		return err
	}

	m := fleetvisor.NewManager(name, site)
	m.SetInterval(interval)
	for _, f := range fleets {
		m.AddFleet(f)
	}
	if monitor {
		m.StartMonitoring()
	}

	srv := &http.Server{Addr: addr, Handler: rest.NewHandler(m)}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Wait for a termination signal, and shut down cleanly if we get it.
	select {
	case err = <-errs:
	case sig := <-sigs:
		log.Printf("Caught %v, shutting down", sig)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	m.Shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}
