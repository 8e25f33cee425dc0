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
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable consulted for the site
// configuration file when none is given explicitly.
const ConfigEnv = "FLEETVISOR_CONFIG"

// Site describes the installation that the fleets live in: where the
// configuration, status markers and logs are kept, how processes are
// launched, and the timing used on the wire.  Path templates contain a
// single %s, which is replaced by the fleet name (or, for LogFile and
// PVFile, the process id).
type Site struct {
	ProcServ   string         `yaml:"procserv"`
	StartupDir string         `yaml:"startup_dir"`
	ConfigFile string         `yaml:"config_file"`
	AuthFile   string         `yaml:"auth_file"`
	StatusDir  string         `yaml:"status_dir"`
	LogFile    string         `yaml:"log_file"`
	PVFile     string         `yaml:"pv_file"`
	BasePort   int            `yaml:"base_port"`
	Platforms  map[string]int `yaml:"platforms"`
	SiteTop    string         `yaml:"site_top"`
	EpicsTop   string         `yaml:"epics_top"`

	// Relocated lists directories whose processes are known to report
	// an unreliable startup directory.  A process configured with one
	// of these is always treated as running from it.
	Relocated []string `yaml:"relocated"`

	// Workers bounds the number of targets probed or acted upon at once.
	Workers int `yaml:"workers"`

	Timeouts Timeouts `yaml:"timeouts"`
}

// Timeouts holds the wire timing.  Every network round trip is bounded by
// one of these.
type Timeouts struct {
	Connect time.Duration `yaml:"connect"` // TCP connect
	Banner  time.Duration `yaml:"banner"`  // supervisor banner
	Reply   time.Duration `yaml:"reply"`   // confirmation after a control byte
	Prompt  time.Duration `yaml:"prompt"`  // launcher prompt
	Backoff time.Duration `yaml:"backoff"` // between connect attempts
	Settle  time.Duration `yaml:"settle"`  // after a confirmed control byte
	Pass    time.Duration `yaml:"pass"`    // after a pass has acted
	Retries int           `yaml:"retries"` // connect attempts for commands
}

// DefaultSite returns the stock site layout.
func DefaultSite() *Site {
	return &Site{
		ProcServ:   "/reg/g/pcds/package/procServ-2.5.1/procServ",
		StartupDir: "/reg/g/pcds/pyps/apps/ioc/latest/",
		ConfigFile: "/reg/g/pcds/pyps/config/%s/iocmanager.cfg",
		AuthFile:   "/reg/g/pcds/pyps/config/%s/iocmanager.auth",
		StatusDir:  "/reg/g/pcds/pyps/config/.status/%s",
		LogFile:    "/reg/d/iocData/%s/iocInfo/ioc.log_",
		PVFile:     "/reg/d/iocData/%s/iocInfo/IOC.pvlist",
		BasePort:   29000,
		Platforms: map[string]int{
			"fee": 2,
			"las": 3,
		},
		SiteTop:   "/reg/g/pcds/package/epics/3.14/",
		EpicsTop:  "/reg/g/pcds/package/epics/",
		Relocated: []string{"/reg/g/pcds/controls/camrecord"},
		Workers:   16,
		Timeouts:  DefaultTimeouts(),
	}
}

// DefaultTimeouts returns the timing used when nothing else is configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: time.Second,
		Banner:  time.Second,
		Reply:   time.Second,
		Prompt:  2 * time.Second,
		Backoff: 250 * time.Millisecond,
		Settle:  250 * time.Millisecond,
		Pass:    time.Second,
		Retries: 2,
	}
}

// LoadSite reads the site configuration.  The file is the one named by
// path, or by $FLEETVISOR_CONFIG if path is empty.  With neither, the
// defaults are returned.  Values missing from the file keep their defaults.
func LoadSite(path string) (*Site, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	site := DefaultSite()
	if path == "" {
		return site, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site config: %w", err)
	}
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("parsing site config %s: %w", path, err)
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site config %s: %w", path, err)
	}
	return site, nil
}

// Validate checks that the site is usable.
func (s *Site) Validate() error {
	if s.ProcServ == "" {
		return errors.New("procserv path is empty")
	}
	if s.ConfigFile == "" || s.StatusDir == "" {
		return errors.New("config_file and status_dir are required")
	}
	if s.BasePort <= 0 || s.BasePort > 65535 {
		return fmt.Errorf("base_port %d out of range", s.BasePort)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, not %d", s.Workers)
	}
	if s.Timeouts.Retries < 1 {
		return fmt.Errorf("timeouts.retries must be at least 1, not %d",
			s.Timeouts.Retries)
	}
	return nil
}

// Platform returns the launcher platform number for a fleet.
func (s *Site) Platform(fleet string) int {
	if p, ok := s.Platforms[fleet]; ok {
		return p
	}
	return 1
}

// LauncherPort returns the control port of the launcher supervisor that
// new processes for the fleet are started through.
func (s *Site) LauncherPort(fleet string) int {
	return s.BasePort + 100*s.Platform(fleet)
}

// Layout returns the directory layout used to normalize reported
// directories.
func (s *Site) Layout() Layout {
	return Layout{SiteTop: s.SiteTop, EpicsTop: s.EpicsTop}
}

// IsRelocated reports whether dir is one of the always-relocated
// directories.
func (s *Site) IsRelocated(dir string) bool {
	for _, d := range s.Relocated {
		if d == dir {
			return true
		}
	}
	return false
}

func (s *Site) path(tmpl, name string) string {
	return fmt.Sprintf(tmpl, name)
}
