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
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func WithManager(t *testing.T, name string, fn func(m *Manager)) func() {
	return func() {
		site := testSite(t)
		m := NewManager(name, site)
		So(m, ShouldNotBeNil)
		m.SetLogger(log.New(&testLog{t: t}, "", 0))
		Reset(func() {
			m.Shutdown()
		})
		fn(m)
	}
}

// testFleet populates fleet xpp with a process to restart, one to start
// and one to kill, and returns the fakes standing in for them.
func testFleet(m *Manager) (fa, fk *fakeSupervisor) {
	site := m.Site()
	sd := NewStatusDir(site)
	if err := os.MkdirAll(sd.Path("xpp"), 0755); err != nil {
		panic(err)
	}
	fa = newFake("ioc-a", NoDir).Start()
	fk = newFake("ioc-k", NoDir).Start()
	putMarker(sd, "xpp", "ioc-a", fa.Port, "ioc/a/R1")
	putMarker(sd, "xpp", "ioc-k", fk.Port, "ioc/k/R1")
	writeConfig(site, "xpp", fleetTOML(
		DesiredEntry{ID: "ioc-a", Host: "127.0.0.1", Port: fa.Port, Dir: "ioc/a/R2"},
		DesiredEntry{ID: "ioc-s", Host: "127.0.0.1", Port: deadPort(), Dir: "ioc/s/R1"},
	))
	m.AddFleet("xpp")
	return fa, fk
}

func TestManagerFleets(t *testing.T) {
	Convey("Fleets are registered once", t,
		WithManager(t, "Fleets", func(m *Manager) {
			s := m.Serial()
			m.AddFleet("xpp")
			m.AddFleet("cxi")
			m.AddFleet("xpp")
			So(m.Fleets(), ShouldResemble, []string{"cxi", "xpp"})
			So(m.Serial(), ShouldEqual, s+2)

			info := m.GetInfo()
			So(info.Name, ShouldEqual, "Fleets")
			So(info.Fleets, ShouldResemble, []string{"cxi", "xpp"})
			So(info.Monitoring, ShouldBeFalse)
			So(info.Interval, ShouldEqual, DefaultInterval)

			_, err := m.Info("nope")
			So(err, ShouldEqual, ErrNoFleet)
			_, err = m.Apply(context.Background(), "nope")
			So(err, ShouldEqual, ErrNoFleet)
			_, _, err = m.FleetLog("nope", 0)
			So(err, ShouldEqual, ErrNoFleet)
		}))

	Convey("Serial watchers are woken", t,
		WithManager(t, "Watch", func(m *Manager) {
			s := m.Serial()
			time.AfterFunc(20*time.Millisecond, func() { m.AddFleet("xpp") })
			So(m.WatchSerial(s, 5*time.Second), ShouldEqual, s+1)
			So(m.WatchSerial(s+1, 10*time.Millisecond), ShouldEqual, s+1)
		}))

	Convey("Authorization needs a known fleet", t,
		WithManager(t, "Auth", func(m *Manager) {
			m.AddFleet("xpp")
			writeAuth(m.Site(), "xpp", "alice\n")
			So(m.Authorize("alice", "xpp"), ShouldBeNil)
			So(errors.Is(m.Authorize("bob", "xpp"), ErrUnauthorized), ShouldBeTrue)
			So(m.Authorize("alice", "cxi"), ShouldEqual, ErrNoFleet)
		}))
}

func TestManagerSurvey(t *testing.T) {
	ctx := context.Background()

	Convey("A survey describes the fleet", t,
		WithManager(t, "Survey", func(m *Manager) {
			fa, fk := testFleet(m)
			Reset(fa.Close)
			Reset(fk.Close)

			info, err := m.Info("xpp")
			So(err, ShouldBeNil)
			So(info.Procs, ShouldBeEmpty)

			info, err = m.Survey(ctx, "xpp")
			So(err, ShouldBeNil)
			So(info.Busy, ShouldBeFalse)
			So(info.ConfigTime.IsZero(), ShouldBeFalse)
			So(info.SurveyTime.IsZero(), ShouldBeFalse)
			So(info.LastPass, ShouldBeNil)
			So(len(info.Procs), ShouldEqual, 3)

			a := info.Procs[0]
			So(a.ID, ShouldEqual, "ioc-a")
			So(a.Configured, ShouldBeTrue)
			So(a.Status, ShouldEqual, StatusRunning)
			So(a.Dir, ShouldEqual, "ioc/a/R2")
			So(a.RDir, ShouldEqual, "ioc/a/R1")
			So(a.Pending, ShouldEqual, "restart")

			s := info.Procs[1]
			So(s.ID, ShouldEqual, "ioc-s")
			So(s.Status, ShouldEqual, StatusNoConnect)
			So(s.Pending, ShouldEqual, "start")

			k := info.Procs[2]
			So(k.ID, ShouldEqual, "ioc-k")
			So(k.Configured, ShouldBeFalse)
			So(k.RPort, ShouldEqual, fk.Port)
			So(k.Pending, ShouldEqual, "kill")

			So(ids(info.Plan.Kill), ShouldResemble, []string{"ioc-k"})
		}))

	Convey("A fleet does one thing at a time", t,
		WithManager(t, "Busy", func(m *Manager) {
			m.AddFleet("xpp")
			m.lock()
			f := m.fleets["xpp"]
			So(m.begin(f), ShouldBeNil)
			m.unlock()

			_, err := m.Apply(ctx, "xpp")
			So(err, ShouldEqual, ErrBusy)
			_, err = m.Survey(ctx, "xpp")
			So(err, ShouldEqual, ErrBusy)
			_, err = m.Kill(ctx, "xpp", "ioc-a")
			So(err, ShouldEqual, ErrBusy)
			info, _ := m.Info("xpp")
			So(info.Busy, ShouldBeTrue)

			m.end(f, nil, nil, nil)
			info, _ = m.Info("xpp")
			So(info.Busy, ShouldBeFalse)
		}))

	Convey("An unreadable configuration is reported", t,
		WithManager(t, "NoConfig", func(m *Manager) {
			m.AddFleet("xpp")
			_, err := m.Apply(ctx, "xpp")
			So(errors.Is(err, ErrConfigUnreadable), ShouldBeTrue)
			info, _ := m.Info("xpp")
			So(info.Error, ShouldNotBeEmpty)
			So(info.Busy, ShouldBeFalse)
		}))
}

func TestManagerActions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a managed fleet", t,
		WithManager(t, "Actions", func(m *Manager) {
			fa, fk := testFleet(m)
			Reset(fa.Close)
			Reset(fk.Close)

			Convey("A process can be killed", func() {
				res, err := m.Kill(ctx, "xpp", "ioc-k")
				So(err, ShouldBeNil)
				So(res.Action, ShouldEqual, ActionKill)
				So(res.Failed(), ShouldBeFalse)
				So(fk.Controls(2), ShouldResemble, []byte{0x18, 0x11})

				recs, _, err := m.FleetLog("xpp", 0)
				So(err, ShouldBeNil)
				So(strings.Join(texts(recs), "\n"), ShouldContainSubstring,
					"Operator kill of ioc-k@127.0.0.1")
			})

			Convey("A process can be restarted", func() {
				res, err := m.Restart(ctx, "xpp", "ioc-a")
				So(err, ShouldBeNil)
				So(res.Action, ShouldEqual, ActionRestart)
				So(res.Failed(), ShouldBeFalse)
				So(fa.Controls(2), ShouldResemble, []byte{0x18, 0x12})
			})

			Convey("Only running processes can be acted on", func() {
				_, err := m.Kill(ctx, "xpp", "ioc-s")
				So(err, ShouldEqual, ErrNoProcess)
				_, err = m.Restart(ctx, "xpp", "ioc-q")
				So(err, ShouldEqual, ErrNoProcess)
			})

			Convey("A pass is recorded", func() {
				l := newLauncher().Start()
				Reset(l.Close)
				m.Site().BasePort = l.Port - 100

				rep, err := m.Apply(ctx, "xpp")
				So(err, ShouldBeNil)
				So(len(rep.Results), ShouldEqual, 3)
				So(rep.Failures(), ShouldEqual, 0)
				So(len(l.Commands()), ShouldEqual, 1)

				info, err := m.Info("xpp")
				So(err, ShouldBeNil)
				So(info.LastPass, ShouldNotBeNil)
				So(info.LastPass.ID, ShouldEqual, rep.ID)
				So(info.LastRun.IsZero(), ShouldBeFalse)
				So(info.Error, ShouldBeEmpty)

				recs, _ := m.GetLog(0)
				So(strings.Join(texts(recs), "\n"), ShouldContainSubstring, "xpp: Pass ")
			})

			Convey("Monitoring applies the fleet", func() {
				l := newLauncher().Start()
				Reset(l.Close)
				m.Site().BasePort = l.Port - 100
				m.SetInterval(time.Hour)
				m.StartMonitoring()
				So(m.GetInfo().Monitoring, ShouldBeTrue)

				deadline := time.Now().Add(5 * time.Second)
				var info *FleetInfo
				for time.Now().Before(deadline) {
					info, _ = m.Info("xpp")
					if info.LastPass != nil {
						break
					}
					time.Sleep(20 * time.Millisecond)
				}
				So(info.LastPass, ShouldNotBeNil)
				m.StopMonitoring()
				So(m.GetInfo().Monitoring, ShouldBeFalse)
			})
		}))
}
