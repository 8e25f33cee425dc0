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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLaunchCommand(t *testing.T) {
	at := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)

	Convey("Log names carry the launch time", t, func() {
		n := LogName("/logs/%s/ioc.log_", "ioc-a", at)
		So(n, ShouldEqual, "/logs/ioc-a/ioc.log_03042026_050607")
	})

	Convey("Given a controller", t, func() {
		site := DefaultSite()
		site.ProcServ = "/bin/procServ"
		site.LogFile = "/logs/%s.log_"
		c := NewController(site)
		c.ScriptRoot = "/scripts"
		e := DesiredEntry{ID: "ioc-a", Host: "h1", Port: 30001, Dir: "ioc/a"}

		Convey("The default command is the startProc script", func() {
			So(c.ProcessCommand(e, "xpp"), ShouldEqual,
				"/scripts/startProc ioc-a 30001 xpp")
		})

		Convey("An entry's own command wins", func() {
			e.Cmd = "./st.cmd"
			So(c.ProcessCommand(e, "xpp"), ShouldEqual, "./st.cmd")
		})

		Convey("The u flag appends the id", func() {
			e.Flags = "u"
			So(c.ProcessCommand(e, "xpp"), ShouldEqual,
				"/scripts/startProc ioc-a 30001 xpp -u ioc-a")
		})

		Convey("The launch wraps the process in a supervisor", func() {
			So(c.LaunchCommand(e, "xpp", at), ShouldEqual,
				"/bin/procServ --logfile /logs/ioc-a.log_03042026_050607"+
					" --name ioc-a --allow --coresize 0 30001"+
					" /scripts/startProc ioc-a 30001 xpp")
		})

		Convey("A delay makes the launcher wait", func() {
			e.Delay = 5
			So(c.LaunchCommand(e, "xpp", at), ShouldEndWith,
				"xpp; sleep 5")
		})
	})
}
