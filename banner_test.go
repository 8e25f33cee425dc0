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

	. "github.com/smartystreets/goconvey/convey"
)

const runningBanner = "@@@ Welcome to procServ (procServ Process Server 2.5.1)\r\n" +
	"@@@ Use ^X to kill the child, auto restart is ON, use ^T to toggle auto restart\r\n" +
	"@@@ procServ server PID: 4211\r\n" +
	"@@@ Server startup directory: /reg/g/pcds/package/epics/3.14/ioc/xpp/motors/R1.0/iocBoot/ioc-xpp-motors\r\n" +
	"@@@ Child startup directory: /reg/g/pcds/package/epics/3.14/ioc/xpp/motors/R1.0/iocBoot/ioc-xpp-motors\r\n" +
	"@@@ Child \"ioc-xpp-motors\" started as: ./st.cmd\r\n" +
	"@@@ Child \"ioc-xpp-motors\" PID: 4217\r\n" +
	"@@@ procServ server started at: Mon Oct 12 09:10:11 2026\r\n"

const shutdownBanner = "@@@ Welcome to procServ (procServ Process Server 2.5.1)\r\n" +
	"@@@ Use ^X to kill the child, auto restart is OFF, use ^T to toggle auto restart\r\n" +
	"@@@ procServ server PID: 4211\r\n" +
	"@@@ Server startup directory: /home/ioc\r\n" +
	"@@@ Child \"ioc-xpp-motors\" is SHUT DOWN\r\n" +
	"@@@ procServ server started at: Mon Oct 12 09:10:11 2026\r\n"

func TestParseBanner(t *testing.T) {
	l := DefaultSite().Layout()

	Convey("A running banner is understood", t, func() {
		b := parseBanner(runningBanner, l)
		So(b.Status, ShouldEqual, StatusRunning)
		So(b.PID, ShouldEqual, "4217")
		So(b.ID, ShouldEqual, "ioc-xpp-motors")
		So(b.AutoRestart, ShouldBeTrue)
		So(b.Dir, ShouldEqual, "ioc/xpp/motors/R1.0")
	})

	Convey("A shut down banner has no PID", t, func() {
		b := parseBanner(shutdownBanner, l)
		So(b.Status, ShouldEqual, StatusShutdown)
		So(b.PID, ShouldEqual, NoPID)
		So(b.AutoRestart, ShouldBeFalse)
		So(b.Dir, ShouldEqual, "/home/ioc")
	})

	Convey("A bare shut down banner still parses", t, func() {
		b := parseBanner("server started at\r\nSHUT DOWN\r\n", l)
		So(b.Status, ShouldEqual, StatusShutdown)
		So(b.PID, ShouldEqual, NoPID)
		So(b.ID, ShouldEqual, NoID)
		So(b.Dir, ShouldEqual, NoDir)
	})

	Convey("A banner without its terminator is an error", t, func() {
		b := parseBanner("@@@ Welcome to procServ\r\n@@@ Child \"x\" PID: 12\r\n", l)
		So(b.Status, ShouldEqual, StatusError)
		So(b.PID, ShouldEqual, NoPID)
		So(b.ID, ShouldEqual, NoID)
		So(b.Dir, ShouldEqual, NoDir)
	})

	Convey("A running banner with no child PID is an error", t, func() {
		b := parseBanner("@@@ Child \"x\" started as: st.cmd\r\n"+
			"@@@ procServ server started at: now\r\n", l)
		So(b.Status, ShouldEqual, StatusError)
		So(b.Dir, ShouldEqual, NoDir)
	})

	Convey("Noise between markers is ignored", t, func() {
		text := "garbage\r\n@@@ Child \"a\" PID: 77 (extra)\r\n" +
			"random \"quoted\" chatter\r\nserver started at 12:00\r\n"
		b := parseBanner(text, l)
		So(b.Status, ShouldEqual, StatusRunning)
		So(b.PID, ShouldEqual, "77")
		So(b.ID, ShouldEqual, NoID)
	})
}

func TestScanChild(t *testing.T) {
	Convey("Child names may contain quotes", t, func() {
		tok, ok := scanChild(`we" ird" PID: 9`)
		So(ok, ShouldBeTrue)
		So(tok.kind, ShouldEqual, tokChildPID)
		So(tok.name, ShouldEqual, `we" ird`)
		So(tok.value, ShouldEqual, "9")
	})
	Convey("Unknown child lines yield nothing", t, func() {
		_, ok := scanChild(`x" exited with status 1`)
		So(ok, ShouldBeFalse)
	})
}
