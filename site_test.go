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
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSite(t *testing.T) {
	Convey("The defaults are valid", t, func() {
		site := DefaultSite()
		So(site.Validate(), ShouldBeNil)
		So(site.LauncherPort("xpp"), ShouldEqual, 29100)
		So(site.LauncherPort("fee"), ShouldEqual, 29200)
		So(site.LauncherPort("las"), ShouldEqual, 29300)
		So(site.IsRelocated("/reg/g/pcds/controls/camrecord"), ShouldBeTrue)
		So(site.IsRelocated("ioc/a"), ShouldBeFalse)
	})

	Convey("Without a file the defaults are used", t, func() {
		t.Setenv(ConfigEnv, "")
		site, err := LoadSite("")
		So(err, ShouldBeNil)
		So(site, ShouldResemble, DefaultSite())
	})

	Convey("Given a site file", t, func() {
		path := filepath.Join(t.TempDir(), "site.yaml")
		text := "base_port: 40000\n" +
			"platforms:\n  xpp: 4\n" +
			"workers: 8\n" +
			"timeouts:\n  connect: 3s\n  retries: 5\n"
		So(os.WriteFile(path, []byte(text), 0644), ShouldBeNil)

		Convey("It overrides the defaults", func() {
			site, err := LoadSite(path)
			So(err, ShouldBeNil)
			So(site.BasePort, ShouldEqual, 40000)
			So(site.Workers, ShouldEqual, 8)
			So(site.LauncherPort("xpp"), ShouldEqual, 40400)
			So(site.LauncherPort("cxi"), ShouldEqual, 40100)
			So(site.Timeouts.Connect, ShouldEqual, 3*time.Second)
			So(site.Timeouts.Retries, ShouldEqual, 5)
			So(site.Timeouts.Banner, ShouldEqual, time.Second)
			So(site.ProcServ, ShouldEqual, DefaultSite().ProcServ)
		})

		Convey("It is found through the environment", func() {
			t.Setenv(ConfigEnv, path)
			site, err := LoadSite("")
			So(err, ShouldBeNil)
			So(site.BasePort, ShouldEqual, 40000)
		})
	})

	Convey("Bad site files are refused", t, func() {
		dir := t.TempDir()
		for i, text := range []string{
			"base_port: [\n",
			"base_port: 70000\n",
			"workers: 0\n",
			"procserv: \"\"\n",
			"timeouts:\n  retries: 0\n",
		} {
			path := filepath.Join(dir, "bad"+string(rune('a'+i))+".yaml")
			So(os.WriteFile(path, []byte(text), 0644), ShouldBeNil)
			_, err := LoadSite(path)
			So(err, ShouldNotBeNil)
		}
		_, err := LoadSite(filepath.Join(dir, "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestBaseName(t *testing.T) {
	Convey("Given a PV list", t, func() {
		site := testSite(t)
		path := site.path(site.PVFile, "ioc-a")
		So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)

		Convey("The heartbeat names the process", func() {
			text := "XPP:MOT:01:RBV, ai\nXPP:IOC:MOT:HEARTBEAT, calc\n" +
				"XPP:IOC:OTHER:HEARTBEAT, calc\n"
			So(os.WriteFile(path, []byte(text), 0644), ShouldBeNil)
			name, ok := site.BaseName("ioc-a")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "XPP:IOC:MOT")
		})

		Convey("No heartbeat, no name", func() {
			So(os.WriteFile(path, []byte("XPP:MOT:01:RBV, ai\n"), 0644), ShouldBeNil)
			_, ok := site.BaseName("ioc-a")
			So(ok, ShouldBeFalse)
		})

		Convey("No list, no name", func() {
			_, ok := site.BaseName("ioc-b")
			So(ok, ShouldBeFalse)
		})
	})
}
