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
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
hosts = ["ioc-xpp-01", "ioc-xpp-02"]

[[procmgr_config]]
id = "ioc-xpp-motors"
host = "ioc-xpp-01"
port = 30001
dir = "ioc/xpp/motors/R1.0.3"

[[procmgr_config]]
id = "ioc-xpp-cam"
host = "ioc-xpp-02"
port = 30002
dir = "ioc/common/cam/R2.1"
cmd = "./st.cmd"
flags = "u"
delay = 3
disable = true
history = ["ioc/common/cam/R2.0"]
`

func writeConfig(site *Site, fleet, text string) string {
	path := filepath.Join(filepath.Dir(site.ConfigFile), fleet+".toml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		panic(err)
	}
	return path
}

func TestConfigStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a config store", t, func() {
		site := testSite(t)
		cs := NewConfigStore(site)

		Convey("A configuration is read", func() {
			path := writeConfig(site, "xpp", testConfig)
			So(cs.Path("xpp"), ShouldEqual, path)

			cfg, err := cs.Read(ctx, "xpp", time.Time{})
			So(err, ShouldBeNil)
			So(cfg.Fleet, ShouldEqual, "xpp")
			So(cfg.Hosts, ShouldResemble, []string{"ioc-xpp-01", "ioc-xpp-02"})
			So(len(cfg.Procs), ShouldEqual, 2)

			m := cfg.Procs[0]
			So(m.ID, ShouldEqual, "ioc-xpp-motors")
			So(m.Port, ShouldEqual, 30001)
			So(m.Disable, ShouldBeFalse)
			So(m.Delay, ShouldEqual, 0)
			So(m.History, ShouldResemble, []string{})

			e, ok := cfg.Entry("ioc-xpp-cam")
			So(ok, ShouldBeTrue)
			So(e.Cmd, ShouldEqual, "./st.cmd")
			So(e.HasFlag('u'), ShouldBeTrue)
			So(e.HasFlag('x'), ShouldBeFalse)
			So(e.Delay, ShouldEqual, 3)
			So(e.Disable, ShouldBeTrue)
			So(e.History, ShouldResemble, []string{"ioc/common/cam/R2.0"})

			_, ok = cfg.Entry("nope")
			So(ok, ShouldBeFalse)

			Convey("And not again until it changes", func() {
				_, err := cs.Read(ctx, "xpp", cfg.ModTime)
				So(err, ShouldEqual, ErrUnchanged)

				later := cfg.ModTime.Add(time.Second)
				So(os.Chtimes(path, later, later), ShouldBeNil)
				cfg2, err := cs.Read(ctx, "xpp", cfg.ModTime)
				So(err, ShouldBeNil)
				So(cfg2.ModTime.Equal(later), ShouldBeTrue)
			})
		})

		Convey("A missing configuration is unreadable", func() {
			_, err := cs.Read(ctx, "nope", time.Time{})
			So(errors.Is(err, ErrConfigUnreadable), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			var ce *ConfigError
			So(errors.As(err, &ce), ShouldBeTrue)
			So(ce.Fleet, ShouldEqual, "nope")
			_, err = os.Stat(cs.Path("nope"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("Bad syntax is unreadable", func() {
			writeConfig(site, "xpp", "[[procmgr_config]\nid = ")
			_, err := cs.Read(ctx, "xpp", time.Time{})
			So(errors.Is(err, ErrConfigUnreadable), ShouldBeTrue)
		})

		Convey("Bad entries are rejected", func() {
			for _, text := range []string{
				"[[procmgr_config]]\nhost = \"h\"\nport = 1\n",
				"[[procmgr_config]]\nid = \"a\"\nport = 1\n",
				"[[procmgr_config]]\nid = \"a\"\nhost = \"h\"\nport = 70000\n",
				"[[procmgr_config]]\nid = \"a\"\nhost = \"h\"\nport = 1\ndelay = -1\n",
				"[[procmgr_config]]\nid = \"a\"\nhost = \"h\"\nport = 1\n" +
					"[[procmgr_config]]\nid = \"a\"\nhost = \"h\"\nport = 2\n",
			} {
				writeConfig(site, "bad", text)
				_, err := cs.Read(ctx, "bad", time.Time{})
				So(errors.Is(err, ErrBadConfigEntry), ShouldBeTrue)
				So(errors.Is(err, ErrConfigUnreadable), ShouldBeTrue)
			}
		})

		Convey("An empty configuration is empty", func() {
			writeConfig(site, "empty", "")
			cfg, err := cs.Read(ctx, "empty", time.Time{})
			So(err, ShouldBeNil)
			So(cfg.Procs, ShouldBeEmpty)
		})
	})
}
