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

func TestFixDir(t *testing.T) {
	l := DefaultSite().Layout()

	Convey("Directories under the site top are made relative", t, func() {
		d := l.FixDir("/reg/g/pcds/package/epics/3.14/ioc/foo/build/iocBoot/bar", "bar")
		So(d, ShouldEqual, "ioc/foo")
	})
	Convey("A bare iocBoot suffix is dropped too", t, func() {
		d := l.FixDir("/reg/g/pcds/package/epics/3.14/ioc/foo/R1.0/iocBoot/bar", "bar")
		So(d, ShouldEqual, "ioc/foo/R1.0")
	})
	Convey("The suffix must name the process", t, func() {
		d := l.FixDir("/reg/g/pcds/package/epics/3.14/ioc/foo/iocBoot/baz", "bar")
		So(d, ShouldEqual, "ioc/foo/iocBoot/baz")
	})
	Convey("Directories under the epics top are parent relative", t, func() {
		d := l.FixDir("/reg/g/pcds/package/epics/3.15/ioc/foo/iocBoot/bar", "bar")
		So(d, ShouldEqual, "../3.15/ioc/foo")
	})
	Convey("Anything else is left alone", t, func() {
		So(l.FixDir("/home/user/ioc", "bar"), ShouldEqual, "/home/user/ioc")
		So(l.FixDir(NoDir, "bar"), ShouldEqual, NoDir)
	})
	Convey("An empty layout only strips suffixes", t, func() {
		var z Layout
		So(z.FixDir("/x/y/iocBoot/bar", "bar"), ShouldEqual, "/x/y")
	})
}
