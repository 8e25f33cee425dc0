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
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeAuth(site *Site, fleet, text string) {
	path := site.path(site.AuthFile, fleet)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		panic(err)
	}
}

func TestAuthCache(t *testing.T) {
	Convey("Given an auth cache", t, func() {
		site := testSite(t)
		a := NewAuthCache(site)
		writeAuth(site, "xpp", "# operators\nalice\n\n  bob  \n")

		Convey("Listed users are allowed", func() {
			ok, err := a.Check("alice", "xpp")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = a.Check("bob", "xpp")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(a.Authorize("alice", "xpp"), ShouldBeNil)
		})

		Convey("Others are not", func() {
			ok, err := a.Check("mallory", "xpp")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(errors.Is(a.Authorize("mallory", "xpp"), ErrUnauthorized), ShouldBeTrue)

			ok, _ = a.Check("", "xpp")
			So(ok, ShouldBeFalse)
			ok, _ = a.Check("# operators", "xpp")
			So(ok, ShouldBeFalse)
		})

		Convey("A missing list refuses everyone", func() {
			_, err := a.Check("alice", "cxi")
			So(err, ShouldNotBeNil)
			So(errors.Is(a.Authorize("alice", "cxi"), ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Lists are cached until invalidated", func() {
			So(a.Authorize("alice", "xpp"), ShouldBeNil)
			writeAuth(site, "xpp", "bob\n")
			So(a.Authorize("alice", "xpp"), ShouldBeNil)

			a.Invalidate("xpp")
			So(errors.Is(a.Authorize("alice", "xpp"), ErrUnauthorized), ShouldBeTrue)

			writeAuth(site, "xpp", "alice\n")
			So(errors.Is(a.Authorize("alice", "xpp"), ErrUnauthorized), ShouldBeTrue)
			a.InvalidateAll()
			So(a.Authorize("alice", "xpp"), ShouldBeNil)
		})
	})
}
