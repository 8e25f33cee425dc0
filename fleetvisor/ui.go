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

//go:build !plan9 && !js

package main

import (
	"github.com/fleetvisor/fleetvisor/fleetvisor/ui"
	"github.com/fleetvisor/fleetvisor/rest"
)

func doUI(client *rest.Client, url string, fleet string) error {
	app := ui.NewApp(client, url, fleet)
	return app.Run()
}

/*
   Our screen has the following appearance:

    http://localhost:8321/           las                        Fleetvisor v1.0
    12 Processes     9 Running     1 Pending     2 Down     0 Disabled
   ____________________________________________________________________________
   ioc-las-cam3          noconnect  start    ioc-las-02:30012       ioc/las/cam
   ioc-las-motors        running    restart  ioc-las-01:30001       ioc/las/mot
   ioc-las-vac           running             ioc-las-01:30002       ioc/las/vac
   ...
   ____________________________________________________________________________
   [Q] Quit [H] Help [A] Apply [F] Refresh [N] Next fleet [L] Log [I] Info
*/
