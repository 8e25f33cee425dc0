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

// Messages a supervisor emits.
const (
	MsgBannerEnd        = "server started at"
	MsgIsShutDown       = "SHUT DOWN"
	MsgKilled           = "process was killed"
	MsgRestart          = "new child"
	MsgPrompt           = "\r\n> "
	MsgAutoRestartIsOn  = "auto restart is ON"
	MsgAutoRestartToOff = "auto restart to OFF"
)

// Banner line prefixes.
const (
	bannerChild     = "@@@ Child \""
	bannerServerDir = "@@@ Server startup directory: "
)

// Control sequences understood by a supervisor.
var (
	CtrlToggleAutoRestart = []byte{0x14} // ^T
	CtrlKill              = []byte{0x18} // ^X
	CtrlQuit              = []byte{0x11} // ^Q
	CtrlRestart           = []byte{0x12} // ^R
	CtrlResetInput        = []byte{0x15, 0x0d}
)

// A Command is one control sequence together with the message that
// confirms it.  Commands with an empty Confirm are not acknowledged.
type Command struct {
	Name    string
	Bytes   []byte
	Confirm string
}

var (
	CmdAutoRestartOff = Command{"toggle auto restart", CtrlToggleAutoRestart, MsgAutoRestartToOff}
	CmdKill           = Command{"kill child", CtrlKill, MsgKilled}
	CmdQuit           = Command{"quit supervisor", CtrlQuit, ""}
	CmdRestart        = Command{"restart child", CtrlRestart, MsgRestart}
	CmdResetInput     = Command{"reset input", CtrlResetInput, MsgPrompt}
)
