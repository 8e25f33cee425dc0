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

// Telnet command bytes (RFC 854).
const (
	telSE   = 240
	telSB   = 250
	telWILL = 251
	telWONT = 252
	telDO   = 253
	telDONT = 254
	telIAC  = 255
)

const (
	telData = iota
	telCmd
	telOpt
	telSub
	telSubIAC
)

// telnetFilter strips option negotiation out of a telnet stream.  Every
// option the peer offers or requests is refused, which leaves the
// connection as a plain byte stream.  NUL bytes (sent after a bare CR) are
// dropped as well.
type telnetFilter struct {
	state int
	cmd   byte
}

// filter consumes raw bytes from the wire, returning the data bytes and
// any negotiation replies that must be sent back.
func (t *telnetFilter) filter(raw []byte) (data []byte, reply []byte) {
	data = make([]byte, 0, len(raw))
	for _, b := range raw {
		switch t.state {
		case telData:
			switch b {
			case telIAC:
				t.state = telCmd
			case 0:
			default:
				data = append(data, b)
			}
		case telCmd:
			switch b {
			case telIAC:
				data = append(data, b)
				t.state = telData
			case telWILL, telWONT, telDO, telDONT:
				t.cmd = b
				t.state = telOpt
			case telSB:
				t.state = telSub
			default:
				t.state = telData
			}
		case telOpt:
			switch t.cmd {
			case telDO:
				reply = append(reply, telIAC, telWONT, b)
			case telWILL:
				reply = append(reply, telIAC, telDONT, b)
			}
			t.state = telData
		case telSub:
			if b == telIAC {
				t.state = telSubIAC
			}
		case telSubIAC:
			if b == telSE {
				t.state = telData
			} else {
				t.state = telSub
			}
		}
	}
	return data, reply
}
