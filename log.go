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
	"strings"
	"sync"
	"time"
)

// MaxLogRecords is the number of lines a Log keeps.
const MaxLogRecords = 1000

// LogRecord is one logged line.  Ids increase by one per line, so that a
// client holding the id of the last line it saw can ask for what followed.
type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is a ring of the most recent lines written to it.  It is an
// io.Writer, meant to sit underneath a log.Logger.
type Log struct {
	ring  []LogRecord
	next  int // slot the next line goes in
	count int // lines held, at most len(ring)
	id    int64
	cvs   map[*sync.Cond]bool
	mx    sync.Mutex
}

// NewLog returns an empty Log.  The first id is derived from the clock, so
// that ids from a restarted server do not collide with ones a client may
// still hold.
func NewLog() *Log {
	return &Log{
		ring: make([]LogRecord, MaxLogRecords),
		id:   time.Now().UnixNano(),
		cvs:  make(map[*sync.Cond]bool),
	}
}

// Write stores each line of b as a record.
func (l *Log) Write(b []byte) (int, error) {
	text := strings.TrimRight(string(b), "\n")
	now := time.Now()
	l.mx.Lock()
	for _, line := range strings.Split(text, "\n") {
		l.id++
		l.ring[l.next] = LogRecord{Id: l.id, Time: now, Text: line}
		l.next = (l.next + 1) % len(l.ring)
		if l.count < len(l.ring) {
			l.count++
		}
	}
	for cv := range l.cvs {
		cv.Broadcast()
	}
	l.mx.Unlock()
	return len(b), nil
}

// Clear discards every record.
func (l *Log) Clear() {
	l.mx.Lock()
	l.next = 0
	l.count = 0
	l.id = time.Now().UnixNano()
	l.mx.Unlock()
}

// GetRecords returns the records held, oldest first, and the id of the
// newest, which is suitable as an ETag.  If last is already the newest id,
// nil is returned.
func (l *Log) GetRecords(last int64) ([]LogRecord, int64) {
	return l.records(last, false)
}

// Since returns only the records that came after last.  If last is
// unknown to the log, everything is returned.
func (l *Log) Since(last int64) ([]LogRecord, int64) {
	return l.records(last, true)
}

func (l *Log) records(last int64, incremental bool) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.id == last {
		return nil, last
	}
	n := l.count
	oldest := l.id - int64(l.count) + 1
	if incremental && last >= oldest && last < l.id {
		n = int(l.id - last)
	}
	recs := make([]LogRecord, 0, n)
	start := (l.next - n + len(l.ring)) % len(l.ring)
	for i := 0; i < n; i++ {
		recs = append(recs, l.ring[(start+i)%len(l.ring)])
	}
	return recs, l.id
}

// Watch waits until the log has a record newer than last, or until expire
// has passed, and returns the newest id.  With expire zero it only polls.
func (l *Log) Watch(last int64, expire time.Duration) int64 {
	cv := sync.NewCond(&l.mx)
	expired := expire <= 0
	if !expired {
		timer := time.AfterFunc(expire, func() {
			l.mx.Lock()
			expired = true
			cv.Broadcast()
			l.mx.Unlock()
		})
		defer timer.Stop()
	}

	l.mx.Lock()
	defer l.mx.Unlock()
	l.cvs[cv] = true
	for l.id == last && !expired {
		cv.Wait()
	}
	delete(l.cvs, cv)
	return l.id
}
