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

package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/context"
)

// Client talks to a fleetvisord.  It caches what it fetches, and uses
// ETags so that polling an unchanged resource is cheap.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client

	// Cached data
	manager *ManagerInfo
	fleets  map[string]*FleetInfo
	logs    map[string]*LogInfo
	lock    sync.Mutex
}

// NewClient returns a Client for the server at baseURI.  The transport may
// be nil to use a default one, or adjusted for things such as TLS.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	return &Client{
		base:   strings.TrimRight(baseURI, "/"),
		client: &http.Client{Transport: t},
		fleets: make(map[string]*FleetInfo),
		logs:   make(map[string]*LogInfo),
	}
}

// SetAuth sets the user that changes are made as.  The allow-lists are of
// user names; the password is only there for a front end to check.
func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) url(fleet string, parts ...string) string {
	u := c.base + "/fleets"
	if fleet != "" {
		u += "/" + url.PathEscape(fleet)
	}
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// poll issues a GET against the URL.  If etag is set, an unchanged
// resource is not fetched again; if wait is also set, the server holds the
// request for up to wait seconds for it to change.  The new ETag is
// returned, or "" if nothing changed.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {
	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if e := decode(res, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string, v interface{}) error {
	req, e := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(""))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	return decode(res, v)
}

// decode reads a JSON response into v, or the Error it carries.
func decode(res *http.Response, v interface{}) error {
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return e
	}
	if res.StatusCode != http.StatusOK {
		ee := &Error{}
		if json.Unmarshal(body, ee) != nil || ee.Message == "" {
			ee.Message = res.Status
		}
		ee.Code = res.StatusCode
		return ee
	}
	return json.Unmarshal(body, v)
}

func short() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Manager returns the server's top level information.
func (c *Client) Manager() (*ManagerInfo, error) {
	ctx, cancel := short()
	defer cancel()
	return c.pollManager(ctx, 0, nil)
}

// WatchManager waits for the server's serial to move on from last.
func (c *Client) WatchManager(ctx context.Context, last *ManagerInfo) (*ManagerInfo, error) {
	return c.pollManager(ctx, MaxPollTime, last)
}

func (c *Client) pollManager(ctx context.Context, secs int, last *ManagerInfo) (*ManagerInfo, error) {
	otag := ""
	if last != nil {
		otag = last.etag
	}
	v := &ManagerInfo{}
	tag, e := c.poll(ctx, c.base+"/", otag, secs, v)
	if e != nil {
		return nil, e
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if tag == "" {
		if c.manager != nil {
			return c.manager, nil
		}
		return last, nil
	}
	v.etag = tag
	c.manager = v
	return v, nil
}

// Fleets returns the names of the fleets the server manages.
func (c *Client) Fleets() ([]string, error) {
	ctx, cancel := short()
	defer cancel()
	var names []string
	if _, e := c.poll(ctx, c.url(""), "", 0, &names); e != nil {
		return nil, e
	}
	return names, nil
}

// GetFleet returns the last known state of a fleet.  With refresh, the
// server looks at the fleet again first.
func (c *Client) GetFleet(ctx context.Context, name string, refresh bool) (*FleetInfo, error) {
	u := c.url(name)
	if refresh {
		u += "?refresh=1"
	}
	v := &FleetInfo{}
	tag, e := c.poll(ctx, u, "", 0, v)
	if e != nil {
		c.lock.Lock()
		delete(c.fleets, name)
		c.lock.Unlock()
		return nil, e
	}
	v.etag = tag
	c.lock.Lock()
	c.fleets[name] = v
	c.lock.Unlock()
	return v, nil
}

// WatchFleet waits for a fleet to change from last.  If the cached copy
// already differs from last, it is returned at once.
func (c *Client) WatchFleet(ctx context.Context, name string, last *FleetInfo) (*FleetInfo, error) {
	c.lock.Lock()
	cached, ok := c.fleets[name]
	c.lock.Unlock()
	if last == nil {
		return c.GetFleet(ctx, name, false)
	}
	if ok && cached.etag != last.etag {
		return cached, nil
	}

	v := &FleetInfo{}
	tag, e := c.poll(ctx, c.url(name), last.etag, MaxPollTime, v)
	if e != nil {
		return nil, e
	}
	if tag == "" {
		return last, nil
	}
	v.etag = tag
	c.lock.Lock()
	c.fleets[name] = v
	c.lock.Unlock()
	return v, nil
}

// Plan returns what a pass over the fleet would do now.
func (c *Client) Plan(ctx context.Context, name string) (*Plan, error) {
	v := &Plan{}
	if _, e := c.poll(ctx, c.url(name, "plan"), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

// Apply runs a pass over the fleet and returns its report.
func (c *Client) Apply(ctx context.Context, name string) (*Report, error) {
	v := &Report{}
	if e := c.post(ctx, c.url(name, "apply"), v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) procAction(ctx context.Context, fleet, id, action string) (*ActionResult, error) {
	v := &ActionResult{}
	if e := c.post(ctx, c.url(fleet, "procs", id, action), v); e != nil {
		return nil, e
	}
	return v, nil
}

// Kill stops a process of a fleet.
func (c *Client) Kill(ctx context.Context, fleet, id string) (*ActionResult, error) {
	return c.procAction(ctx, fleet, id, "kill")
}

// Restart restarts a process of a fleet in place.
func (c *Client) Restart(ctx context.Context, fleet, id string) (*ActionResult, error) {
	return c.procAction(ctx, fleet, id, "restart")
}

func (c *Client) pollLog(ctx context.Context, name string, secs int, last *LogInfo) (*LogInfo, error) {
	c.lock.Lock()
	cached, ok := c.logs[name]
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if ok && last.etag != cached.etag {
		return cached, nil
	} else {
		otag = last.etag
	}

	u := c.base + "/log"
	if name != "" {
		// Fleet logs are not long polled.
		u = c.url(name, "log")
		secs = 0
	}
	v := &LogInfo{name: name}
	tag, e := c.poll(ctx, u, otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		delete(c.logs, name)
		c.lock.Unlock()
		return nil, e
	}
	if tag == "" {
		if cached != nil {
			return cached, nil
		}
		return last, nil
	}
	v.etag = tag
	c.lock.Lock()
	c.logs[name] = v
	c.lock.Unlock()
	return v, nil
}

// GetLog returns a log: the server's for name "", otherwise the fleet's.
func (c *Client) GetLog(name string) (*LogInfo, error) {
	ctx, cancel := short()
	defer cancel()
	return c.pollLog(ctx, name, 0, nil)
}

// WatchLog waits for a log to change from last.
func (c *Client) WatchLog(ctx context.Context, name string, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, name, MaxPollTime, last)
}
