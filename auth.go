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
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
)

// AuthCache answers whether a user may act on a fleet.  Each fleet has an
// allow-list file with one user name per line.  A list is read the first
// time it is needed and kept until invalidated.
type AuthCache struct {
	site  *Site
	lists map[string]map[string]bool
	mx    sync.Mutex
}

// NewAuthCache returns an empty AuthCache for the site.
func NewAuthCache(site *Site) *AuthCache {
	return &AuthCache{site: site, lists: make(map[string]map[string]bool)}
}

// Check reports whether user is on the allow-list for fleet.  An unreadable
// list is an error, which callers must treat as a refusal.
func (a *AuthCache) Check(user, fleet string) (bool, error) {
	if user == "" {
		return false, nil
	}
	a.mx.Lock()
	defer a.mx.Unlock()

	list, ok := a.lists[fleet]
	if !ok {
		var err error
		if list, err = a.load(fleet); err != nil {
			return false, err
		}
		a.lists[fleet] = list
	}
	return list[user], nil
}

// Authorize is Check folded into a single error, ErrUnauthorized for a
// user who is not on the list.
func (a *AuthCache) Authorize(user, fleet string) error {
	ok, err := a.Check(user, fleet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s may not change %s", ErrUnauthorized, user, fleet)
	}
	return nil
}

// Invalidate forgets the cached list for fleet.
func (a *AuthCache) Invalidate(fleet string) {
	a.mx.Lock()
	delete(a.lists, fleet)
	a.mx.Unlock()
}

// InvalidateAll forgets every cached list.
func (a *AuthCache) InvalidateAll() {
	a.mx.Lock()
	a.lists = make(map[string]map[string]bool)
	a.mx.Unlock()
}

func (a *AuthCache) load(fleet string) (map[string]bool, error) {
	data, err := os.ReadFile(a.site.path(a.site.AuthFile, fleet))
	if err != nil {
		return nil, err
	}
	list := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if u := strings.TrimSpace(sc.Text()); u != "" && u[0] != '#' {
			list[u] = true
		}
	}
	return list, sc.Err()
}
