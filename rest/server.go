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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetvisor/fleetvisor"
	"github.com/gorilla/mux"
)

// Handler wraps a Manager, adding http.Handler functionality.  Reads are
// open to all; anything that changes a fleet needs an HTTP Basic-Auth
// user on the fleet's allow-list.
type Handler struct {
	m *fleetvisor.Manager
	r *mux.Router
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

// writeJson writes v, honoring If-None-Match when tag is not empty.
func (h *Handler) writeJson(w http.ResponseWriter, r *http.Request, tag string, v interface{}) {
	if tag != "" {
		w.Header().Set("Etag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

// failure maps an error from the manager to a response.
func failure(err error) *Error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, fleetvisor.ErrNoFleet), errors.Is(err, fleetvisor.ErrNoProcess):
		code = http.StatusNotFound
	case errors.Is(err, fleetvisor.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, fleetvisor.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, fleetvisor.ErrConfigUnreadable),
		errors.Is(err, fleetvisor.ErrStatusUnreadable):
		code = http.StatusServiceUnavailable
	}
	return &Error{Code: code, Message: err.Error()}
}

// authorize checks the request's user against the fleet's allow-list.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, fleet string) bool {
	user, _, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="fleetvisor"`)
		h.writeError(w, &Error{http.StatusUnauthorized, "Authentication required"})
		return false
	}
	if err := h.m.Authorize(user, fleet); err != nil {
		h.writeError(w, failure(err))
		return false
	}
	return true
}

// longPoll waits, if the request asks for it, until the serial returned by
// current no longer matches the poll ETag.
func (h *Handler) longPoll(r *http.Request, current func() (int64, error)) (int64, error) {
	want := r.Header.Get(PollEtagHeader)
	secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	deadline := time.Now().Add(time.Duration(secs) * time.Second)
	for {
		ms := h.m.Serial()
		sn, err := current()
		if err != nil || want == "" || etag(sn) != want {
			return sn, err
		}
		left := time.Until(deadline)
		if left <= 0 || r.Context().Err() != nil {
			return sn, nil
		}
		h.m.WatchSerial(ms, left)
	}
}

func (h *Handler) getManager(w http.ResponseWriter, r *http.Request) {
	h.longPoll(r, func() (int64, error) {
		return h.m.Serial(), nil
	})
	info := h.m.GetInfo()
	h.writeJson(w, r, etag(info.Serial), info)
}

func (h *Handler) listFleets(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, r, "", h.m.Fleets())
}

func (h *Handler) getFleet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["fleet"]
	if r.URL.Query().Get("refresh") != "" {
		if _, err := h.m.Survey(r.Context(), name); err != nil {
			h.writeError(w, failure(err))
			return
		}
	}
	var info *fleetvisor.FleetInfo
	_, err := h.longPoll(r, func() (int64, error) {
		var err error
		if info, err = h.m.Info(name); err != nil {
			return 0, err
		}
		return info.Serial, nil
	})
	if err != nil {
		h.writeError(w, failure(err))
		return
	}
	h.writeJson(w, r, etag(info.Serial), info)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["fleet"]
	if info, err := h.m.Survey(r.Context(), name); err != nil {
		h.writeError(w, failure(err))
	} else {
		h.writeJson(w, r, "", info.Plan)
	}
}

func (h *Handler) applyFleet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["fleet"]
	if !h.authorize(w, r, name) {
		return
	}
	// A pass runs to the end even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	if rep, err := h.m.Apply(ctx, name); err != nil {
		h.writeError(w, failure(err))
	} else {
		h.writeJson(w, r, "", rep)
	}
}

func (h *Handler) procAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fleet, id := vars["fleet"], vars["id"]
	if !h.authorize(w, r, fleet) {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	var res *fleetvisor.ActionResult
	var err error
	switch vars["action"] {
	case "kill":
		res, err = h.m.Kill(ctx, fleet, id)
	case "restart":
		res, err = h.m.Restart(ctx, fleet, id)
	}
	if err != nil {
		h.writeError(w, failure(err))
	} else {
		h.writeJson(w, r, "", res)
	}
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	want := r.Header.Get(PollEtagHeader)
	last, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if want != "" {
		secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
		if secs > MaxPollTime {
			secs = MaxPollTime
		}
		if id := h.m.WatchLog(0, 0); etag(id) == want {
			h.m.WatchLog(id, time.Duration(secs)*time.Second)
		}
	}
	recs, id := h.m.GetLog(0)
	if last != 0 {
		recs = since(recs, last)
	}
	h.writeJson(w, r, etag(id), recs)
}

func (h *Handler) getFleetLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["fleet"]
	if recs, id, err := h.m.FleetLog(name, 0); err != nil {
		h.writeError(w, failure(err))
	} else {
		h.writeJson(w, r, etag(id), recs)
	}
}

// since drops the records up to and including last.
func since(recs []LogRecord, last int64) []LogRecord {
	for i, rec := range recs {
		if rec.Id > last {
			return recs[i:]
		}
	}
	return []LogRecord{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns a Handler serving m.
func NewHandler(m *fleetvisor.Manager) *Handler {
	r := mux.NewRouter()
	h := &Handler{m: m, r: r}
	r.HandleFunc("/", h.getManager).Methods("GET")
	r.HandleFunc("/fleets", h.listFleets).Methods("GET")
	r.HandleFunc("/fleets/{fleet}", h.getFleet).Methods("GET")
	r.HandleFunc("/fleets/{fleet}/plan", h.getPlan).Methods("GET")
	r.HandleFunc("/fleets/{fleet}/log", h.getFleetLog).Methods("GET")
	r.HandleFunc("/fleets/{fleet}/apply", h.applyFleet).Methods("POST")
	r.HandleFunc("/fleets/{fleet}/procs/{id}/{action:kill|restart}",
		h.procAction).Methods("POST")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	return h
}
