// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olegiv/evsite-go/internal/realtime"
)

// publicTables are the tables announced on the public change stream.
// Registration activity stays on the back-office stream.
var publicTables = map[string]bool{
	realtime.TableSiteSettings: true,
	realtime.TableProjects:     true,
	realtime.TableMedia:        true,
}

// PublicChanges handles GET /p/{slug}/changes, a server-sent event stream
// telling microsites to reload content.
func (h *Handler) PublicChanges(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	h.streamChanges(w, r, project.ID, func(c realtime.Change) bool {
		return publicTables[c.Table]
	})
}

// ProjectChanges handles GET /projects/{id}/changes, the back-office stream
// carrying every table of the project.
func (h *Handler) ProjectChanges(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	h.streamChanges(w, r, project.ID, nil)
}

// streamChanges writes "change" events until the client goes away or the hub
// closes. Comment lines keep idle connections open through proxies.
func (h *Handler) streamChanges(w http.ResponseWriter, r *http.Request, projectID int64, allow func(realtime.Change) bool) {
	if h.hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Change stream is not available", nil)
		return
	}

	sub := h.hub.Subscribe(projectID)
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The stream outlives the server's WriteTimeout.
	_ = rc.SetWriteDeadline(time.Time{})
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, "retry: 5000\n: connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("change stream cannot flush", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			if allow != nil && !allow(c) {
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
