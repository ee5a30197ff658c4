// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dashboardapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAliveInterval matches the interval the dashboard's original
// implementation pings on, so a proxy sitting between the two never times
// out an idle connection.
const keepAliveInterval = 30 * time.Second

// events streams a `refresh` SSE event every time the store commits a
// write, plus a `ping` event on keepAliveInterval so intermediaries
// don't close the connection during a quiet period. Store.Changed's
// channel is closed (not sent on) exactly once per change, so it must be
// re-fetched after every fire.
func (h *handlers) events(c *gin.Context) {
	ctx := c.Request.Context()
	changed := h.deps.Store.Changed()

	ticker := h.deps.Clock.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-changed:
			changed = h.deps.Store.Changed()
			c.SSEvent("refresh", "")
			return true
		case <-ticker.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}
