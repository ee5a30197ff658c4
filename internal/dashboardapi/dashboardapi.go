// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dashboardapi serves the read-only JSON surface a companion
// dashboard polls: node lists, packet and traceroute histograms, session
// detail, and a Server-Sent-Events stream that tells the dashboard when
// to re-fetch. Every handler reads through internal/store; none of them
// write.
package dashboardapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Deps are the collaborators the dashboard reads from. QueueDepth and
// MyNode are functions rather than concrete types so the router doesn't
// need to depend on internal/queue or internal/loop directly.
type Deps struct {
	Store      *store.Store
	Clock      clock.Clock
	QueueDepth func() int
	MyNode     func() uint32
	BotName    string
	Logger     *slog.Logger
}

// NewRouter builds the gin engine serving every /api/* route described by
// the dashboard's collaborator contract.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handlers{deps: deps}

	api := r.Group("/api")
	api.GET("/overview", h.overview)
	api.GET("/nodes", h.nodes)
	api.GET("/throughput", h.throughput)
	api.GET("/packet-throughput", h.packetThroughput)
	api.GET("/rssi", h.rssi)
	api.GET("/snr", h.snr)
	api.GET("/hops", h.hops)
	api.GET("/traceroute-requesters", h.tracerouteRequesters)
	api.GET("/traceroute-events", h.tracerouteEvents)
	api.GET("/traceroute-destinations", h.tracerouteDestinations)
	api.GET("/hops-to-me", h.hopsToMe)
	api.GET("/traceroute-sessions", h.tracerouteSessions)
	api.GET("/traceroute-sessions/:id", h.tracerouteSession)
	api.GET("/positions", h.positions)
	api.GET("/queue", h.queue)
	api.GET("/events", h.events)

	return r
}

type handlers struct {
	deps Deps
}

// listParams is the {hours, mqtt} pair the aggregate endpoints accept
// (throughput, packet-throughput, rssi, snr, hops, the traceroute
// requester/destination views, hops-to-me). nodes, positions,
// traceroute-events and traceroute-sessions do not read it.
type listParams struct {
	hours int64
	mqtt  store.MQTTFilter
	now   int64
}

func (h *handlers) parseListParams(c *gin.Context) listParams {
	hours := int64(24)
	if raw := c.Query("hours"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
			hours = v
		}
	}
	mqtt := store.MQTTFilter(c.DefaultQuery("mqtt", string(store.MQTTAll)))
	return listParams{hours: hours, mqtt: mqtt, now: h.deps.Clock.Now().Unix()}
}

func (h *handlers) fail(c *gin.Context, err error) {
	h.deps.Logger.Error("dashboard query failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *handlers) overview(c *gin.Context) {
	o, err := h.deps.Store.GetOverview(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bot_name":             h.deps.BotName,
		"node_count":           o.NodeCount,
		"packet_count":         o.PacketCount,
		"traceroute_sessions":  o.TracerouteSessions,
		"complete_traceroutes": o.CompleteTraceroutes,
		"unread_mail_count":    o.UnreadMailCount,
		"oldest_packet_at":     o.OldestPacketAt,
		"newest_packet_at":     o.NewestPacketAt,
		"queue_depth":          h.deps.QueueDepth(),
	})
}

func (h *handlers) nodes(c *gin.Context) {
	nodes, err := h.deps.Store.ListNodes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (h *handlers) throughput(c *gin.Context) {
	p := h.parseListParams(c)
	rows, err := h.deps.Store.Throughput(c.Request.Context(), p.now, p.hours, p.mqtt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// packetThroughput additionally accepts a comma-separated `types` filter;
// an empty or absent value means every packet type, matching Throughput.
func (h *handlers) packetThroughput(c *gin.Context) {
	p := h.parseListParams(c)
	types := splitTypes(c.Query("types"))
	if len(types) == 0 {
		rows, err := h.deps.Store.Throughput(c.Request.Context(), p.now, p.hours, p.mqtt)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	var out []store.CountByType
	for _, t := range types {
		rows, err := h.deps.Store.PacketThroughput(c.Request.Context(), p.now, p.hours, p.mqtt, t)
		if err != nil {
			h.fail(c, err)
			return
		}
		out = append(out, rows...)
	}
	c.JSON(http.StatusOK, out)
}

func splitTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (h *handlers) rssi(c *gin.Context) {
	p := h.parseListParams(c)
	rows, err := h.deps.Store.RSSIDistribution(c.Request.Context(), p.now, p.hours, p.mqtt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) snr(c *gin.Context) {
	p := h.parseListParams(c)
	rows, err := h.deps.Store.SNRDistribution(c.Request.Context(), p.now, p.hours, p.mqtt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) hops(c *gin.Context) {
	p := h.parseListParams(c)
	rows, err := h.deps.Store.HopsDistribution(c.Request.Context(), p.now, p.hours, p.mqtt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// tracerouteRequesters short-circuits to an empty list before the
// companion's own node id is known — every session in the table is
// meaningless until then since there's no "us" to distinguish from.
func (h *handlers) tracerouteRequesters(c *gin.Context) {
	if h.deps.MyNode() == 0 {
		c.JSON(http.StatusOK, []store.LabeledCount{})
		return
	}
	p := h.parseListParams(c)
	rows, err := h.deps.Store.TracerouteRequesters(c.Request.Context(), p.mqtt, p.hours, p.now)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) tracerouteDestinations(c *gin.Context) {
	p := h.parseListParams(c)
	rows, err := h.deps.Store.TracerouteDestinations(c.Request.Context(), p.mqtt, p.hours, p.now)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) tracerouteEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	sessions, err := h.deps.Store.TracerouteEvents(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) hopsToMe(c *gin.Context) {
	myNode := h.deps.MyNode()
	if myNode == 0 {
		c.JSON(http.StatusOK, []store.HopsToMeRow{})
		return
	}
	p := h.parseListParams(c)
	rows, err := h.deps.Store.HopsToMe(c.Request.Context(), myNode, p.now, p.hours, p.mqtt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) tracerouteSessions(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	sessions, err := h.deps.Store.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) tracerouteSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	sess, err := h.deps.Store.GetSession(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	hops, err := h.deps.Store.ListHops(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "hops": hops})
}

func (h *handlers) positions(c *gin.Context) {
	positions, err := h.deps.Store.Positions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (h *handlers) queue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"depth": h.deps.QueueDepth()})
}
