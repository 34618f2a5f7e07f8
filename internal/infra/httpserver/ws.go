package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
	streamBuffer    = 64
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// GET /v1/{tenant}/events/stream?since=
// Replays retained events after since, then streams new ones. Inbound
// messages are ignored; the client only keeps the connection alive.
func (r *Router) handleEventStream(w http.ResponseWriter, req *http.Request) {
	tenant := chi.URLParam(req, "tenant")
	since, _ := strconv.ParseUint(req.URL.Query().Get("since"), 10, 64)

	conn, err := streamUpgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// subscribe before replay so nothing published in between is lost
	sub := r.bus.Subscribe(ctx, tenant, streamBuffer)
	backlog := r.bus.Since(tenant, since)

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		defer cancel()
		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()

		last := since
		send := func(e events.Event) bool {
			if e.Seq <= last {
				return true
			}
			last = e.Seq
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(e) == nil
		}

		for _, e := range backlog {
			if !send(e) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteWait))
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				if !send(e) {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Debug("event stream closed", zap.String("tenant", tenant), zap.Error(err))
			}
			cancel()
			<-writerDone
			return
		}
	}
}
