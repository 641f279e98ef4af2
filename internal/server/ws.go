package server

import (
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/quizqti/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	// wsMessageRate is the sustained number of documents per second a
	// connection may submit; bursts of twice that are allowed.
	wsMessageRate = 5
)

type clientCount struct{ n atomic.Int64 }

func (c *clientCount) add(d int64) int { return int(c.n.Add(d)) }
func (c *clientCount) load() int       { return int(c.n.Load()) }

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	// With no configured origins the upgrader's same-origin check applies.
	if len(s.cfg.AllowedOrigins) > 0 {
		origins := s.cfg.AllowedOrigins
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, origins) {
				logging.SecurityEvent("websocket_origin_rejected", "server", "origin", origin)
				return false
			}
			return true
		}
	}
	return u
}

// handleWebSocket serves live validation. Every text message is a whole
// quiz document and is answered with the same envelope /check returns.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logging.WebSocketEvent("client_connected", s.clients.add(1), "remote", clientIP(r))
	defer func() {
		logging.WebSocketEvent("client_disconnected", s.clients.add(-1), "remote", clientIP(r))
	}()

	conn.SetReadLimit(s.cfg.MaxUploadBytes)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	bucket := newTokenBucket(2*wsMessageRate, wsMessageRate)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(r.Context(), "websocket closed", "error", err)
			}
			return
		}
		if !bucket.allow() {
			logging.SecurityEvent("websocket_rate_limited", "server", "remote", clientIP(r))
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(wsWriteWait))
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := APIResponse{Meta: newMeta(r.Context())}
		switch {
		case kind != websocket.TextMessage || !utf8.Valid(msg):
			reply.Error = &APIError{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Send quiz text as a UTF-8 text message"}
		default:
			sum, err := s.check(r.Context(), string(msg), opts)
			if err != nil {
				_, reply.Error = diagnostic(err)
			} else {
				reply.Success = true
				reply.Data = sum
			}
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
