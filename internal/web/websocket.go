// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package web

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pdflens/internal/logger"
	"github.com/pdflens/internal/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// The zero CheckOrigin only accepts same-host pages
var upgrader = websocket.Upgrader{}

// PushMessage is sent to the page after every change of its view
type PushMessage struct {
	Type    string        `json:"type"`
	Version uint64        `json:"version"`
	Count   int           `json:"count"`
	Error   *view.Failure `json:"error"`
	HTML    string        `json:"html"`
}

// handleWebSocket streams re-rendered tables to the page until either side goes away
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ctrl, created := s.sessions.GetOrCreate(requestedView(r))

	header := http.Header{}
	header.Set(ViewHeader, id)
	if created {
		header.Add("Set-Cookie", viewCookie(id).String())
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Warnf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	presenter := ctrl.Presenter()
	updates := presenter.Events().Subscribe()
	defer presenter.Events().Unsubscribe(updates)

	logger.Debugf("WebSocket view connected: %s", id)
	defer logger.Debugf("WebSocket view disconnected: %s", id)

	// Reader: handles pongs and notices the page closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warnf("WebSocket error for view %s: %v", id, err)
				}
				return
			}
		}
	}()

	if err := push(conn, "snapshot", presenter.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if err := push(conn, ev.Type, presenter.Snapshot()); err != nil {
				logger.Warnf("Failed to push %s to view %s: %v", ev.Type, id, err)
				return
			}
		case <-ticker.C:
			// An open page keeps its view alive
			s.sessions.Get(id)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// push renders the snapshot's table and writes it as one JSON message
func push(conn *websocket.Conn, eventType string, snap view.Snapshot) error {
	var buf bytes.Buffer
	if err := view.RenderTable(&buf, snap.Records); err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(PushMessage{
		Type:    eventType,
		Version: snap.Version,
		Count:   snap.Count,
		Error:   snap.Error,
		HTML:    buf.String(),
	})
}
