package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/presence"
	"github.com/elliot-conan/mindwellness-chat/internal/service"
)

const (
	readLimit     = 64 * 1024
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// inbound is what the browser sends: a message to publish, or a note
// that the room view is on screen.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outbound frames: "snapshot" carries the full merged view so the
// client re-renders from scratch on every change, "sent" acknowledges
// the client's own publish and carries any crisis resources.
type outbound struct {
	Type     string              `json:"type"`
	Messages any                 `json:"messages,omitempty"`
	Result   *service.SendResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type connection struct {
	ws      *websocket.Conn
	session *service.RoomSession
	pres    *presence.Tracker
	log     *zap.SugaredLogger

	send   chan outbound
	notify chan struct{}
	done   chan struct{}
}

func newConnection(ws *websocket.Conn, session *service.RoomSession, pres *presence.Tracker, log *zap.SugaredLogger) *connection {
	c := &connection{
		ws:      ws,
		session: session,
		pres:    pres,
		log:     log,
		send:    make(chan outbound, 16),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	// Coalesced change signal: many store mutations collapse into one
	// snapshot push.
	session.OnChange(func() {
		select {
		case c.notify <- struct{}{}:
		default:
		}
	})
	return c
}

func (c *connection) run() {
	go c.writePump()
	// Initial snapshot so the client renders the loaded history at once.
	c.pushSnapshot()
	c.readPump()
}

func (c *connection) readPump() {
	defer func() {
		close(c.done)
		if c.pres != nil {
			_ = c.pres.Leave(context.Background(), c.session.RoomID, c.session.Observer.ID)
		}
		if err := c.session.Close(); err != nil {
			c.log.Warnw("session close failed", "room", c.session.RoomID, "err", err)
		}
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		c.handle(in)
	}
}

func (c *connection) handle(in inbound) {
	switch in.Type {
	case "message":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		res, err := c.session.Send(ctx, in.Content)
		cancel()
		if err != nil {
			c.enqueue(outbound{Type: "error", Error: err.Error()})
			return
		}
		c.enqueue(outbound{Type: "sent", Result: res})
	case "visible":
		c.session.Visible()
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
			c.pushSnapshot()
		case out := <-c.send:
			if !c.write(out) {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
			if c.pres != nil {
				_ = c.pres.Join(context.Background(), c.session.RoomID, c.session.Observer.ID)
			}
		}
	}
}

func (c *connection) pushSnapshot() {
	c.enqueue(outbound{Type: "snapshot", Messages: c.session.View()})
}

func (c *connection) enqueue(out outbound) {
	select {
	case c.send <- out:
	case <-c.done:
	default:
		// Drop when the client cannot keep up; the next snapshot is a
		// full view anyway.
	}
}

func (c *connection) write(out outbound) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	b, err := json.Marshal(out)
	if err != nil {
		return true
	}
	return c.ws.WriteMessage(websocket.TextMessage, b) == nil
}
