package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single websocket write
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The viewer is a local tool; pages from any origin may connect
	CheckOrigin: func(*http.Request) bool { return true },
}

// viewerConn serializes writes from the tick loop and the command reader
type viewerConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *viewerConn) send(msg ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

func (c *viewerConn) sendError(err error) error {
	return c.send(ServerMessage{Type: "error", Error: err.Error()})
}

// sendTick writes one tick's messages; a finishing tick adds the summary
// and a final status
func (c *viewerConn) sendTick(u tickUpdate) error {
	msgs := []ServerMessage{{Type: "metrics", Metrics: u.metrics}}
	if len(u.records) > 0 {
		msgs = append(msgs, ServerMessage{Type: "records", Records: u.records})
	}
	msgs = append(msgs, ServerMessage{Type: "entities", Entities: u.entities, Cells: u.cells})
	if u.finished {
		if u.err != nil {
			msgs = append(msgs, ServerMessage{Type: "error", Error: u.err.Error()})
		}
		stopped := false
		msgs = append(msgs,
			ServerMessage{Type: "summary", Summary: u.summary},
			ServerMessage{Type: "status", Running: &stopped})
	}
	for _, m := range msgs {
		if err := c.send(m); err != nil {
			return err
		}
	}
	return nil
}
