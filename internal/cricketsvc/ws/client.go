package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/mithun9421/handcricket/internal/comm"
)

// sender is the outbound half of a connection. The hub only ever sees this
// interface, tests substitute an in-memory implementation.
type sender interface {
	enqueue(data []byte) bool
	close()
}

const sendBufferSize = 32

// client wraps one websocket connection. The read pump feeds the hub's
// command channel, the write pump drains the send buffer so a slow client
// never blocks the hub loop.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("write to socket %s failed: %v", c.id, err)
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		log.Infof("closing WebSocket connection: %s", c.id)
		c.conn.Close()
		h.Disconnect(c.id)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", c.id, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", c.id)
			}
			break
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Errorf("failed to unmarshal message from socket %s: %v", c.id, err)
			continue // skip the frame, never drop the connection
		}

		h.Dispatch(c.id, message)
	}
}
