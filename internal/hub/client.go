package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

const (
	clientSendBuffer = 256
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

// ClientConn is one subscribed browser client. Broadcasts flow through
// a buffered channel so a slow client cannot stall the hub.
type ClientConn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan Message
}

// HandleClientConn registers a browser client and pumps broadcasts to
// it until it disconnects.
func (h *Hub) HandleClientConn(ws *websocket.Conn) {
	client := &ClientConn{hub: h, ws: ws, send: make(chan Message, clientSendBuffer)}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	logger.Log.Infof("Browser client connected, total clients: %d", count)

	go client.writePump()
	client.readPump()
}

func (h *Hub) unregisterClient(client *ClientConn) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// readPump discards inbound frames (commands arrive over REST) and
// keeps the pong deadline fresh.
func (c *ClientConn) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
