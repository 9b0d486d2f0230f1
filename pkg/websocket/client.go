package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one connected ops dashboard. OperatorID identifies the
// connecting operator (from auth middleware); CampaignID, when set,
// auto-subscribes the client to that campaign's event room.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	OperatorID  string
	CampaignID  string
	rooms       map[string]bool
	pongWait    time.Duration
	pingPeriod  time.Duration
	maxMsgBytes int64
}

func NewClient(hub *Hub, conn *websocket.Conn, operatorID, campaignID string, pongWait time.Duration, maxMsgBytes int64) *Client {
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	if maxMsgBytes <= 0 {
		maxMsgBytes = 512
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		OperatorID:  operatorID,
		CampaignID:  campaignID,
		rooms:       make(map[string]bool),
		pongWait:    pongWait,
		pingPeriod:  (pongWait * 9) / 10,
		maxMsgBytes: maxMsgBytes,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMsgBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ops websocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("error unmarshaling client message: %v", err)
		return
	}

	msg.Timestamp = getCurrentTimestamp()

	switch msg.Type {
	case "join_campaign":
		if msg.CampaignID != "" {
			c.hub.mutex.Lock()
			c.hub.joinRoom(c, campaignRoom(msg.CampaignID))
			c.hub.mutex.Unlock()
		}

	case "leave_campaign":
		if msg.CampaignID != "" {
			c.hub.LeaveRoom(c, campaignRoom(msg.CampaignID))
		}

	default:
		c.hub.broadcast <- message
	}
}
