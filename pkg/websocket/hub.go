package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub fans out call/campaign lifecycle events to connected ops
// dashboards. Adapted from the teacher's rider/driver Hub: rooms are
// now keyed by campaignId instead of rideId, and messages carry a
// CallUUID/CampaignID pair instead of a Mongo ObjectID user.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

type Message struct {
	Type       string                 `json:"type"`
	RoomID     string                 `json:"room_id,omitempty"`
	CampaignID string                 `json:"campaign_id,omitempty"`
	CallUUID   string                 `json:"call_uuid,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	log.Printf("ops client registered: %s", client.OperatorID)

	if client.CampaignID != "" {
		h.joinRoom(client, campaignRoom(client.CampaignID))
	}

	h.sendToClient(client, Message{
		Type:      "welcome",
		Timestamp: getCurrentTimestamp(),
		Data:      map[string]interface{}{"message": "connected"},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		for roomID, room := range h.rooms {
			if _, exists := room[client]; exists {
				delete(room, client)
				if len(room) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}

		log.Printf("ops client unregistered: %s", client.OperatorID)
	}
}

func (h *Hub) broadcastMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("error unmarshaling ops message: %v", err)
		return
	}

	if msg.RoomID != "" {
		h.sendToRoom(msg.RoomID, msg)
	} else {
		h.sendToAll(msg)
	}
}

func (h *Hub) sendToAll(message Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	data, _ := json.Marshal(message)
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	data, _ := json.Marshal(message)
	for client := range room {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
			delete(room, client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastCampaignEvent pushes a call/campaign lifecycle event to every
// ops client subscribed to that campaign's room. Its one caller is
// WebhookService, which sends a "call_status" event for each webhook
// call transition (§4.7); campaign status changes are not broadcast.
func (h *Hub) BroadcastCampaignEvent(campaignID, eventType string, data map[string]interface{}) {
	h.sendToRoom(campaignRoom(campaignID), Message{
		Type:       eventType,
		CampaignID: campaignID,
		Timestamp:  getCurrentTimestamp(),
		Data:       data,
	})
}

func campaignRoom(campaignID string) string {
	return "campaign_" + campaignID
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
