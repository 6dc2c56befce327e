package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/aquaflow/tanker-backend/internal/models"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)

		case message := <-h.broadcast:
			var stalled []*Client
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mutex.RUnlock()
			h.drop(stalled)
		}
	}
}

// drop removes clients whose send buffer is full. Membership is rechecked
// under the write lock so two broadcasts stalling on the same client close
// its channel exactly once.
func (h *Hub) drop(stalled []*Client) {
	if len(stalled) == 0 {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range stalled {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.Send)
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	var stalled []*Client
	h.mutex.RLock()
	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				stalled = append(stalled, client)
			}
		}
	}
	h.mutex.RUnlock()
	h.drop(stalled)
}

// BroadcastToUserType sends a message to all users of a specific type
func (h *Hub) BroadcastToUserType(userType string, message []byte) {
	var stalled []*Client
	h.mutex.RLock()
	for client := range h.clients {
		if client.UserType == userType {
			select {
			case client.Send <- message:
			default:
				stalled = append(stalled, client)
			}
		}
	}
	h.mutex.RUnlock()
	h.drop(stalled)
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// OrderAvailable announces a new pending booking to on-duty drivers
type OrderAvailable struct {
	BookingID    uint    `json:"bookingId"`
	TankerLiters int     `json:"tankerLiters"`
	TotalPrice   float64 `json:"totalPrice"`
	DistanceKm   float64 `json:"distanceKm"`
	Street       string  `json:"street"`
	Immediate    bool    `json:"immediate"`
}

// OrderClaimed tells drivers a booking left the available pool
type OrderClaimed struct {
	BookingID uint `json:"bookingId"`
}

// OrderStatusChanged notifies the customer of a lifecycle change
type OrderStatusChanged struct {
	BookingID  uint   `json:"bookingId"`
	Status     string `json:"status"`
	DriverName string `json:"driverName,omitempty"`
}

// SendOrderAvailable broadcasts a new order to every connected driver
func (h *Hub) SendOrderAvailable(available OrderAvailable) {
	h.sendToUserType(string(models.UserTypeDriver), WebSocketMessage{
		Type: "order_available",
		Data: available,
	})
}

// SendOrderClaimed broadcasts that an order was taken, so other drivers'
// available lists can drop it without waiting for a refresh
func (h *Hub) SendOrderClaimed(claimed OrderClaimed) {
	h.sendToUserType(string(models.UserTypeDriver), WebSocketMessage{
		Type: "order_claimed",
		Data: claimed,
	})
}

// SendOrderStatusChanged notifies the booking's customer
func (h *Hub) SendOrderStatusChanged(customerID uint, changed OrderStatusChanged) {
	data, err := json.Marshal(WebSocketMessage{
		Type: "order_status_changed",
		Data: changed,
	})
	if err != nil {
		log.Printf("Error marshaling order status change: %v", err)
		return
	}
	h.BroadcastToUser(customerID, data)
}

func (h *Hub) sendToUserType(userType string, message WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", message.Type, err)
		return
	}
	h.BroadcastToUserType(userType, data)
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so pings and closes are processed; the
// order feed is push-only, inbound payloads are ignored
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
