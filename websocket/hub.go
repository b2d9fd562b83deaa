// websocket/hub.go
//
// Org-scoped hub pushing register mutations (risks, exceptions, actions,
// audit entries) to connected dashboards.
package websocket

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pirog87/SecurePosture-sub000/utils"
)

type broadcastMessage struct {
	orgID   string
	payload []byte
}

type Hub struct {
	clients    map[string]map[*client]bool
	broadcast  chan broadcastMessage
	register   chan *client
	unregister chan *client
	mutex      sync.Mutex
}

type client struct {
	orgID  string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

var hub = &Hub{
	clients:    make(map[string]map[*client]bool),
	broadcast:  make(chan broadcastMessage),
	register:   make(chan *client),
	unregister: make(chan *client),
}

// Start launches the hub loop. Call once from main.
func Start() {
	go hub.run()
}

func (h *Hub) run() {
	log.Println("WebSocket hub started")
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			if _, ok := h.clients[c.orgID]; !ok {
				h.clients[c.orgID] = make(map[*client]bool)
			}
			h.clients[c.orgID][c] = true
			h.mutex.Unlock()

		case c := <-h.unregister:
			h.mutex.Lock()
			if clients, ok := h.clients[c.orgID]; ok {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					close(c.send)
					if len(clients) == 0 {
						delete(h.clients, c.orgID)
					}
				}
			}
			h.mutex.Unlock()

		case bm := <-h.broadcast:
			h.mutex.Lock()
			if clients, ok := h.clients[bm.orgID]; ok {
				for c := range clients {
					select {
					case c.send <- bm.payload:
					default:
						close(c.send)
						delete(clients, c)
					}
				}
			}
			h.mutex.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleStream upgrades the connection after validating the JWT passed as a
// query parameter or bearer header.
func HandleStream(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if tokenString == "" {
		http.Error(w, "Authentication token required", http.StatusUnauthorized)
		return
	}

	claims, err := utils.ValidateJWT(tokenString)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}
	if claims.OrganizationID == "" || claims.UserID == "" {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		orgID:  claims.OrganizationID,
		userID: claims.UserID,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
	}
	c.hub.register <- c
	log.Printf("WebSocket client connected: user %s org %s", c.userID, c.orgID)

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
