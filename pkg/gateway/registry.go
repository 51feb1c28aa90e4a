package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// idleAfter marks a client idle in ClientInfo
const idleAfter = 5 * time.Minute

// Client is one WebSocket connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string
	RateLimiter *ClientRateLimiter

	// gorilla/websocket allows a single concurrent writer
	writeMu sync.Mutex

	activityMu   sync.Mutex
	lastActivity time.Time
}

// WriteJSON sends v as one text frame
func (c *Client) WriteJSON(v interface{}, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.Conn.WriteJSON(v)
}

// Touch records activity
func (c *Client) Touch() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
}

// LastActivity returns the time of the last received message
func (c *Client) LastActivity() time.Time {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return c.lastActivity
}

// ClientRegistry manages connected clients
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

// Add adds a client to the registry
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client.ID] = client
}

// Remove removes a client from the registry
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
}

// Get retrieves a client by ID
func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	return client, exists
}

// GetAll returns all clients
func (r *ClientRegistry) GetAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// GetConnectedClients returns client information for all connected clients
func (r *ClientRegistry) GetConnectedClients() []ClientInfo {
	now := time.Now()
	clients := r.GetAll()
	infos := make([]ClientInfo, 0, len(clients))

	for _, client := range clients {
		last := client.LastActivity()
		info := ClientInfo{
			ID:           client.ID,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: last,
			IPAddress:    client.IPAddress,
			Idle:         now.Sub(last) > idleAfter,
		}
		if client.RateLimiter != nil {
			info.Requests, info.InFlight = client.RateLimiter.Stats()
		}
		infos = append(infos, info)
	}

	return infos
}

// CloseIdle closes clients with no message since cutoff and nothing in
// flight, and returns how many it closed
func (r *ClientRegistry) CloseIdle(cutoff time.Time) int {
	closed := 0
	for _, client := range r.GetAll() {
		if client.LastActivity().After(cutoff) {
			continue
		}
		if client.RateLimiter != nil {
			if _, inFlight := client.RateLimiter.Stats(); inFlight > 0 {
				continue
			}
		}

		r.Remove(client.ID)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "idle timeout")
		_ = client.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = client.Conn.Close()
		closed++
	}
	return closed
}

// CloseAll closes every connection and empties the registry
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, client := range clients {
		_ = client.Conn.Close()
	}
}
