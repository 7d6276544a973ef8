package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/ieltsgo/agent/internal/model"
)

// ChannelRecorder carries recorder ticks; job channels are keyed by job id.
const ChannelRecorder = "recorder"

// Client represents a WebSocket client
type Client struct {
	Channel string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub maintains active WebSocket connections. The local UI subscribes to a
// job channel for evaluation progress and to the recorder channel for
// elapsed-time ticks; terminal messages are its navigation signal to the
// result view.
type Hub struct {
	// Clients grouped by channel
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	Channel string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Channel] == nil {
				h.clients[client.Channel] = make(map[*Client]bool)
			}
			h.clients[client.Channel][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Channel]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.Channel)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.Channel]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress sends a polling progress update to job subscribers.
func (h *Hub) BroadcastProgress(job model.SubmissionJob) {
	h.send(job.ID, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    job.ID,
		Progress: job.Progress,
		Status:   job.ServerStatus,
		Step:     job.Step,
	})
}

// BroadcastComplete signals a terminal job state; the UI navigates to the
// result view on receipt, including for failed and timed-out jobs.
func (h *Hub) BroadcastComplete(job model.SubmissionJob) {
	h.send(job.ID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  job.ID,
		State:  job.State,
		Result: job.Result,
	})
}

// BroadcastError sends an error message to job subscribers.
func (h *Hub) BroadcastError(jobID, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

// BroadcastUpload reports artifact upload progress to recorder subscribers.
func (h *Hub) BroadcastUpload(progress int) {
	h.send(ChannelRecorder, model.WSUploadMessage{
		Type:     model.WSMessageTypeUpload,
		Progress: progress,
	})
}

// BroadcastTick reports recorder elapsed seconds to recorder subscribers.
func (h *Hub) BroadcastTick(elapsed int, status string) {
	h.send(ChannelRecorder, model.WSTickMessage{
		Type:    model.WSMessageTypeTick,
		Elapsed: elapsed,
		Status:  status,
	})
}

func (h *Hub) send(channel string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	h.broadcast <- &BroadcastMessage{Channel: channel, Message: data}
}

// HandleConnection handles a WebSocket connection for one channel.
func (h *Hub) HandleConnection(c *websocket.Conn, channel string) {
	client := &Client{
		Channel: channel,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
