package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// MonitoringPayload is pushed to proctor/admin dashboards whenever an exam
// session changes: a warning, a forced logout, or a face-verification
// decision.
type MonitoringPayload struct {
	SessionID    string     `json:"session_id,omitempty"`
	StudentID    string     `json:"student_id"`
	MatricNumber string     `json:"matric_number"`
	StudentName  string     `json:"student_name,omitempty"`
	EventType    string     `json:"event_type"`
	Warnings     int        `json:"warnings"`
	IsLoggedOut  bool       `json:"is_logged_out"`
	LogoutReason string     `json:"logout_reason,omitempty"`
	Message      string     `json:"message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LoggedOutAt  *time.Time `json:"logged_out_at,omitempty"`
}

// MonitoringHub fans proctoring events out to every connected dashboard.
type MonitoringHub struct {
	register   chan *monitoringClient
	unregister chan *monitoringClient
	broadcast  chan []byte
	clients    map[*monitoringClient]struct{}
}

func NewMonitoringHub() *MonitoringHub {
	return &MonitoringHub{
		register:   make(chan *monitoringClient),
		unregister: make(chan *monitoringClient),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*monitoringClient]struct{}),
	}
}

func (h *MonitoringHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// Broadcast pushes payload to all connected dashboards.
func (h *MonitoringHub) Broadcast(payload MonitoringPayload) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal payload: %v", err)
		return
	}
	h.broadcast <- data
}

type monitoringClient struct {
	hub  *MonitoringHub
	conn *websocket.Conn
	send chan []byte
}

func newMonitoringClient(hub *MonitoringHub, conn *websocket.Conn) *monitoringClient {
	return &monitoringClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *monitoringClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *monitoringClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
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
