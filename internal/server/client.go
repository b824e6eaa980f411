package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	pwebrtc "github.com/pion/webrtc/v3"

	"pantilt-tracker/internal/protocol"
	"pantilt-tracker/internal/webrtc"
)

// Client represents a connected WebSocket client
type Client struct {
	id          string
	conn        *websocket.Conn
	server      *Server
	webrtc      *webrtc.Session
	send        chan []byte
	stopRTP     chan struct{}
	unsubscribe func()
	mu          sync.Mutex
	closed      bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		server:  s,
		send:    make(chan []byte, 256),
		stopRTP: make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
	log.Printf("Client %s connected from %s", client.id, r.RemoteAddr)

	go client.writePump()
	go client.readPump()

	client.sendStatus()

	if s.relay != nil {
		if err := client.initWebRTC(); err != nil {
			log.Printf("Client %s: Failed to initialize WebRTC: %v", client.id, err)
			client.sendMessage(protocol.TypeError, protocol.ErrorPayload{
				Code:    protocol.ErrWebRTC,
				Message: err.Error(),
			})
		}
	}
}

func (c *Client) initWebRTC() error {
	mime, err := webrtc.MimeType(c.server.relay.Codec())
	if err != nil {
		return err
	}

	session, err := webrtc.NewSession(c.server.webrtcConfig(), func(candidate *pwebrtc.ICECandidate) {
		init := candidate.ToJSON()
		payload := protocol.ICECandidatePayload{Candidate: init.Candidate}
		if init.SDPMid != nil {
			payload.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			payload.SDPMLineIndex = *init.SDPMLineIndex
		}
		c.sendMessage(protocol.TypeICECandidate, payload)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		session.Close()
		return nil
	}
	c.webrtc = session
	c.mu.Unlock()

	if err := session.AddVideoTrack(mime); err != nil {
		return err
	}

	offer, err := session.CreateOffer()
	if err != nil {
		return err
	}
	c.sendMessage(protocol.TypeOffer, protocol.SDPPayload{SDP: offer})

	packets, unsubscribe := c.server.relay.Subscribe(500)
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	go c.forwardRTP(session, packets)

	return nil
}

func (c *Client) forwardRTP(session *webrtc.Session, packets <-chan *rtp.Packet) {
	for {
		select {
		case <-c.stopRTP:
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			if err := session.WriteRTP(pkt); err != nil {
				// Client disconnected or track closed
				return
			}
		}
	}
}

func (c *Client) sendStatus() {
	s := c.server
	status := protocol.StatusPayload{
		ClientID:      c.id,
		Mode:          s.cfg.Mode,
		Actuator:      s.cfg.Actuator,
		Camera:        s.cfg.Camera,
		VideoProtocol: "mjpeg",
	}
	if s.relay != nil {
		status.VideoProtocol = "webrtc"
	}
	if s.health != nil {
		status.Health = s.health.Health().Status
	}
	c.sendMessage(protocol.TypeStatus, status)
}

func (c *Client) sendMessage(msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		log.Printf("Failed to create message: %v", err)
		return
	}
	c.sendRaw(data)
}

// sendRaw queues data without blocking; it is dropped when the client's
// buffer is full or the client is gone.
func (c *Client) sendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("Client %s send buffer full, dropping message", c.id)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.server.clientsMu.Lock()
		delete(c.server.clients, c)
		c.server.clientsMu.Unlock()
		c.Close()
		log.Printf("Client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(protocol.TypeError, protocol.ErrorPayload{
			Code:    protocol.ErrInvalidMessage,
			Message: "Failed to parse message",
		})
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		var payload protocol.PingPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		c.sendMessage(protocol.TypePong, protocol.PongPayload{
			ClientTimestamp: payload.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
		})

	case protocol.TypeAnswer:
		var payload protocol.SDPPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			if err := session.SetAnswer(payload.SDP); err != nil {
				log.Printf("Client %s: Failed to set answer: %v", c.id, err)
			}
		}

	case protocol.TypeICECandidate:
		var payload protocol.ICECandidatePayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			if err := session.AddICECandidate(payload.Candidate, payload.SDPMid, payload.SDPMLineIndex); err != nil {
				log.Printf("Client %s: Failed to add ICE candidate: %v", c.id, err)
			}
		}

	default:
		c.sendMessage(protocol.TypeError, protocol.ErrorPayload{
			Code:    protocol.ErrUnknownType,
			Message: "Unknown message type: " + msg.Type,
		})
	}
}

func (c *Client) session() *webrtc.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webrtc
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	close(c.stopRTP)
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	if c.webrtc != nil {
		c.webrtc.Close()
		c.webrtc = nil
	}

	close(c.send)
}
