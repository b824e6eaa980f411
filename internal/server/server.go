package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pantilt-tracker/internal/protocol"
	"pantilt-tracker/internal/rtsp"
	"pantilt-tracker/internal/state"
	"pantilt-tracker/internal/tracker"
	"pantilt-tracker/internal/webrtc"
)

// Config for the server
type Config struct {
	ListenAddr string
	Telemetry  time.Duration // telemetry push interval, zero disables it

	// Reported in the status message
	Mode     string
	Actuator string
	Camera   string

	RTSPURL    string   // relayed to WebRTC viewers when set
	ICELiteIPs []string // see webrtc.Config
}

// Telemetry is read access to the shared tracking cells
type Telemetry interface {
	Snapshot() state.Snapshot
}

// HealthReporter reports the state of the tracking units
type HealthReporter interface {
	Health() tracker.Health
}

// AngleReader reads the mount's current angles
type AngleReader interface {
	Pan() (float64, error)
	Tilt() (float64, error)
}

// Server is the display side of the tracker: live view, telemetry and
// health. Nothing in it can block a control loop.
type Server struct {
	cfg       Config
	cells     Telemetry
	health    HealthReporter
	angles    AngleReader
	feed      *Feed
	clients   map[*Client]bool
	clientsMu sync.RWMutex
	relay     *rtsp.Relay
	upgrader  websocket.Upgrader
	staticFS  fs.FS
	stopCh    chan struct{}
	stopOnce  sync.Once
	http      *http.Server
}

// New creates a new server instance. staticFS must hold a web directory.
func New(cfg Config, staticFS fs.FS, cells Telemetry, health HealthReporter, angles AngleReader) (*Server, error) {
	webFS, err := fs.Sub(staticFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded web files: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		cells:    cells,
		health:   health,
		angles:   angles,
		feed:     NewFeed(),
		clients:  make(map[*Client]bool),
		staticFS: webFS,
		stopCh:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
	}
	return s, nil
}

// Feed returns the MJPEG feed to publish annotated frames into
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/stream.mjpg", s.feed)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/", http.FileServer(http.FS(s.staticFS)))
	return mux
}

// Start connects the RTSP relay if configured and serves until Stop
func (s *Server) Start() error {
	if s.cfg.RTSPURL != "" {
		relay, err := rtsp.NewRelay(s.cfg.RTSPURL)
		if err != nil {
			log.Printf("Warning: Failed to create RTSP relay: %v", err)
		} else if err := relay.Start(); err != nil {
			log.Printf("Warning: Failed to connect to RTSP: %v", err)
		} else {
			s.relay = relay
			log.Printf("Relaying RTSP: %s", s.cfg.RTSPURL)
		}
	}

	if s.cfg.Telemetry > 0 {
		go s.broadcastTelemetry()
	}

	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Server starting on %s", s.cfg.ListenAddr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop disconnects every client and closes the listener
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	if s.relay != nil {
		s.relay.Close()
	}
	if s.http != nil {
		s.http.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := tracker.Health{Status: "healthy"}
	if s.health != nil {
		h = s.health.Health()
	}

	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

// broadcastTelemetry pushes the cells to every client at a fixed rate
func (s *Server) broadcastTelemetry() {
	ticker := time.NewTicker(s.cfg.Telemetry)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		s.clientsMu.RLock()
		n := len(s.clients)
		s.clientsMu.RUnlock()
		if n == 0 {
			continue
		}

		data, err := encode(protocol.TypeTelemetry, s.telemetry())
		if err != nil {
			log.Printf("Failed to create telemetry: %v", err)
			continue
		}

		s.clientsMu.RLock()
		for client := range s.clients {
			client.sendRaw(data)
		}
		s.clientsMu.RUnlock()
	}
}

func (s *Server) telemetry() protocol.TelemetryPayload {
	p := protocol.TelemetryPayload{Timestamp: time.Now().UnixMilli()}
	if s.cells != nil {
		snap := s.cells.Snapshot()
		p.ObjectX, p.ObjectY = snap.ObjectX, snap.ObjectY
		p.CenterX, p.CenterY = snap.CenterX, snap.CenterY
		p.PanOutput, p.TiltOutput = snap.PanOutput, snap.TiltOutput
	}
	if s.angles != nil {
		if pan, err := s.angles.Pan(); err == nil {
			p.PanAngle = pan
		}
		if tilt, err := s.angles.Tilt(); err == nil {
			p.TiltAngle = tilt
		}
	}
	if s.health != nil {
		p.Health = s.health.Health().Status
	}
	return p
}

func (s *Server) webrtcConfig() webrtc.Config {
	cfg := webrtc.DefaultConfig()
	cfg.ICELiteIPs = s.cfg.ICELiteIPs
	return cfg
}

func encode(msgType string, payload any) ([]byte, error) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
