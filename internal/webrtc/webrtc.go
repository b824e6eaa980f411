package webrtc

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

var errNoTrack = errors.New("no video track")

// Session represents a WebRTC session with a client
type Session struct {
	pc         *webrtc.PeerConnection
	videoTrack *webrtc.TrackLocalStaticRTP
	onICE      func(candidate *webrtc.ICECandidate)
	mu         sync.Mutex
	closed     bool
}

// Config for WebRTC session
type Config struct {
	ICEServers []string // STUN/TURN server URLs
	// Static host IPs of this server. When set the session runs ICE-lite
	// and advertises only these addresses.
	ICELiteIPs []string
}

// DefaultConfig returns a default WebRTC configuration
func DefaultConfig() Config {
	return Config{
		ICEServers: []string{
			"stun:stun.l.google.com:19302",
		},
	}
}

// MimeType maps an RTSP codec name to the WebRTC MIME type
func MimeType(codec string) (string, error) {
	switch strings.ToUpper(codec) {
	case "H264":
		return webrtc.MimeTypeH264, nil
	case "VP8":
		return webrtc.MimeTypeVP8, nil
	case "VP9":
		return webrtc.MimeTypeVP9, nil
	}
	return "", fmt.Errorf("codec %q cannot be relayed over WebRTC", codec)
}

// NewSession creates a new WebRTC session
func NewSession(cfg Config, onICE func(*webrtc.ICECandidate)) (*Session, error) {
	config := webrtc.Configuration{}
	if len(cfg.ICELiteIPs) == 0 {
		for _, url := range cfg.ICEServers {
			config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
				URLs: []string{url},
			})
		}
	}

	var se webrtc.SettingEngine
	if len(cfg.ICELiteIPs) > 0 {
		se.SetLite(true)
		se.SetNAT1To1IPs(cfg.ICELiteIPs, webrtc.ICECandidateTypeHost)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	session := &Session{
		pc:    pc,
		onICE: onICE,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && session.onICE != nil {
			session.onICE(c)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Printf("WebRTC: Connection state %s", s.String())
	})

	return session, nil
}

// AddVideoTrack adds a send-only video track of the given MIME type
func (s *Session) AddVideoTrack(mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videoTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		"video",
		"pantilt-camera",
	)
	if err != nil {
		return fmt.Errorf("failed to create video track: %w", err)
	}

	if _, err := s.pc.AddTrack(videoTrack); err != nil {
		return fmt.Errorf("failed to add video track: %w", err)
	}

	s.videoTrack = videoTrack
	return nil
}

// CreateOffer creates an SDP offer with all ICE candidates gathered
func (s *Session) CreateOffer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	return s.pc.LocalDescription().SDP, nil
}

// SetAnswer sets the remote SDP answer
func (s *Session) SetAnswer(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// AddICECandidate adds a remote ICE candidate
func (s *Session) AddICECandidate(candidate string, sdpMid string, sdpMLineIndex uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ice := webrtc.ICECandidateInit{
		Candidate:     candidate,
		SDPMid:        &sdpMid,
		SDPMLineIndex: &sdpMLineIndex,
	}
	if err := s.pc.AddICECandidate(ice); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

// WriteRTP writes an RTP packet to the video track
func (s *Session) WriteRTP(pkt *rtp.Packet) error {
	s.mu.Lock()
	track := s.videoTrack
	s.mu.Unlock()

	if track == nil {
		return errNoTrack
	}
	return track.WriteRTP(pkt)
}

// Close closes the WebRTC session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.pc != nil {
		return s.pc.Close()
	}
	return nil
}
