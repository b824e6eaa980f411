// Package rtsp reads the camera's RTSP stream for browser viewers. The
// tracker itself captures through OpenCV; this path only forwards RTP.
package rtsp

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
)

// ErrClosed is returned when connecting a relay that was closed.
var ErrClosed = errors.New("relay closed")

// Relay keeps an RTSP session playing and fans its video RTP packets out
// to subscribers. Slow subscribers lose packets; the camera is never
// held up.
type Relay struct {
	url    string
	stopCh chan struct{}

	mu      sync.Mutex
	client  *gortsplib.Client
	codec   string
	subs    map[chan *rtp.Packet]struct{}
	stopped bool
}

// NewRelay validates rtspURL. Nothing is dialed until Start.
func NewRelay(rtspURL string) (*Relay, error) {
	if _, err := base.ParseURL(rtspURL); err != nil {
		return nil, fmt.Errorf("invalid RTSP URL: %w", err)
	}

	return &Relay{
		url:    rtspURL,
		stopCh: make(chan struct{}),
		subs:   make(map[chan *rtp.Packet]struct{}),
	}, nil
}

// Start establishes the RTSP session and keeps it alive in the background
func (r *Relay) Start() error {
	return r.connect()
}

func newClient() *gortsplib.Client {
	t := gortsplib.TransportTCP
	return &gortsplib.Client{
		Transport:    &t,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		OnDecodeError: func(err error) {
			log.Printf("RTSP: Decode error: %v", err)
		},
	}
}

func (r *Relay) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrClosed
	}

	u, err := base.ParseURL(r.url)
	if err != nil {
		return err
	}

	client := newClient()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to describe stream: %w", err)
	}

	media, forma := findVideo(desc)
	if forma == nil {
		client.Close()
		return fmt.Errorf("no video track in %s", r.url)
	}

	if _, err := client.Setup(desc.BaseURL, media, 0, 0); err != nil {
		client.Close()
		return fmt.Errorf("failed to set up video track: %w", err)
	}

	client.OnPacketRTP(media, forma, r.publish)

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return fmt.Errorf("failed to play: %w", err)
	}

	r.client = client
	r.codec = forma.Codec()
	log.Printf("RTSP: Connected and playing %s", r.codec)

	go r.monitorConnection(client)
	return nil
}

// publish hands each subscriber its own copy: gortsplib reuses the
// buffer behind pkt once the callback returns.
func (r *Relay) publish(pkt *rtp.Packet) {
	buf, err := pkt.Marshal()
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		cp := &rtp.Packet{}
		if err := cp.Unmarshal(append([]byte(nil), buf...)); err != nil {
			continue
		}
		select {
		case ch <- cp:
		default:
			// Drop packet if subscriber is behind
		}
	}
}

// monitorConnection watches for disconnection and reconnects
func (r *Relay) monitorConnection(client *gortsplib.Client) {
	err := client.Wait()

	select {
	case <-r.stopCh:
		return
	default:
	}

	if err != nil {
		log.Printf("RTSP: Connection lost: %v", err)
	}

	// Reconnect with exponential backoff
	for attempt := 1; ; attempt++ {
		delay := min(time.Duration(1<<uint(min(attempt-1, 5)))*time.Second, 30*time.Second)
		log.Printf("RTSP: Reconnect attempt %d in %v", attempt, delay)

		select {
		case <-r.stopCh:
			return
		case <-time.After(delay):
		}

		if err := r.connect(); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			log.Printf("RTSP: Reconnect failed: %v", err)
			continue
		}

		log.Printf("RTSP: Reconnected successfully")
		return
	}
}

// Codec returns the video codec of the current session, empty before Start
func (r *Relay) Codec() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codec
}

// Subscribe returns a channel of video packets and a function that ends
// the subscription and closes the channel.
func (r *Relay) Subscribe(buffer int) (<-chan *rtp.Packet, func()) {
	ch := make(chan *rtp.Packet, buffer)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subs[ch]; ok {
				delete(r.subs, ch)
				close(ch)
			}
		})
	}
}

// Close ends the RTSP session and every subscription
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	client := r.client
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
	r.mu.Unlock()

	close(r.stopCh)

	if client != nil {
		client.Close()
	}
	return nil
}

// findVideo prefers an H264 or H265 track and falls back to the first
// video media.
func findVideo(desc *description.Session) (*description.Media, format.Format) {
	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			switch forma.(type) {
			case *format.H264, *format.H265:
				return media, forma
			}
		}
	}

	for _, media := range desc.Medias {
		if media.Type == description.MediaTypeVideo && len(media.Formats) > 0 {
			return media, media.Formats[0]
		}
	}
	return nil, nil
}
