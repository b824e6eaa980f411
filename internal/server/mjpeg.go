package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

const boundary = "frame"

// Feed is the MJPEG stream. Only the newest JPEG is kept; a viewer that
// falls behind skips straight to it.
type Feed struct {
	mu    sync.Mutex
	frame []byte
	ready chan struct{} // closed by the next Publish

	viewers atomic.Int32
}

// NewFeed returns an empty feed
func NewFeed() *Feed {
	return &Feed{ready: make(chan struct{})}
}

// Publish replaces the current frame. f takes ownership of jpeg.
func (f *Feed) Publish(jpeg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = jpeg
	close(f.ready)
	f.ready = make(chan struct{})
}

// Active reports whether anyone is watching, so frames need not be
// encoded otherwise.
func (f *Feed) Active() bool {
	return f.viewers.Load() > 0
}

func (f *Feed) current() ([]byte, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.ready
}

// ServeHTTP streams multipart/x-mixed-replace JPEG parts until the
// client goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.viewers.Inc()
	defer f.viewers.Dec()

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	frame, ready := f.current()
	for {
		if frame != nil {
			if err := writePart(mw, frame); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ready:
		}
		frame, ready = f.current()
	}
}

func writePart(mw *multipart.Writer, frame []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(frame)))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
