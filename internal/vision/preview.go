package vision

import (
	"context"
	"image"
	"sync"
)

// Renderer turns a processed frame and its detections into display output.
// It runs on the preview goroutine and may be slow.
type Renderer interface {
	Render(f Frame, detections []image.Rectangle)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(f Frame, detections []image.Rectangle)

func (fn RenderFunc) Render(f Frame, detections []image.Rectangle) { fn(f, detections) }

type previewItem struct {
	frame      Frame
	detections []image.Rectangle
}

// Preview hands frames from a control loop to a Renderer without ever
// blocking the loop. Only the newest frame is kept: a frame offered while
// the renderer is busy replaces the one waiting.
type Preview struct {
	renderer Renderer

	mu      sync.Mutex
	pending *previewItem
	wake    chan struct{}
	active  func() bool
}

// NewPreview returns a preview feeding r. active, when non-nil, is
// consulted before cloning so frames are skipped while nobody watches.
func NewPreview(r Renderer, active func() bool) *Preview {
	return &Preview{
		renderer: r,
		wake:     make(chan struct{}, 1),
		active:   active,
	}
}

// Offer copies f for rendering. The caller keeps ownership of f.
func (p *Preview) Offer(f Frame, detections []image.Rectangle) {
	if p == nil || (p.active != nil && !p.active()) {
		return
	}

	item := &previewItem{frame: f.Clone(), detections: append([]image.Rectangle(nil), detections...)}

	p.mu.Lock()
	if p.pending != nil {
		p.pending.frame.Close()
	}
	p.pending = item
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run renders offered frames until ctx is done.
func (p *Preview) Run(ctx context.Context) error {
	defer p.drop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}

		p.mu.Lock()
		item := p.pending
		p.pending = nil
		p.mu.Unlock()

		if item == nil {
			continue
		}
		p.renderer.Render(item.frame, item.detections)
		item.frame.Close()
	}
}

func (p *Preview) drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.frame.Close()
		p.pending = nil
	}
}
