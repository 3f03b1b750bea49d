package compose

import "errors"

// Mode names a compositor variant.
type Mode string

const (
	ModeFrame   Mode = "frame"
	ModeSticker Mode = "sticker"
	ModeFormal  Mode = "formal"
)

var (
	ErrNotReady           = errors.New("bitmaps not ready")
	ErrNoSelection        = errors.New("no sprite selected")
	ErrUnknownSprite      = errors.New("unknown sprite")
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrIncomplete         = errors.New("not every placeholder has a photo")
	ErrUnknownSize        = errors.New("unknown output size")
	ErrUnknownMode        = errors.New("unknown compositor mode")
)

type (
	// RenderOptions carries view-only state that is not part of the model.
	RenderOptions struct {
		Selected string
	}

	// Controls describes what the selection controls may change.
	Controls struct {
		Scale  Range `json:"scale"`
		Rotate bool  `json:"rotate"`
		// Sticky keeps the current selection when a pointer-down misses.
		Sticky bool `json:"sticky"`
	}

	// Compositor is one editor variant. Render must be a pure function of the
	// model and the supplied bitmaps; Layout is the only place the model may
	// learn about bitmap dimensions.
	Compositor interface {
		Mode() Mode
		// Sources lists every bitmap a full redraw needs.
		Sources() []string
		// Layout runs once all Sources are loaded, before Render.
		Layout(b Bitmaps) error
		Render(s *Surface, b Bitmaps, opts RenderOptions) error
		// HitTest returns the topmost element under p.
		HitTest(p Point) (string, bool)
		// Sprite returns a movable element by id.
		Sprite(id string) (*Sprite, bool)
		Controls() Controls
		// CanExport returns nil when the composition may be saved.
		CanExport() error
		// Reset discards the model and starts over from a new base photo.
		Reset(base string)
	}
)

func requireAll(b Bitmaps, refs ...string) error {
	for _, ref := range refs {
		if _, ok := b[ref]; !ok {
			return ErrNotReady
		}
	}
	return nil
}
