package compose

import "fmt"

const (
	// DefaultStickerSize is the base width and height of a new sticker.
	DefaultStickerSize = 200

	defaultCanvasWidth  = 800
	defaultCanvasHeight = 600
)

// StickerScale matches the scale slider of the sticker editor.
var StickerScale = Range{Min: 0.2, Max: 2, Step: 0.1}

// StickerCompositor places any number of independently transformable
// stickers over the captured photo. Slice order is z-order: the last sprite
// renders on top and wins hit-tests.
type StickerCompositor struct {
	base    string
	sticker string
	sprites []*Sprite

	width, height int
	seeded        bool
}

// NewStickerCompositor returns a compositor whose Add places copies of
// sticker. The first sticker is placed automatically once the base photo's
// size is known.
func NewStickerCompositor(base, sticker string) *StickerCompositor {
	return &StickerCompositor{
		base:    base,
		sticker: sticker,
		width:   defaultCanvasWidth,
		height:  defaultCanvasHeight,
	}
}

func (c *StickerCompositor) Mode() Mode { return ModeSticker }

// Sticker is the catalog sticker reference new stickers are drawn from.
func (c *StickerCompositor) Sticker() string { return c.sticker }

// Sprites returns the sprites in z-order, bottom first.
func (c *StickerCompositor) Sprites() []*Sprite {
	return append([]*Sprite(nil), c.sprites...)
}

// CanvasSize is the size of the base photo, or 800x600 before it is known.
func (c *StickerCompositor) CanvasSize() (int, int) { return c.width, c.height }

// Add places a fresh copy of the catalog sticker at the canvas center.
func (c *StickerCompositor) Add() *Sprite {
	return c.AddFrom(c.sticker)
}

// AddFrom places a sprite of an arbitrary source at the canvas center.
func (c *StickerCompositor) AddFrom(source string) *Sprite {
	s := NewSprite(source,
		float64(c.width)/2-DefaultStickerSize/2,
		float64(c.height)/2-DefaultStickerSize/2,
		DefaultStickerSize, DefaultStickerSize)
	c.sprites = append(c.sprites, s)
	return s
}

// Restore replaces the sprites with copies of sprites, in order. Sprites
// without a source use the catalog sticker and those without an id get a
// fresh one. A restored compositor is never seeded, even when sprites is empty.
func (c *StickerCompositor) Restore(sprites []Sprite) {
	c.sprites = make([]*Sprite, 0, len(sprites))
	for _, sp := range sprites {
		s := NewSprite(sp.Source, sp.X, sp.Y, sp.Width, sp.Height)
		if sp.ID != "" {
			s.ID = sp.ID
		}
		if s.Source == "" {
			s.Source = c.sticker
		}
		if s.Width <= 0 || s.Height <= 0 {
			s.Width, s.Height = DefaultStickerSize, DefaultStickerSize
		}
		if sp.Scale != 0 {
			s.SetScale(sp.Scale, StickerScale)
		}
		s.SetRotation(sp.Rotation)
		c.sprites = append(c.sprites, s)
	}
	c.seeded = true
}

func (c *StickerCompositor) Delete(id string) error {
	for i, s := range c.sprites {
		if s.ID == id {
			c.sprites = append(c.sprites[:i], c.sprites[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSprite, id)
}

func (c *StickerCompositor) Sources() []string {
	refs := []string{c.base}
	for _, s := range c.sprites {
		refs = append(refs, s.Source)
	}
	if !c.seeded {
		refs = append(refs, c.sticker)
	}
	return refs
}

// Layout records the base photo size and seeds the first sticker.
func (c *StickerCompositor) Layout(b Bitmaps) error {
	img, ok := b[c.base]
	if !ok {
		return ErrNotReady
	}
	c.width, c.height = img.Bounds().Dx(), img.Bounds().Dy()
	if !c.seeded {
		c.seeded = true
		if len(c.sprites) == 0 {
			c.Add()
		}
	}
	return nil
}

func (c *StickerCompositor) Render(s *Surface, b Bitmaps, opts RenderOptions) error {
	if err := requireAll(b, c.base); err != nil {
		return err
	}
	for _, sp := range c.sprites {
		if err := requireAll(b, sp.Source); err != nil {
			return err
		}
	}

	base := b[c.base]
	s.Resize(base.Bounds().Dx(), base.Bounds().Dy())
	s.DrawBase(base)

	for _, sp := range c.sprites {
		box := sp.Box()
		center := box.Center()
		s.DrawTransformed(b[sp.Source], center.X, center.Y, box.Width, box.Height, sp.Rotation)
		if sp.ID == opts.Selected {
			s.DrawHighlightBorder(box, HighlightColor, HighlightWidth)
		}
	}
	return nil
}

func (c *StickerCompositor) HitTest(p Point) (string, bool) {
	for i := len(c.sprites) - 1; i >= 0; i-- {
		if c.sprites[i].Box().Contains(p) {
			return c.sprites[i].ID, true
		}
	}
	return "", false
}

func (c *StickerCompositor) Sprite(id string) (*Sprite, bool) {
	for _, s := range c.sprites {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Focus selects the topmost sticker after the first layout.
func (c *StickerCompositor) Focus() string {
	if len(c.sprites) == 0 {
		return ""
	}
	return c.sprites[len(c.sprites)-1].ID
}

func (c *StickerCompositor) Controls() Controls {
	return Controls{Scale: StickerScale, Rotate: true}
}

func (c *StickerCompositor) CanExport() error { return nil }

func (c *StickerCompositor) Reset(base string) {
	c.base = base
	c.sprites = nil
	c.seeded = false
	c.width, c.height = defaultCanvasWidth, defaultCanvasHeight
}
