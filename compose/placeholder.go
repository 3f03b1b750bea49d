package compose

import "fmt"

// Placeholder is a fixed slot on a frame, in frame bitmap pixels.
type Placeholder struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (p Placeholder) Box() Box {
	return Box{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// AllFilled reports whether every placeholder has a photo assigned. The same
// photo may fill more than one placeholder; only empty slots block export.
func AllFilled(placeholders []Placeholder, assigned map[string]string) bool {
	if len(placeholders) == 0 {
		return false
	}
	for _, p := range placeholders {
		if assigned[p.ID] == "" {
			return false
		}
	}
	return true
}

// FrameCompositor fills a frame's placeholders with captured photos. Slot
// geometry is authoritative: photos are stretched into their rectangles.
type FrameCompositor struct {
	frame        string
	placeholders []Placeholder
	assigned     map[string]string
}

// NewFrameCompositor assigns base to the first placeholder, mirroring the
// capture that opened the editor.
func NewFrameCompositor(frame string, placeholders []Placeholder, base string) *FrameCompositor {
	f := &FrameCompositor{
		frame:        frame,
		placeholders: append([]Placeholder(nil), placeholders...),
	}
	f.Reset(base)
	return f
}

func (f *FrameCompositor) Mode() Mode { return ModeFrame }

func (f *FrameCompositor) Placeholders() []Placeholder {
	return append([]Placeholder(nil), f.placeholders...)
}

// Assigned returns a copy of the placeholder id -> photo mapping.
func (f *FrameCompositor) Assigned() map[string]string {
	out := make(map[string]string, len(f.assigned))
	for k, v := range f.assigned {
		out[k] = v
	}
	return out
}

func (f *FrameCompositor) Assign(placeholderID, photo string) error {
	if !f.has(placeholderID) {
		return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, placeholderID)
	}
	if photo == "" {
		return fmt.Errorf("%w: empty photo", ErrBadSource)
	}
	f.assigned[placeholderID] = photo
	return nil
}

func (f *FrameCompositor) Unassign(placeholderID string) error {
	if !f.has(placeholderID) {
		return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, placeholderID)
	}
	delete(f.assigned, placeholderID)
	return nil
}

func (f *FrameCompositor) AllFilled() bool {
	return AllFilled(f.placeholders, f.assigned)
}

func (f *FrameCompositor) Sources() []string {
	refs := []string{f.frame}
	for _, p := range f.placeholders {
		if photo, ok := f.assigned[p.ID]; ok {
			refs = append(refs, photo)
		}
	}
	return refs
}

func (f *FrameCompositor) Layout(Bitmaps) error { return nil }

// Render sizes the surface to the frame bitmap, paints the frame and then
// each assigned photo in placeholder order.
func (f *FrameCompositor) Render(s *Surface, b Bitmaps, opts RenderOptions) error {
	if err := requireAll(b, f.Sources()...); err != nil {
		return err
	}
	frame := b[f.frame]
	s.Resize(frame.Bounds().Dx(), frame.Bounds().Dy())
	s.DrawBase(frame)

	for _, p := range f.placeholders {
		photo, ok := f.assigned[p.ID]
		if !ok {
			continue
		}
		c := p.Box().Center()
		s.DrawTransformed(b[photo], c.X, c.Y, p.Width, p.Height, 0)
	}

	if opts.Selected != "" {
		for _, p := range f.placeholders {
			if p.ID == opts.Selected {
				s.DrawHighlightBorder(p.Box(), HighlightColor, HighlightWidth)
			}
		}
	}
	return nil
}

// HitTest returns the last-listed placeholder containing p. Placeholders are
// selectable but never movable.
func (f *FrameCompositor) HitTest(pt Point) (string, bool) {
	for i := len(f.placeholders) - 1; i >= 0; i-- {
		if f.placeholders[i].Box().Contains(pt) {
			return f.placeholders[i].ID, true
		}
	}
	return "", false
}

func (f *FrameCompositor) Sprite(string) (*Sprite, bool) { return nil, false }

func (f *FrameCompositor) Controls() Controls { return Controls{} }

func (f *FrameCompositor) CanExport() error {
	if !f.AllFilled() {
		return ErrIncomplete
	}
	return nil
}

func (f *FrameCompositor) Reset(base string) {
	f.assigned = make(map[string]string, len(f.placeholders))
	if base != "" && len(f.placeholders) > 0 {
		f.assigned[f.placeholders[0].ID] = base
	}
}

func (f *FrameCompositor) has(id string) bool {
	for _, p := range f.placeholders {
		if p.ID == id {
			return true
		}
	}
	return false
}
