package compose

import "fmt"

// FormalScale matches the zoom slider of the formal photo editor.
var FormalScale = Range{Min: 0.5, Max: 2, Step: 0.1}

// Size is one selectable output format for formal photos.
type Size struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	DPI    int    `json:"dpi"`
}

// Project returns the top-left corner, in output space, at which a photo with
// logical center (cx, cy) in source space is drawn at the given scale.
func Project(outWidth, outHeight int, center Point, scale float64) Point {
	return Point{
		X: float64(outWidth)/2 - center.X*scale,
		Y: float64(outHeight)/2 - center.Y*scale,
	}
}

// FormalCompositor draws one movable, zoomable photo over a fixed
// background cropped to the selected output size. The photo's position lives
// in source canvas space and is re-projected on every render.
type FormalCompositor struct {
	background string
	sizes      []Size
	selected   string

	photo      *Sprite
	positioned bool
}

func NewFormalCompositor(background string, sizes []Size, base string) *FormalCompositor {
	f := &FormalCompositor{
		background: background,
		sizes:      append([]Size(nil), sizes...),
	}
	if len(sizes) > 0 {
		f.selected = sizes[0].ID
	}
	f.Reset(base)
	return f
}

func (f *FormalCompositor) Mode() Mode { return ModeFormal }

func (f *FormalCompositor) Sizes() []Size { return append([]Size(nil), f.sizes...) }

// Photo returns the single movable sprite. X and Y are its logical center.
func (f *FormalCompositor) Photo() *Sprite { return f.photo }

// SelectedSize returns the current output size.
func (f *FormalCompositor) SelectedSize() (Size, bool) {
	for _, s := range f.sizes {
		if s.ID == f.selected {
			return s, true
		}
	}
	return Size{}, false
}

// SelectSize changes only the output dimensions; the photo state is untouched.
func (f *FormalCompositor) SelectSize(id string) error {
	for _, s := range f.sizes {
		if s.ID == id {
			f.selected = id
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSize, id)
}

// Recenter puts the photo back at the middle of the source at scale 1.
func (f *FormalCompositor) Recenter() {
	f.photo.X = f.photo.Width / 2
	f.photo.Y = f.photo.Height / 2
	f.photo.Scale = 1
}

// Place sets the photo's logical center and scale directly. A placed photo
// is not recentered by the first layout.
func (f *FormalCompositor) Place(center Point, scale float64) {
	f.photo.X, f.photo.Y = center.X, center.Y
	f.photo.SetScale(scale, FormalScale)
	f.positioned = true
}

func (f *FormalCompositor) Sources() []string {
	return []string{f.background, f.photo.Source}
}

// Layout learns the source photo size and centers the photo the first time.
func (f *FormalCompositor) Layout(b Bitmaps) error {
	img, ok := b[f.photo.Source]
	if !ok {
		return ErrNotReady
	}
	f.photo.Width = float64(img.Bounds().Dx())
	f.photo.Height = float64(img.Bounds().Dy())
	if !f.positioned {
		f.positioned = true
		f.Recenter()
	}
	return nil
}

func (f *FormalCompositor) Render(s *Surface, b Bitmaps, _ RenderOptions) error {
	size, ok := f.SelectedSize()
	if !ok {
		return ErrUnknownSize
	}
	if err := requireAll(b, f.Sources()...); err != nil {
		return err
	}
	s.Resize(size.Width, size.Height)
	s.DrawBase(b[f.background])

	w := f.photo.Width * f.photo.Scale
	h := f.photo.Height * f.photo.Scale
	origin := Project(size.Width, size.Height, Point{X: f.photo.X, Y: f.photo.Y}, f.photo.Scale)
	s.DrawTransformed(b[f.photo.Source], origin.X+w/2, origin.Y+h/2, w, h, 0)
	return nil
}

// HitTest matches anywhere on the source canvas; dragging the source view
// moves the photo.
func (f *FormalCompositor) HitTest(p Point) (string, bool) {
	src := Box{Width: f.photo.Width, Height: f.photo.Height}
	if src.Contains(p) {
		return f.photo.ID, true
	}
	return "", false
}

func (f *FormalCompositor) Sprite(id string) (*Sprite, bool) {
	if id == f.photo.ID {
		return f.photo, true
	}
	return nil, false
}

func (f *FormalCompositor) Focus() string { return f.photo.ID }

func (f *FormalCompositor) Controls() Controls {
	return Controls{Scale: FormalScale, Sticky: true}
}

func (f *FormalCompositor) CanExport() error {
	if _, ok := f.SelectedSize(); !ok {
		return ErrUnknownSize
	}
	return nil
}

func (f *FormalCompositor) Reset(base string) {
	f.photo = NewSprite(base, 0, 0, 0, 0)
	f.positioned = false
}
