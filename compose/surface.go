package compose

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/clone"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// HighlightColor is the stroke used for the selected sprite (tailwind blue-500).
var HighlightColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}

// HighlightWidth is the selection stroke width in pixels.
const HighlightWidth = 3

// Surface is the raster every compositor paints into. It holds no geometry
// of its own and is fully repainted on each render.
type Surface struct {
	img *image.RGBA
}

func NewSurface() *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

// Resize clears the raster and sets its dimensions.
func (s *Surface) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (s *Surface) Width() int  { return s.img.Bounds().Dx() }
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// DrawBase stretches src over the whole surface.
func (s *Surface) DrawBase(src image.Image) {
	xdraw.BiLinear.Scale(s.img, s.img.Bounds(), src, src.Bounds(), draw.Src, nil)
}

// DrawTransformed paints src so that, before rotation, it fills the box
// centered on (cx, cy) with the given size. Rotation is clockwise in degrees
// about (cx, cy).
func (s *Surface) DrawTransformed(src image.Image, cx, cy, width, height, rotation float64) {
	sb := src.Bounds()
	if sb.Empty() || width <= 0 || height <= 0 {
		return
	}
	kx := width / float64(sb.Dx())
	ky := height / float64(sb.Dy())
	rad := NormalizeDegrees(rotation) * math.Pi / 180
	sin, cos := math.Sincos(rad)

	// Source pixel (x, y) maps to the box-local point
	// ((x-minX)*kx - w/2, (y-minY)*ky - h/2), which is then rotated and
	// translated to (cx, cy).
	ox := float64(sb.Min.X)*kx + width/2
	oy := float64(sb.Min.Y)*ky + height/2
	s2d := f64.Aff3{
		cos * kx, -sin * ky, cx - cos*ox + sin*oy,
		sin * kx, cos * ky, cy - sin*ox - cos*oy,
	}
	xdraw.BiLinear.Transform(s.img, s2d, src, sb, draw.Over, nil)
}

// DrawHighlightBorder strokes the edge of box. It only touches pixels on the
// stroke and is erased by the next full redraw.
func (s *Surface) DrawHighlightBorder(box Box, c color.Color, width int) {
	r := image.Rect(
		int(math.Round(box.X)), int(math.Round(box.Y)),
		int(math.Round(box.X+box.Width)), int(math.Round(box.Y+box.Height)),
	)
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(s.img, e.Intersect(s.img.Bounds()), u, image.Point{}, draw.Over)
	}
}

// Image returns a copy of the current raster.
func (s *Surface) Image() *image.RGBA {
	return clone.AsRGBA(s.img)
}
