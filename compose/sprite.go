package compose

import (
	"math"

	"github.com/oklog/ulid/v2"
)

type (
	// Point is a coordinate in canvas pixel space.
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Box is an axis-aligned rectangle in canvas pixel space.
	Box struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Sprite is one placed element. In sticker mode X and Y are the top-left
	// corner of the unrotated box; in formal mode they are the logical center
	// of the photo in source canvas space.
	Sprite struct {
		ID       string  `json:"id"`
		Source   string  `json:"source"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Scale    float64 `json:"scale"`
		Rotation float64 `json:"rotation"`
	}

	// Range bounds a slider-style control.
	Range struct {
		Min  float64 `json:"min"`
		Max  float64 `json:"max"`
		Step float64 `json:"step"`
	}
)

// NewSprite returns a sprite with a fresh id, scale 1 and no rotation.
func NewSprite(source string, x, y, width, height float64) *Sprite {
	return &Sprite{
		ID:     ulid.Make().String(),
		Source: source,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		Scale:  1,
	}
}

// Contains reports whether p lies inside b, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Box returns the scaled, unrotated bounding box used for hit-testing.
func (s *Sprite) Box() Box {
	return Box{X: s.X, Y: s.Y, Width: s.Width * s.Scale, Height: s.Height * s.Scale}
}

func (s *Sprite) MoveBy(dx, dy float64) {
	s.X += dx
	s.Y += dy
}

// SetRotation stores deg normalised into [0, 360).
func (s *Sprite) SetRotation(deg float64) {
	s.Rotation = NormalizeDegrees(deg)
}

// SetScale stores v clamped into r. Non-positive results are rejected.
func (s *Sprite) SetScale(v float64, r Range) bool {
	v = r.Clamp(v)
	if v <= 0 || math.IsNaN(v) {
		return false
	}
	s.Scale = v
	return true
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Clamp limits v to the range. A zero range leaves v untouched.
func (r Range) Clamp(v float64) float64 {
	if r.Min == 0 && r.Max == 0 {
		return v
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}
