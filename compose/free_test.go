package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func laidOutSticker(t *testing.T) (*StickerCompositor, Bitmaps) {
	t.Helper()
	c := NewStickerCompositor("base", "sticker")
	b := Bitmaps{
		"base":    solid(800, 600, red),
		"sticker": solid(10, 10, green),
	}
	require.NoError(t, c.Layout(b))
	return c, b
}

func TestStickerScenarioAddAndDrag(t *testing.T) {
	c, _ := laidOutSticker(t)
	sprites := c.Sprites()
	require.Len(t, sprites, 1, "first sticker is seeded on layout")
	s := sprites[0]
	assert.Equal(t, box(300, 200, 500, 400), s.Box())

	ctrl := NewController(c)
	ctrl.PointerDown(Point{X: 400, Y: 300})
	require.Equal(t, s.ID, ctrl.Selected())
	require.True(t, ctrl.Dragging())

	assert.True(t, ctrl.PointerMove(Point{X: 420, Y: 290}))
	assert.True(t, ctrl.PointerMove(Point{X: 450, Y: 280}))
	ctrl.PointerUp()

	assert.Equal(t, box(350, 180, 550, 380), s.Box())
	assert.False(t, ctrl.PointerMove(Point{X: 0, Y: 0}), "moves after pointer-up are ignored")
}

func TestStickerLayoutSeedsOnce(t *testing.T) {
	c, b := laidOutSticker(t)
	require.NoError(t, c.Layout(b))
	assert.Len(t, c.Sprites(), 1)
	assert.Equal(t, []string{"base", "sticker"}, c.Sources())
}

func TestStickerAddUsesCanvasCenter(t *testing.T) {
	c := NewStickerCompositor("base", "sticker")
	s := c.Add()
	assert.Equal(t, box(300, 200, 500, 400), s.Box(), "default canvas is 800x600")

	require.NoError(t, c.Layout(Bitmaps{"base": solid(1000, 400, red), "sticker": solid(1, 1, green)}))
	s = c.Add()
	assert.Equal(t, box(400, 100, 600, 300), s.Box())
}

func TestStickerHitTestTopmost(t *testing.T) {
	c := NewStickerCompositor("base", "sticker")
	a := c.Add()
	b := c.Add()
	top := c.Add()

	id, ok := c.HitTest(Point{X: 400, Y: 300})
	require.True(t, ok)
	assert.Equal(t, top.ID, id)

	top.MoveBy(300, 0)
	id, ok = c.HitTest(Point{X: 400, Y: 300})
	require.True(t, ok)
	assert.Equal(t, b.ID, id)

	require.NoError(t, c.Delete(b.ID))
	id, ok = c.HitTest(Point{X: 400, Y: 300})
	require.True(t, ok)
	assert.Equal(t, a.ID, id)

	_, ok = c.HitTest(Point{X: 5, Y: 5})
	assert.False(t, ok)
}

func TestStickerDeleteUnknown(t *testing.T) {
	c := NewStickerCompositor("base", "sticker")
	assert.ErrorIs(t, c.Delete("missing"), ErrUnknownSprite)
}

func TestDragDeltaAccumulation(t *testing.T) {
	deltas := []Point{{X: 3, Y: -1}, {X: 0.5, Y: 7}, {X: -12, Y: 2}, {X: 40, Y: 40}, {X: -1.5, Y: -0.25}}

	c := NewStickerCompositor("base", "sticker")
	s := c.Add()
	p0 := Point{X: s.X, Y: s.Y}

	ctrl := NewController(c)
	p := Point{X: 310, Y: 210}
	ctrl.PointerDown(p)
	var sum Point
	for _, d := range deltas {
		p = Point{X: p.X + d.X, Y: p.Y + d.Y}
		require.True(t, ctrl.PointerMove(p))
		sum.X += d.X
		sum.Y += d.Y
	}
	ctrl.PointerLeave()

	assert.InDelta(t, p0.X+sum.X, s.X, 1e-9)
	assert.InDelta(t, p0.Y+sum.Y, s.Y, 1e-9)
}

func TestStickerMissDeselects(t *testing.T) {
	c, _ := laidOutSticker(t)
	ctrl := NewController(c)
	ctrl.PointerDown(Point{X: 400, Y: 300})
	require.NotEmpty(t, ctrl.Selected())

	ctrl.PointerDown(Point{X: 5, Y: 5})
	assert.Empty(t, ctrl.Selected())
	assert.ErrorIs(t, ctrl.SetScale(1.5), ErrNoSelection)
}

func TestStickerScaleAndRotation(t *testing.T) {
	c, _ := laidOutSticker(t)
	s := c.Sprites()[0]
	ctrl := NewController(c)
	ctrl.Select(s.ID)

	require.NoError(t, ctrl.SetScale(5))
	assert.Equal(t, 2.0, s.Scale)
	require.NoError(t, ctrl.SetRotation(-45))
	assert.Equal(t, 315.0, s.Rotation)
}

func TestStickerRenderHighlight(t *testing.T) {
	c, b := laidOutSticker(t)
	s := c.Sprites()[0]
	surface := NewSurface()

	require.NoError(t, c.Render(surface, b, RenderOptions{Selected: s.ID}))
	img := surface.Image()
	assert.Equal(t, 800, surface.Width())
	assert.Equal(t, HighlightColor, rgbaAt(img, 301, 300))
	assert.Equal(t, green, rgbaAt(img, 400, 300))
	assert.Equal(t, red, rgbaAt(img, 100, 100))

	require.NoError(t, c.Render(surface, b, RenderOptions{}))
	assert.Equal(t, green, rgbaAt(surface.Image(), 301, 300), "highlight is erased by a full redraw")
}

func TestStickerReset(t *testing.T) {
	c, _ := laidOutSticker(t)
	c.Reset("other")
	assert.Empty(t, c.Sprites())
	assert.Equal(t, []string{"other", "sticker"}, c.Sources())
	w, h := c.CanvasSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestStickerRestore(t *testing.T) {
	c := NewStickerCompositor("base", "sticker")
	c.Restore([]Sprite{
		{X: 10, Y: 20, Scale: 5, Rotation: -90},
		{ID: "keep", Source: "other", X: 1, Y: 2, Width: 50, Height: 40, Scale: 0.5},
	})
	sprites := c.Sprites()
	require.Len(t, sprites, 2)
	assert.Equal(t, "sticker", sprites[0].Source)
	assert.Equal(t, 2.0, sprites[0].Scale)
	assert.Equal(t, 270.0, sprites[0].Rotation)
	assert.Equal(t, float64(DefaultStickerSize), sprites[0].Width)
	assert.Equal(t, "keep", sprites[1].ID)
	assert.Equal(t, box(1, 2, 26, 22), sprites[1].Box())

	empty := NewStickerCompositor("base", "sticker")
	empty.Restore(nil)
	require.NoError(t, empty.Layout(Bitmaps{"base": solid(100, 100, red)}))
	assert.Empty(t, empty.Sprites(), "restored compositors are not seeded")
	assert.Equal(t, []string{"base"}, empty.Sources())
}
