package compose

// Controller turns pointer events into selection and drag updates.
// Each sprite moves idle -> dragging on a pointer-down inside its box and
// back to idle on pointer-up or pointer-leave.
type Controller struct {
	comp Compositor

	selected string
	dragging bool
	last     Point
}

func NewController(comp Compositor) *Controller {
	return &Controller{comp: comp}
}

func (c *Controller) Selected() string { return c.selected }
func (c *Controller) Dragging() bool   { return c.dragging }

// Select marks id as selected without starting a drag.
func (c *Controller) Select(id string) {
	c.selected = id
	c.dragging = false
}

func (c *Controller) Deselect() {
	c.selected = ""
	c.dragging = false
}

// Reset drops selection and drag state.
func (c *Controller) Reset() {
	c.Deselect()
	c.last = Point{}
}

// PointerDown selects the topmost element under p and starts dragging it.
// A miss clears the selection unless the controls are sticky.
func (c *Controller) PointerDown(p Point) {
	id, ok := c.comp.HitTest(p)
	if !ok {
		c.dragging = false
		if !c.comp.Controls().Sticky {
			c.selected = ""
		}
		return
	}
	c.selected = id
	_, movable := c.comp.Sprite(id)
	c.dragging = movable
	c.last = p
}

// PointerMove applies the delta since the previous event to the dragged
// sprite and reports whether anything moved.
func (c *Controller) PointerMove(p Point) bool {
	if !c.dragging {
		return false
	}
	s, ok := c.comp.Sprite(c.selected)
	if !ok {
		c.dragging = false
		return false
	}
	s.MoveBy(p.X-c.last.X, p.Y-c.last.Y)
	c.last = p
	return true
}

func (c *Controller) PointerUp()    { c.dragging = false }
func (c *Controller) PointerLeave() { c.dragging = false }

// SetScale changes the selected sprite's scale within the configured range.
func (c *Controller) SetScale(v float64) error {
	s, err := c.selectedSprite()
	if err != nil {
		return err
	}
	s.SetScale(v, c.comp.Controls().Scale)
	return nil
}

// SetRotation changes the selected sprite's rotation. It is a no-op in modes
// without a rotation control.
func (c *Controller) SetRotation(deg float64) error {
	s, err := c.selectedSprite()
	if err != nil {
		return err
	}
	if c.comp.Controls().Rotate {
		s.SetRotation(deg)
	}
	return nil
}

func (c *Controller) selectedSprite() (*Sprite, error) {
	if c.selected == "" {
		return nil, ErrNoSelection
	}
	s, ok := c.comp.Sprite(c.selected)
	if !ok {
		return nil, ErrNoSelection
	}
	return s, nil
}
