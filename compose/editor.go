package compose

import (
	"context"
	"errors"
	"fmt"
)

// Status is the editor's rendering state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// focuser is implemented by compositors that select an element after their
// first layout.
type focuser interface {
	Focus() string
}

// State is a serialisable snapshot of an editor.
type State struct {
	Mode         Mode              `json:"mode"`
	Status       Status            `json:"status"`
	Error        string            `json:"error,omitempty"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Selected     string            `json:"selected,omitempty"`
	Dragging     bool              `json:"dragging"`
	Controls     Controls          `json:"controls"`
	CanExport    bool              `json:"canExport"`
	Reason       string            `json:"reason,omitempty"`
	Sprites      []Sprite          `json:"sprites,omitempty"`
	Placeholders []Placeholder     `json:"placeholders,omitempty"`
	Assigned     map[string]string `json:"assigned,omitempty"`
	Sizes        []Size            `json:"sizes,omitempty"`
	SelectedSize string            `json:"selectedSize,omitempty"`
}

// Editor owns one compositor, its selection controller and the surface it
// renders into. Every state change triggers a full redraw, gated on all
// required bitmaps being loaded. An Editor is not safe for concurrent use.
type Editor struct {
	comp    Compositor
	ctrl    *Controller
	loader  *Loader
	surface *Surface

	status  Status
	err     error
	laidOut bool
}

func NewEditor(comp Compositor, loader *Loader) *Editor {
	return &Editor{
		comp:    comp,
		ctrl:    NewController(comp),
		loader:  loader,
		surface: NewSurface(),
		status:  StatusProcessing,
	}
}

func (e *Editor) Compositor() Compositor  { return e.comp }
func (e *Editor) Controller() *Controller { return e.ctrl }
func (e *Editor) Surface() *Surface       { return e.surface }

// Status returns the current state and, when failed, the load error.
func (e *Editor) Status() (Status, error) { return e.status, e.err }

// Redraw loads every required bitmap and repaints the surface from scratch,
// selection highlight included.
func (e *Editor) Redraw(ctx context.Context) error {
	b, err := e.prepare(ctx)
	if err != nil {
		return err
	}
	if err := e.comp.Render(e.surface, b, RenderOptions{Selected: e.ctrl.Selected()}); err != nil {
		return e.fail(err)
	}
	e.status = StatusReady
	e.err = nil
	return nil
}

func (e *Editor) prepare(ctx context.Context) (Bitmaps, error) {
	e.status = StatusProcessing
	b, err := e.loader.LoadAll(ctx, e.comp.Sources()...)
	if err != nil {
		return nil, e.fail(err)
	}
	if err := e.comp.Layout(b); err != nil {
		return nil, e.fail(err)
	}
	if !e.laidOut {
		e.laidOut = true
		if f, ok := e.comp.(focuser); ok {
			if id := f.Focus(); id != "" {
				e.ctrl.Select(id)
			}
		}
	}
	return b, nil
}

func (e *Editor) fail(err error) error {
	e.status = StatusFailed
	e.err = err
	return err
}

func (e *Editor) PointerDown(ctx context.Context, p Point) error {
	e.ctrl.PointerDown(p)
	return e.Redraw(ctx)
}

func (e *Editor) PointerMove(ctx context.Context, p Point) error {
	if !e.ctrl.PointerMove(p) {
		return nil
	}
	return e.Redraw(ctx)
}

func (e *Editor) PointerUp()    { e.ctrl.PointerUp() }
func (e *Editor) PointerLeave() { e.ctrl.PointerLeave() }

// SetScale is a no-op when nothing is selected.
func (e *Editor) SetScale(ctx context.Context, v float64) error {
	if err := e.ctrl.SetScale(v); err != nil {
		if errors.Is(err, ErrNoSelection) {
			return nil
		}
		return err
	}
	return e.Redraw(ctx)
}

// SetRotation is a no-op when nothing is selected.
func (e *Editor) SetRotation(ctx context.Context, deg float64) error {
	if err := e.ctrl.SetRotation(deg); err != nil {
		if errors.Is(err, ErrNoSelection) {
			return nil
		}
		return err
	}
	return e.Redraw(ctx)
}

// AddSticker places a new sticker at the canvas center and selects it.
func (e *Editor) AddSticker(ctx context.Context) (*Sprite, error) {
	c, ok := e.comp.(*StickerCompositor)
	if !ok {
		return nil, fmt.Errorf("%w: add sticker in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	s := c.Add()
	e.ctrl.Select(s.ID)
	return s, e.Redraw(ctx)
}

// DeleteSticker removes a sticker, clearing the selection if it was selected.
// An empty id deletes the selected sticker.
func (e *Editor) DeleteSticker(ctx context.Context, id string) error {
	c, ok := e.comp.(*StickerCompositor)
	if !ok {
		return fmt.Errorf("%w: delete sticker in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	if id == "" {
		id = e.ctrl.Selected()
	}
	if id == "" {
		return ErrNoSelection
	}
	if err := c.Delete(id); err != nil {
		return err
	}
	if e.ctrl.Selected() == id {
		e.ctrl.Deselect()
	}
	return e.Redraw(ctx)
}

func (e *Editor) Assign(ctx context.Context, placeholderID, photo string) error {
	c, ok := e.comp.(*FrameCompositor)
	if !ok {
		return fmt.Errorf("%w: assign photo in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	if err := c.Assign(placeholderID, photo); err != nil {
		return err
	}
	e.ctrl.Deselect()
	return e.Redraw(ctx)
}

func (e *Editor) Unassign(ctx context.Context, placeholderID string) error {
	c, ok := e.comp.(*FrameCompositor)
	if !ok {
		return fmt.Errorf("%w: unassign photo in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	if err := c.Unassign(placeholderID); err != nil {
		return err
	}
	return e.Redraw(ctx)
}

func (e *Editor) SelectSize(ctx context.Context, id string) error {
	c, ok := e.comp.(*FormalCompositor)
	if !ok {
		return fmt.Errorf("%w: select size in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	if err := c.SelectSize(id); err != nil {
		return err
	}
	return e.Redraw(ctx)
}

func (e *Editor) Recenter(ctx context.Context) error {
	c, ok := e.comp.(*FormalCompositor)
	if !ok {
		return fmt.Errorf("%w: recenter in %s mode", ErrUnknownMode, e.comp.Mode())
	}
	c.Recenter()
	return e.Redraw(ctx)
}

// Retake discards the whole model and starts again from a new base photo.
// Bitmaps the new model no longer references are dropped from the cache.
func (e *Editor) Retake(ctx context.Context, photo string) error {
	old := e.comp.Sources()
	e.comp.Reset(photo)
	keep := make(map[string]bool)
	for _, ref := range e.comp.Sources() {
		keep[ref] = true
	}
	for _, ref := range old {
		if !keep[ref] {
			e.loader.Forget(ref)
		}
	}
	e.ctrl.Reset()
	e.laidOut = false
	return e.Redraw(ctx)
}

// Export renders the composition without selection feedback and encodes it
// as PNG. It fails with the compositor's CanExport error when the
// composition may not be saved yet.
func (e *Editor) Export(ctx context.Context) ([]byte, error) {
	if err := e.comp.CanExport(); err != nil {
		return nil, err
	}
	b, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}
	out := NewSurface()
	if err := e.comp.Render(out, b, RenderOptions{}); err != nil {
		return nil, e.fail(err)
	}
	e.status = StatusReady
	return out.Export()
}

func (e *Editor) ExportDataURI(ctx context.Context) (string, error) {
	data, err := e.Export(ctx)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(PNGMediaType, data), nil
}

// State snapshots the editor for clients.
func (e *Editor) State() State {
	st := State{
		Mode:     e.comp.Mode(),
		Status:   e.status,
		Width:    e.surface.Width(),
		Height:   e.surface.Height(),
		Selected: e.ctrl.Selected(),
		Dragging: e.ctrl.Dragging(),
		Controls: e.comp.Controls(),
	}
	if e.err != nil {
		st.Error = e.err.Error()
	}
	if err := e.comp.CanExport(); err != nil {
		st.Reason = err.Error()
	} else {
		st.CanExport = e.status == StatusReady
	}

	switch c := e.comp.(type) {
	case *FrameCompositor:
		st.Placeholders = c.Placeholders()
		st.Assigned = c.Assigned()
	case *StickerCompositor:
		for _, s := range c.Sprites() {
			st.Sprites = append(st.Sprites, *s)
		}
	case *FormalCompositor:
		st.Sprites = []Sprite{*c.Photo()}
		st.Sizes = c.Sizes()
		if size, ok := c.SelectedSize(); ok {
			st.SelectedSize = size.ID
		}
	}
	return st
}
