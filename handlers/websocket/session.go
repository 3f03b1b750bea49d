package websocket

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/handlers/api/composite"
	"photobooth/handlers/api/images"
	"photobooth/handlers/auth"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrNoEditor     = errors.New("no editor is open")
	ErrUnknownEvent = errors.New("unknown editor event")
	ErrUnauthorized = errors.New("a valid token is required to save")
)

type (
	// Frame is what the client renders after a change. Image is empty when
	// only the state changed.
	Frame struct {
		Image string        `json:"image,omitempty"`
		State compose.State `json:"state"`
	}

	OpenRequest struct {
		Mode   compose.Mode `json:"mode"`
		ItemID string       `json:"itemId"`
		Photo  string       `json:"photo"`
	}

	eventArgs struct {
		X             float64 `json:"x"`
		Y             float64 `json:"y"`
		Value         float64 `json:"value"`
		ID            string  `json:"id"`
		PlaceholderID string  `json:"placeholderId"`
		Photo         string  `json:"photo"`
		Token         string  `json:"token"`
	}
)

// Session is the live editor behind one socket. Events for one session are
// applied one at a time.
type Session struct {
	builder *composite.Builder
	assets  core.AssetStore
	photos  core.PhotoStore

	mu     sync.Mutex
	editor *compose.Editor
	open   OpenRequest
}

func NewSession(builder *composite.Builder, assets core.AssetStore, photos core.PhotoStore) *Session {
	return &Session{builder: builder, assets: assets, photos: photos}
}

// Open replaces any current editor with a new one for req.
func (s *Session) Open(ctx context.Context, req OpenRequest) (*Frame, error) {
	snap, err := s.openEditor(ctx, req)
	return snap.encode(), err
}

func (s *Session) openEditor(ctx context.Context, req OpenRequest) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Photo == "" || req.ItemID == "" {
		return nil, fmt.Errorf("photo and itemId are required: %w", core.ErrInvalid)
	}
	comp, err := s.builder.Compositor(ctx, req.Mode, req.ItemID, req.Photo)
	if err != nil {
		return nil, err
	}
	s.editor = compose.NewEditor(comp, s.builder.Loader())
	s.open = req
	err = s.editor.Redraw(ctx)
	return s.capture(true), err
}

// Dispatch applies one editor event. It returns a nil frame when nothing
// changed.
func (s *Session) Dispatch(ctx context.Context, event string, raw any) (*Frame, error) {
	snap, err := s.dispatch(ctx, event, raw)
	return snap.encode(), err
}

func (s *Session) dispatch(ctx context.Context, event string, raw any) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editor == nil {
		return nil, ErrNoEditor
	}
	var args eventArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", event, err)
	}

	e := s.editor
	var err error
	switch event {
	case "pointer-down":
		err = e.PointerDown(ctx, compose.Point{X: args.X, Y: args.Y})
	case "pointer-move":
		if !e.Controller().Dragging() {
			return nil, nil
		}
		err = e.PointerMove(ctx, compose.Point{X: args.X, Y: args.Y})
	case "pointer-up":
		e.PointerUp()
		return s.capture(false), nil
	case "pointer-leave":
		e.PointerLeave()
		return s.capture(false), nil
	case "add-sticker":
		_, err = e.AddSticker(ctx)
	case "delete-sticker":
		err = e.DeleteSticker(ctx, args.ID)
	case "set-scale":
		err = e.SetScale(ctx, args.Value)
	case "set-rotation":
		err = e.SetRotation(ctx, args.Value)
	case "select-size":
		err = e.SelectSize(ctx, args.ID)
	case "recenter":
		err = e.Recenter(ctx)
	case "assign-photo":
		ref, rerr := s.builder.ClientRef(args.Photo)
		if rerr != nil {
			return nil, rerr
		}
		err = e.Assign(ctx, args.PlaceholderID, ref)
	case "unassign-photo":
		err = e.Unassign(ctx, args.PlaceholderID)
	case "retake":
		if args.Photo == "" {
			return nil, fmt.Errorf("retake needs a photo: %w", core.ErrInvalid)
		}
		ref, rerr := s.builder.ClientRef(args.Photo)
		if rerr != nil {
			return nil, rerr
		}
		s.open.Photo = args.Photo
		err = e.Retake(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	return s.capture(true), err
}

// Save exports the composition and hands it to the persistence sink. The
// model is left untouched whether or not saving succeeds.
func (s *Session) Save(ctx context.Context, raw any) (*core.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editor == nil {
		return nil, ErrNoEditor
	}
	var args eventArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	claims, err := auth.ParseJWT(args.Token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	uri, err := s.editor.ExportDataURI(ctx)
	if err != nil {
		return nil, err
	}
	return images.Persist(ctx, s.assets, s.photos, claims.Subject, uri, string(s.open.Mode), s.open.ItemID)
}

// Close discards the editor.
func (s *Session) Close() {
	s.mu.Lock()
	s.editor = nil
	s.mu.Unlock()
}

// snapshot copies what a frame needs while the session is locked. The PNG is
// encoded from the copy after the lock is released.
type snapshot struct {
	state  compose.State
	raster *image.RGBA
}

func (s *Session) capture(withImage bool) *snapshot {
	snap := &snapshot{state: s.editor.State()}
	if withImage && snap.state.Status == compose.StatusReady && snap.state.Width > 0 && snap.state.Height > 0 {
		snap.raster = s.editor.Surface().Image()
	}
	return snap
}

func (snap *snapshot) encode() *Frame {
	if snap == nil {
		return nil
	}
	f := &Frame{State: snap.state}
	if snap.raster != nil {
		if data, err := compose.EncodePNG(snap.raster); err == nil {
			f.Image = compose.EncodeDataURI(compose.PNGMediaType, data)
		}
	}
	return f
}

func decodeArgs(raw any, v any) error {
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("malformed payload: %w", core.ErrInvalid)
	}
	return nil
}

// DecodeOpen reads an open-editor payload.
func DecodeOpen(raw any) (OpenRequest, error) {
	var req OpenRequest
	err := decodeArgs(raw, &req)
	return req, err
}
