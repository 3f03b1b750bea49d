package websocket

import (
	"context"
	"errors"

	"photobooth/core"
	"photobooth/handlers/api/composite"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// editorEvents are forwarded to Session.Dispatch.
var editorEvents = []string{
	"pointer-down",
	"pointer-move",
	"pointer-up",
	"pointer-leave",
	"add-sticker",
	"delete-sticker",
	"set-scale",
	"set-rotation",
	"select-size",
	"recenter",
	"assign-photo",
	"unassign-photo",
	"retake",
}

// SetupSocketIO serves the live editor. Every socket owns one Session; it
// is discarded on disconnect.
func SetupSocketIO(builder *composite.Builder, assets core.AssetStore, photos core.PhotoStore) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	// Captured photos travel as data URIs.
	opts.SetMaxHttpBufferSize(64 << 20)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()
		session := NewSession(builder, assets, photos)
		ctx, cancel := context.WithCancel(context.Background())
		logrus.WithField("socket", me).Debug("Editor socket connected")

		socket.On("open-editor", func(datas ...any) {
			ack, args := extractAck(datas)
			req, err := DecodeOpen(first(args))
			var frame *Frame
			if err == nil {
				frame, err = session.Open(ctx, req)
			}
			reply(socket, ack, "open-editor", frame, err)
		})

		for _, event := range editorEvents {
			socket.On(event, func(datas ...any) {
				ack, args := extractAck(datas)
				frame, err := session.Dispatch(ctx, event, first(args))
				reply(socket, ack, event, frame, err)
			})
		}

		socket.On("save", func(datas ...any) {
			ack, args := extractAck(datas)
			photo, err := session.Save(ctx, first(args))
			if err != nil {
				logrus.WithFields(logrus.Fields{"socket": me, "error": err}).Warn("Failed to save composition")
				payload := map[string]any{"error": err.Error()}
				if ack != nil {
					ack(err, payload)
				}
				_ = socket.Emit("save-error", payload)
				return
			}
			payload := map[string]any{"photo": photo}
			if ack != nil {
				ack(nil, payload)
			}
			_ = socket.Emit("saved", payload)
		})

		socket.On("disconnect", func(datas ...any) {
			cancel()
			session.Close()
			socket.RemoveAllListeners("")
			logrus.WithField("socket", me).Debug("Editor socket disconnected")
		})
	})

	return srv
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// reply emits the new frame, if any, and reports failures to the caller.
func reply(socket *socketio.Socket, ack ackInvoker, event string, frame *Frame, err error) {
	payload := map[string]any{"event": event}
	if frame != nil {
		payload["state"] = frame.State
		_ = socket.Emit("editor-frame", frame)
	}
	if err != nil {
		payload["error"] = err.Error()
		level := logrus.WarnLevel
		if errors.Is(err, core.ErrInvalid) || errors.Is(err, ErrNoEditor) || errors.Is(err, ErrUnknownEvent) {
			level = logrus.DebugLevel
		}
		logrus.WithFields(logrus.Fields{"socket": socket.Id(), "event": event, "error": err}).Log(level, "Editor event failed")
		_ = socket.Emit("editor-error", payload)
	}
	if ack != nil {
		ack(err, payload)
	}
}
