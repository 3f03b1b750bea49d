package websocket

import (
	"reflect"
)

type ackInvoker func(err error, payload map[string]any)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// extractAck splits a trailing acknowledgement callback off the event args.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts whatever callback shape the transport hands us. Parameters
// of type error receive the error; every other parameter receives the
// payload. A variadic callback gets the payload, or the error when there is one.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}
	typ := value.Type()
	return func(err error, payload map[string]any) {
		if typ.IsVariadic() && typ.NumIn() == 1 {
			var v any = payload
			if err != nil {
				v = err
			}
			value.Call([]reflect.Value{coerce(v, typ.In(0).Elem())})
			return
		}
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			in := typ.In(i)
			if in == errorType {
				args[i] = coerce(err, in)
				continue
			}
			args[i] = coerce(payload, in)
		}
		value.Call(args)
	}
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.Slice && rv.Type().AssignableTo(target.Elem()):
		// socket.io acks take their arguments as a slice.
		out := reflect.MakeSlice(target, 1, 1)
		out.Index(0).Set(rv)
		return out
	}
	return reflect.Zero(target)
}
