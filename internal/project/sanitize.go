package project

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
)

// transientAppState lists app-state keys that only exist for the live canvas
// (collaborator cursors and the like) and must never be persisted.
var transientAppState = map[string]struct{}{
	"collaborators": {},
}

// Sanitize converts v into plain JSON-compatible data: maps with non-string
// keys become string-keyed objects, and functions, channels, complex numbers
// and unsafe pointers are dropped.
func Sanitize(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case json.Marshaler, encoding.TextMarshaler:
		return v
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	}
	out, ok := sanitizeValue(reflect.ValueOf(v))
	if !ok {
		return nil
	}
	return out
}

func sanitizeValue(rv reflect.Value) (any, bool) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, true
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return nil, false
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
			return rv.Interface(), true
		}
		return sanitizeValue(rv.Elem())
	case reflect.Map:
		if rv.IsNil() {
			return map[string]any{}, true
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			value, ok := sanitizeValue(iter.Value())
			if !ok {
				continue
			}
			out[mapKey(iter.Key())] = value
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface(), true
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			value, ok := sanitizeValue(rv.Index(i))
			if !ok {
				continue
			}
			out = append(out, value)
		}
		return out, true
	default:
		return rv.Interface(), true
	}
}

func mapKey(key reflect.Value) string {
	for key.Kind() == reflect.Interface {
		key = key.Elem()
	}
	if key.Kind() == reflect.String {
		return key.String()
	}
	if tm, ok := key.Interface().(encoding.TextMarshaler); ok {
		if text, err := tm.MarshalText(); err == nil {
			return string(text)
		}
	}
	return fmt.Sprint(key.Interface())
}

// SanitizeWhiteboard returns a write-safe copy of w.
func SanitizeWhiteboard(w *WhiteboardData) *WhiteboardData {
	if w == nil {
		return nil
	}
	out := &WhiteboardData{
		Elements: []any{},
		AppState: map[string]any{},
		Files:    map[string]any{},
	}
	if elements, ok := Sanitize(w.Elements).([]any); ok {
		out.Elements = elements
	}
	if state, ok := Sanitize(w.AppState).(map[string]any); ok {
		for key, value := range state {
			if _, skip := transientAppState[key]; skip {
				continue
			}
			out.AppState[key] = value
		}
	}
	if files, ok := Sanitize(w.Files).(map[string]any); ok {
		out.Files = files
	}
	return out
}

// Encode sanitizes every whiteboard in p and returns its JSON document.
func Encode(p Project) ([]byte, error) {
	clean := p.Clone()
	clean.WhiteboardContent = SanitizeWhiteboard(clean.WhiteboardContent)
	Walk(clean.FileSystemRoots, func(node *FileSystemNode) {
		node.WhiteboardContent = SanitizeWhiteboard(node.WhiteboardContent)
	})
	if clean.FileSystemRoots == nil {
		clean.FileSystemRoots = []FileSystemNode{}
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	return payload, nil
}

func Decode(payload []byte) (Project, error) {
	var p Project
	if err := json.Unmarshal(payload, &p); err != nil {
		return Project{}, fmt.Errorf("decode project: %w", err)
	}
	return p, nil
}
