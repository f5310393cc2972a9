package project

import (
	"bytes"
	"encoding/json"
)

// WhiteboardData is the drawing scene. The engine treats it as opaque apart
// from default construction and SameScene.
type WhiteboardData struct {
	Elements []any          `json:"elements"`
	AppState map[string]any `json:"appState"`
	Files    map[string]any `json:"files"`
}

// viewFields are the app-state keys that count as a visible scene change.
var viewFields = []string{"viewBackgroundColor", "zoom", "scrollX", "scrollY"}

func DefaultWhiteboard() *WhiteboardData {
	return &WhiteboardData{
		Elements: []any{},
		AppState: map[string]any{"viewBackgroundColor": "#ffffff"},
		Files:    map[string]any{},
	}
}

// SameScene reports whether b would render the same as a: equal elements and
// equal background, zoom and scroll position. Other app-state keys (selection,
// open menus, ...) and files are ignored so they do not trigger a save.
func SameScene(a, b *WhiteboardData) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !jsonEqual(a.Elements, b.Elements) {
		return false
	}
	for _, key := range viewFields {
		if !jsonEqual(a.AppState[key], b.AppState[key]) {
			return false
		}
	}
	return true
}

// jsonEqual compares through the wire encoding so that values decoded from
// JSON (float64, map[string]any) compare equal to freshly built ones.
func jsonEqual(a, b any) bool {
	left, err := json.Marshal(Sanitize(a))
	if err != nil {
		return false
	}
	right, err := json.Marshal(Sanitize(b))
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}
