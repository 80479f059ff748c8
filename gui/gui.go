// Package gui describes immediate-mode windows declared by mods and the
// backend that displays them.
//
// A mod calls gui.window once per frame with a window record and gets back
// a response record carrying the current state of each widget.
package gui

import (
	"fmt"

	"github.com/wippyai/mod-runtime/abi"
	"github.com/wippyai/mod-runtime/errors"
)

// WidgetKind tags a widget record.
type WidgetKind uint8

const (
	Label WidgetKind = iota
	Button
	Checkbox
	TextInput
	Slider
)

func (k WidgetKind) String() string {
	switch k {
	case Label:
		return "label"
	case Button:
		return "button"
	case Checkbox:
		return "checkbox"
	case TextInput:
		return "text"
	case Slider:
		return "slider"
	}
	return fmt.Sprintf("widget(%d)", uint8(k))
}

// Widget is one declared widget. Default fields seed the state the first
// time a widget id is seen.
type Widget struct {
	ID          string
	Label       string
	DefaultText string
	Min, Max    float32
	Default     float32
	Checked     bool
	Kind        WidgetKind
}

// Window is one declared window.
type Window struct {
	Title   string
	Widgets []Widget
	X, Y    float32
}

// Value is the state of one widget after interaction.
type Value struct {
	Text    string
	Number  float32
	Clicked bool
	Checked bool
	Kind    WidgetKind
}

// Response carries one Value per declared widget, in declaration order.
type Response struct {
	Values []Value
}

// Backend displays windows and reports interaction.
type Backend interface {
	Show(w Window) Response
}

// minWidgetSize is the smallest encoded widget: kind plus two empty
// strings.
const minWidgetSize = 1 + 4 + 4

// DecodeWindow parses a window record.
func DecodeWindow(b []byte) (Window, error) {
	d := abi.NewDecoder(b)
	w := Window{Title: d.String(), X: d.F32(), Y: d.F32()}
	n := d.Count(minWidgetSize)
	if n > 0 {
		w.Widgets = make([]Widget, 0, n)
	}
	for i := 0; i < n && d.Err() == nil; i++ {
		wd := Widget{Kind: WidgetKind(d.U8()), ID: d.String(), Label: d.String()}
		switch wd.Kind {
		case Label, Button:
		case Checkbox:
			wd.Checked = d.Bool()
		case TextInput:
			wd.DefaultText = d.String()
		case Slider:
			wd.Min = d.F32()
			wd.Max = d.F32()
			wd.Default = d.F32()
		default:
			d.Fail(errors.InvalidRecord("unknown widget kind %d", uint8(wd.Kind)))
		}
		w.Widgets = append(w.Widgets, wd)
	}
	if err := d.Finish(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// EncodeWindow builds a window record. Guests build the same bytes; the
// host uses it in tests and tools.
func EncodeWindow(w Window) []byte {
	e := abi.NewEncoder(64)
	e.String(w.Title)
	e.F32(w.X)
	e.F32(w.Y)
	e.U32(uint32(len(w.Widgets)))
	for _, wd := range w.Widgets {
		e.U8(uint8(wd.Kind))
		e.String(wd.ID)
		e.String(wd.Label)
		switch wd.Kind {
		case Checkbox:
			e.Bool(wd.Checked)
		case TextInput:
			e.String(wd.DefaultText)
		case Slider:
			e.F32(wd.Min)
			e.F32(wd.Max)
			e.F32(wd.Default)
		}
	}
	return e.Bytes()
}

// EncodeResponse builds a response record.
func EncodeResponse(r Response) []byte {
	e := abi.NewEncoder(4 + 8*len(r.Values))
	e.U32(uint32(len(r.Values)))
	for _, v := range r.Values {
		e.U8(uint8(v.Kind))
		switch v.Kind {
		case Button:
			e.Bool(v.Clicked)
		case Checkbox:
			e.Bool(v.Checked)
		case TextInput:
			e.String(v.Text)
		case Slider:
			e.F32(v.Number)
		}
	}
	return e.Bytes()
}

// DecodeResponse parses a response record.
func DecodeResponse(b []byte) (Response, error) {
	d := abi.NewDecoder(b)
	n := d.Count(1)
	r := Response{Values: make([]Value, 0, n)}
	for i := 0; i < n && d.Err() == nil; i++ {
		v := Value{Kind: WidgetKind(d.U8())}
		switch v.Kind {
		case Label:
		case Button:
			v.Clicked = d.Bool()
		case Checkbox:
			v.Checked = d.Bool()
		case TextInput:
			v.Text = d.String()
		case Slider:
			v.Number = d.F32()
		default:
			d.Fail(errors.InvalidRecord("unknown widget kind %d", uint8(v.Kind)))
		}
		r.Values = append(r.Values, v)
	}
	if err := d.Finish(); err != nil {
		return Response{}, err
	}
	return r, nil
}
