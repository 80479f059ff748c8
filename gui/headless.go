package gui

import (
	"sync"
)

type widgetKey struct {
	window string
	id     string
}

type widgetState struct {
	text    string
	number  float32
	checked bool
	clicks  int
}

// Headless keeps widget state in memory without drawing anything. Front
// ends read the windows shown this frame through Frame and inject
// interaction through Click, Toggle, SetText and SetSlider.
type Headless struct {
	state map[widgetKey]*widgetState
	shown []Window
	mu    sync.Mutex
}

func NewHeadless() *Headless {
	return &Headless{state: make(map[widgetKey]*widgetState)}
}

// Show records w for this frame and returns the current widget state. A
// pending click is reported once.
func (h *Headless) Show(w Window) Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shown = append(h.shown, w)
	r := Response{Values: make([]Value, len(w.Widgets))}
	for i, wd := range w.Widgets {
		st := h.widget(w.Title, wd)
		v := Value{Kind: wd.Kind}
		switch wd.Kind {
		case Button:
			if st.clicks > 0 {
				st.clicks--
				v.Clicked = true
			}
		case Checkbox:
			v.Checked = st.checked
		case TextInput:
			v.Text = st.text
		case Slider:
			v.Number = st.number
		}
		r.Values[i] = v
	}
	return r
}

// BeginFrame forgets the windows shown last frame.
func (h *Headless) BeginFrame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown = h.shown[:0]
}

// Frame returns the windows shown since the last BeginFrame.
func (h *Headless) Frame() []Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Window(nil), h.shown...)
}

// Click queues a click on a button.
func (h *Headless) Click(window, id string) {
	h.mutate(window, id, func(st *widgetState) { st.clicks++ })
}

// Toggle flips a checkbox.
func (h *Headless) Toggle(window, id string) {
	h.mutate(window, id, func(st *widgetState) { st.checked = !st.checked })
}

// SetText replaces a text input's contents.
func (h *Headless) SetText(window, id, text string) {
	h.mutate(window, id, func(st *widgetState) { st.text = text })
}

// SetSlider moves a slider.
func (h *Headless) SetSlider(window, id string, v float32) {
	h.mutate(window, id, func(st *widgetState) { st.number = v })
}

func (h *Headless) mutate(window, id string, fn func(*widgetState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := widgetKey{window: window, id: id}
	st, ok := h.state[k]
	if !ok {
		st = &widgetState{}
		h.state[k] = st
	}
	fn(st)
}

// widget returns the state for wd, seeding it from the declared defaults
// the first time the id is shown. State created by an interaction before
// the first show keeps the interaction.
func (h *Headless) widget(window string, wd Widget) *widgetState {
	k := widgetKey{window: window, id: wd.ID}
	if st, ok := h.state[k]; ok {
		return st
	}
	st := &widgetState{text: wd.DefaultText, checked: wd.Checked, number: clamp(wd.Default, wd.Min, wd.Max)}
	h.state[k] = st
	return st
}

func clamp(v, lo, hi float32) float32 {
	if hi < lo {
		return v
	}
	return min(max(v, lo), hi)
}
