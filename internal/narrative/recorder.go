package narrative

import (
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geostory/internal/attrs"
)

// Command is one renderer call, in a form that can be logged or sent over
// the wire.
type Command struct {
	Op      string       `json:"op"`
	Layer   string       `json:"layer,omitempty"`
	Visible bool         `json:"visible,omitempty"`
	Camera  *Camera      `json:"camera,omitempty"`
	Bounds  []float64    `json:"bounds,omitempty"`
	Padding float64      `json:"padding,omitempty"`
	Legend  []LegendItem `json:"legend,omitempty"`
	Title   string       `json:"title,omitempty"`
	Rows    []attrs.Row  `json:"rows,omitempty"`
}

// Renderer operations.
const (
	OpVisibility = "visibility"
	OpCamera     = "camera"
	OpFit        = "fit"
	OpLegend     = "legend"
	OpShowPanel  = "panel.show"
	OpHidePanel  = "panel.hide"
)

func (c Command) String() string {
	switch c.Op {
	case OpVisibility:
		if c.Visible {
			return "show " + c.Layer
		}
		return "hide " + c.Layer
	case OpCamera:
		var parts []string
		if c.Camera.Center != nil {
			parts = append(parts, fmt.Sprintf("center=%v,%v", c.Camera.Center[0], c.Camera.Center[1]))
		}
		if c.Camera.Zoom != nil {
			parts = append(parts, fmt.Sprintf("zoom=%v", *c.Camera.Zoom))
		}
		if c.Camera.Pitch != nil {
			parts = append(parts, fmt.Sprintf("pitch=%v", *c.Camera.Pitch))
		}
		if c.Camera.Bearing != nil {
			parts = append(parts, fmt.Sprintf("bearing=%v", *c.Camera.Bearing))
		}
		return "camera " + strings.Join(parts, " ")
	case OpFit:
		return fmt.Sprintf("fit %v padding=%v", c.Bounds, c.Padding)
	case OpLegend:
		labels := make([]string, len(c.Legend))
		for i, l := range c.Legend {
			labels[i] = l.Label
		}
		return "legend [" + strings.Join(labels, ", ") + "]"
	case OpShowPanel:
		return fmt.Sprintf("panel %q (%d rows)", c.Title, len(c.Rows))
	case OpHidePanel:
		return "panel hidden"
	}
	return c.Op
}

// CommandRenderer turns renderer calls into Commands and hands them to Emit.
type CommandRenderer struct {
	Emit func(Command)
}

func (r CommandRenderer) SetLayerVisibility(layer string, visible bool) {
	r.Emit(Command{Op: OpVisibility, Layer: layer, Visible: visible})
}

func (r CommandRenderer) SetCamera(c Camera) {
	r.Emit(Command{Op: OpCamera, Camera: &c})
}

func (r CommandRenderer) FitBounds(b orb.Bound, padding float64) {
	r.Emit(Command{Op: OpFit, Bounds: []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}, Padding: padding})
}

func (r CommandRenderer) SetLegend(items []LegendItem) {
	r.Emit(Command{Op: OpLegend, Legend: items})
}

func (r CommandRenderer) ShowAttributePanel(title string, rows []attrs.Row) {
	r.Emit(Command{Op: OpShowPanel, Title: title, Rows: rows})
}

func (r CommandRenderer) HideAttributePanel() {
	r.Emit(Command{Op: OpHidePanel})
}

// Recorder keeps every command it receives.
type Recorder struct {
	CommandRenderer
	mu       sync.Mutex
	commands []Command
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	rec := &Recorder{}
	rec.Emit = func(c Command) {
		rec.mu.Lock()
		rec.commands = append(rec.commands, c)
		rec.mu.Unlock()
	}
	return rec
}

// Commands returns what has been recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Reset drops recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}

// Strings returns the recorded commands in String form.
func (r *Recorder) Strings() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
