// Package narrative maps reading-progress chapters to map state.
//
// A Controller is a finite-state machine with one state per declared chapter
// plus an initial "none entered" state. Entering a chapter emits, in order:
// layer hides, layer shows, the camera directive and the legend. Signals are
// serialized; while a transition is in flight only the newest pending
// signal is kept, so a fast scroll never replays stale chapters.
package narrative

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/geo"
)

// ErrUnknownChapter is returned when a signal names no declared chapter.
var ErrUnknownChapter = errors.New("unknown chapter")

// ErrRenderFailed is returned when the renderer panics mid-transition.
var ErrRenderFailed = errors.New("render failed")

// Camera is a camera directive. Nil fields leave the current value alone.
type Camera struct {
	Center  *orb.Point `json:"center,omitempty" yaml:"center,omitempty"`
	Zoom    *float64   `json:"zoom,omitempty" yaml:"zoom,omitempty"`
	Pitch   *float64   `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Bearing *float64   `json:"bearing,omitempty" yaml:"bearing,omitempty"`
}

// IsZero reports whether the directive changes nothing.
func (c Camera) IsZero() bool {
	return c.Center == nil && c.Zoom == nil && c.Pitch == nil && c.Bearing == nil
}

// Apply returns c's fields laid over prev.
func (c Camera) Apply(prev Camera) Camera {
	out := prev
	if c.Center != nil {
		out.Center = c.Center
	}
	if c.Zoom != nil {
		out.Zoom = c.Zoom
	}
	if c.Pitch != nil {
		out.Pitch = c.Pitch
	}
	if c.Bearing != nil {
		out.Bearing = c.Bearing
	}
	return out
}

// LegendItem is one legend row.
type LegendItem struct {
	Label  string `json:"label" yaml:"label"`
	Swatch string `json:"swatch" yaml:"swatch"`
}

// Chapter is the declarative payload of one narrative state.
type Chapter struct {
	Name   string
	Layers []string
	Camera Camera
	Legend []LegendItem
	// Fit names datasets whose merged extent frames the camera after the
	// directive is applied.
	Fit []string
}

// Renderer is the map and widget surface the controller drives.
type Renderer interface {
	SetLayerVisibility(layer string, visible bool)
	SetCamera(c Camera)
	FitBounds(b orb.Bound, padding float64)
	SetLegend(items []LegendItem)
	ShowAttributePanel(title string, rows []attrs.Row)
	HideAttributePanel()
}

// Options tune inspection and framing.
type Options struct {
	// Preferences lists attribute names to surface first, per layer.
	Preferences map[string][]string
	Selector    attrs.Selector
	// RowLimit caps inspection rows. Defaults to 10.
	RowLimit int
	// FitPadding is passed to FitBounds. Defaults to 50.
	FitPadding float64
	// Extent resolves a dataset key to its extent for chapter framing.
	Extent func(key string) geo.Extent
	// OnEntered is called after each chapter transition completes, from the
	// goroutine that applied it, without the controller lock held.
	OnEntered func(name string)
	Log       zerolog.Logger
}

// Controller is the chapter state machine.
type Controller struct {
	r        Renderer
	opts     Options
	chapters map[string]Chapter
	layers   []string

	mu         sync.Mutex
	current    string
	camera     Camera
	visible    map[string]bool
	pending    string
	hasPending bool
	running    bool
}

// New creates a controller over the given chapters. Every layer named by
// any chapter, plus extra, is managed by the controller.
func New(r Renderer, chapters []Chapter, extra []string, opts Options) (*Controller, error) {
	if opts.RowLimit <= 0 {
		opts.RowLimit = 10
	}
	if opts.FitPadding <= 0 {
		opts.FitPadding = 50
	}

	c := &Controller{
		r:        r,
		opts:     opts,
		chapters: make(map[string]Chapter, len(chapters)),
		visible:  make(map[string]bool),
	}

	known := make(map[string]bool)
	for _, ch := range chapters {
		if ch.Name == "" {
			return nil, fmt.Errorf("chapter without a name")
		}
		if _, dup := c.chapters[ch.Name]; dup {
			return nil, fmt.Errorf("duplicate chapter %q", ch.Name)
		}
		c.chapters[ch.Name] = ch
		for _, l := range ch.Layers {
			known[l] = true
		}
	}
	for _, l := range extra {
		known[l] = true
	}
	for l := range known {
		c.layers = append(c.layers, l)
	}
	sort.Strings(c.layers)
	return c, nil
}

// Current returns the current chapter, or "" before the first entry.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Camera returns the accumulated camera state.
func (c *Controller) Camera() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// Chapter looks up a chapter by name.
func (c *Controller) Chapter(name string) (Chapter, bool) {
	ch, ok := c.chapters[name]
	return ch, ok
}

// Enter handles a chapter-entry signal.
//
// If another goroutine is mid-transition, the signal replaces any pending
// one and Enter returns at once; the in-flight caller applies the newest
// pending chapter when it finishes. Entering the current chapter is a no-op.
//
// Visibility commands are sent only for layers whose state changes. The
// first entry sends one for every managed layer.
//
// A renderer panic aborts that transition and is reported as
// ErrRenderFailed. The current chapter is left unchanged and the next entry
// resends every layer's visibility.
func (c *Controller) Enter(name string) error {
	if _, ok := c.chapters[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChapter, name)
	}

	c.mu.Lock()
	c.pending, c.hasPending = name, true
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true

	var failed error
	for c.hasPending {
		target := c.pending
		c.hasPending = false
		if target == c.current {
			continue
		}
		prev, camera := c.current, c.camera
		plan := c.plan(c.chapters[target])
		c.mu.Unlock()

		c.opts.Log.Debug().Str("from", prev).Str("to", target).Msg("Entering chapter")
		if err := c.apply(plan); err != nil {
			c.opts.Log.Error().Err(err).Str("from", prev).Str("to", target).Msg("Chapter transition failed")
			failed = err
			c.mu.Lock()
			c.camera = camera
			c.visible = make(map[string]bool)
			continue
		}

		c.mu.Lock()
		c.current = target
		if c.opts.OnEntered != nil {
			c.mu.Unlock()
			c.entered(target)
			c.mu.Lock()
		}
	}
	c.running = false
	c.mu.Unlock()
	return failed
}

func (c *Controller) entered(name string) {
	defer func() {
		if p := recover(); p != nil {
			c.opts.Log.Error().Interface("panic", p).Str("chapter", name).Msg("Entered callback panicked")
		}
	}()
	c.opts.OnEntered(name)
}

// transition is everything a chapter entry emits, computed under the lock.
type transition struct {
	hide   []string
	show   []string
	camera Camera
	move   bool
	fit    geo.Extent
	legend []LegendItem
}

// plan diffs the target chapter against emitted state and records the new
// state. Must be called with c.mu held.
func (c *Controller) plan(ch Chapter) transition {
	want := make(map[string]bool, len(ch.Layers))
	for _, l := range ch.Layers {
		want[l] = true
	}

	var t transition
	for _, l := range c.layers {
		if want[l] {
			continue
		}
		if shown, known := c.visible[l]; !known || shown {
			t.hide = append(t.hide, l)
		}
		c.visible[l] = false
	}
	for _, l := range ch.Layers {
		if !c.visible[l] {
			t.show = append(t.show, l)
		}
		c.visible[l] = true
	}

	if !ch.Camera.IsZero() {
		c.camera = ch.Camera.Apply(c.camera)
		t.camera = ch.Camera
		t.move = true
	}
	if len(ch.Fit) > 0 && c.opts.Extent != nil {
		for _, key := range ch.Fit {
			t.fit = geo.Merge(t.fit, c.opts.Extent(key))
		}
	}
	t.legend = append([]LegendItem(nil), ch.Legend...)
	return t
}

func (c *Controller) apply(t transition) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRenderFailed, p)
		}
	}()

	for _, l := range t.hide {
		c.r.SetLayerVisibility(l, false)
	}
	for _, l := range t.show {
		c.r.SetLayerVisibility(l, true)
	}
	if t.move {
		c.r.SetCamera(t.camera)
	}
	if b, ok := t.fit.Bound(); ok {
		c.r.FitBounds(b, c.opts.FitPadding)
	}
	c.r.SetLegend(t.legend)
	return nil
}

// Frame fits the camera to e. An absent extent leaves the camera where it is.
func (c *Controller) Frame(e geo.Extent) {
	if b, ok := e.Bound(); ok {
		c.r.FitBounds(b, c.opts.FitPadding)
	}
}

// Inspect shows the attribute panel for a feature of layer.
func (c *Controller) Inspect(layer string, a attrs.Attributes) []attrs.Row {
	rows := c.opts.Selector.Select(a, c.opts.Preferences[layer], c.opts.RowLimit)
	c.r.ShowAttributePanel(attrs.Title(a, layer), rows)
	return rows
}

// ClearInspection hides the attribute panel.
func (c *Controller) ClearInspection() {
	c.r.HideAttributePanel()
}
