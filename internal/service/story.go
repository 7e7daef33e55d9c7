package service

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/geo"
	"github.com/joeblew999/geostory/internal/narrative"
	"github.com/joeblew999/geostory/internal/story"
)

// NewBroadcastRenderer returns a renderer that publishes every command on
// the bus as a story event.
func NewBroadcastRenderer(bus *EventBus) narrative.CommandRenderer {
	return narrative.CommandRenderer{Emit: func(c narrative.Command) {
		bus.Publish(Event{Resource: ResourceStory, Action: c.Op, ID: c.Layer, Data: c})
	}}
}

// ActionEntered is published on the bus once a chapter entry settles.
const ActionEntered = "entered"

// StoryService owns the narrative controller for the served story.
type StoryService struct {
	story    *story.Config
	datasets *DatasetService
	ctrl     *narrative.Controller
	bus      *EventBus

	mu     sync.RWMutex
	legend []narrative.LegendItem
}

// NewStoryService wires a controller to r. Chapter framing reads extents
// from datasets. bus may be nil.
func NewStoryService(cfg *story.Config, datasets *DatasetService, r narrative.Renderer, bus *EventBus, log zerolog.Logger) (*StoryService, error) {
	s := &StoryService{story: cfg, datasets: datasets, bus: bus}

	limit := cfg.Inspection.Limit
	ctrl, err := narrative.New(legendTap{Renderer: r, s: s}, cfg.NarrativeChapters(), cfg.Keys(), narrative.Options{
		Preferences: cfg.Preferences(),
		Selector:    cfg.Selector(),
		RowLimit:    limit,
		Extent: func(key string) geo.Extent {
			return datasets.Extent(key)
		},
		OnEntered: func(name string) {
			if s.bus != nil {
				s.bus.Publish(Event{Resource: ResourceStory, Action: ActionEntered, ID: name})
			}
		},
		Log: log,
	})
	if err != nil {
		return nil, fmt.Errorf("building narrative: %w", err)
	}
	s.ctrl = ctrl
	return s, nil
}

// legendTap remembers the last legend so late subscribers can catch up.
type legendTap struct {
	narrative.Renderer
	s *StoryService
}

func (t legendTap) SetLegend(items []narrative.LegendItem) {
	t.s.mu.Lock()
	t.s.legend = items
	t.s.mu.Unlock()
	t.Renderer.SetLegend(items)
}

// Enter moves the story to the named chapter. ActionEntered is published
// by whichever caller applies the transition, once per chapter reached.
func (s *StoryService) Enter(name string) error {
	return s.ctrl.Enter(name)
}

// Current returns the current chapter name.
func (s *StoryService) Current() string {
	return s.ctrl.Current()
}

// Chapters lists chapters in story order.
func (s *StoryService) Chapters() []ChapterInfo {
	current := s.ctrl.Current()
	out := make([]ChapterInfo, len(s.story.Chapters))
	for i, ch := range s.story.Chapters {
		layers := ch.Layers
		if layers == nil {
			layers = []string{}
		}
		out[i] = ChapterInfo{
			Name:    ch.Name,
			Title:   ch.Title,
			Layers:  layers,
			Fit:     ch.Fit,
			Legend:  ch.Legend,
			Current: ch.Name == current,
		}
	}
	return out
}

// Snapshot returns the current map state.
func (s *StoryService) Snapshot() Snapshot {
	snap := Snapshot{Chapter: s.ctrl.Current(), Camera: s.ctrl.Camera(), Layers: []string{}}
	if ch, ok := s.ctrl.Chapter(snap.Chapter); ok {
		snap.Layers = ch.Layers
	}
	s.mu.RLock()
	snap.Legend = s.legend
	s.mu.RUnlock()
	if snap.Legend == nil {
		snap.Legend = []narrative.LegendItem{}
	}
	return snap
}

// InspectAttributes shows the panel for a raw JSON properties object.
func (s *StoryService) InspectAttributes(key string, raw []byte) (Inspection, error) {
	if _, ok := s.story.Dataset(key); !ok {
		return Inspection{}, fmt.Errorf("%w: %q", ErrUnknownDataset, key)
	}
	a := s.panelAttributes(key, attrs.Parse(raw))
	return Inspection{
		Dataset: key,
		Feature: -1,
		Title:   attrs.Title(a, key),
		Rows:    nonNil(s.ctrl.Inspect(key, a)),
	}, nil
}

// InspectAt shows the panel for the topmost feature of a dataset under a
// position. When nothing is hit the panel is hidden.
func (s *StoryService) InspectAt(key string, p orb.Point, tolerance float64) (Inspection, error) {
	d, err := s.datasets.Get(key)
	if err != nil {
		return Inspection{}, err
	}
	idx, f := d.At(p, tolerance)
	if f == nil {
		s.ctrl.ClearInspection()
		return Inspection{Dataset: key, Feature: -1, Rows: []attrs.Row{}}, nil
	}
	a := s.panelAttributes(key, d.Attributes(idx))
	return Inspection{
		Dataset: key,
		Feature: idx,
		Title:   attrs.Title(a, key),
		Rows:    nonNil(s.ctrl.Inspect(key, a)),
	}, nil
}

// panelAttributes drops the category written by classification; it drives
// symbology and is not a published attribute.
func (s *StoryService) panelAttributes(key string, a attrs.Attributes) attrs.Attributes {
	decl, _ := s.story.Dataset(key)
	if _, ok := s.story.RuleSet(key); !ok {
		return a
	}
	return a.Without(decl.CategoryAttribute())
}

// ClearInspection hides the panel.
func (s *StoryService) ClearInspection() {
	s.ctrl.ClearInspection()
}

func nonNil(rows []attrs.Row) []attrs.Row {
	if rows == nil {
		return []attrs.Row{}
	}
	return rows
}
