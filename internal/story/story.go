// Package story loads the declarative story file: datasets with their
// candidate locations, attribute preferences and rule tables, and the
// chapters that drive the map.
package story

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/classify"
	"github.com/joeblew999/geostory/internal/narrative"
	"github.com/joeblew999/geostory/internal/source"
)

//go:embed default.yaml
var defaultStory []byte

// DefaultCategoryAttr is the property that receives a feature's category.
const DefaultCategoryAttr = "category"

// Config is the root of a story file.
type Config struct {
	Title string `yaml:"title" json:"title"`
	// DataDir is where relative candidate paths are read from. A relative
	// DataDir is taken relative to the story file.
	DataDir    string     `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	Basemap    Basemap    `yaml:"basemap" json:"basemap"`
	Inspection Inspection `yaml:"inspection" json:"inspection"`
	Datasets   []Dataset  `yaml:"datasets" json:"datasets"`
	Chapters   []Chapter  `yaml:"chapters" json:"chapters"`

	rules map[string]classify.RuleSet
}

// Basemap is the raster imagery under every chapter.
type Basemap struct {
	Tiles       string `yaml:"tiles" json:"tiles"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
}

// Inspection tunes the attribute panel.
type Inspection struct {
	Limit int      `yaml:"limit,omitempty" json:"limit,omitempty"`
	Deny  []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// Dataset declares one named feature collection.
type Dataset struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	// Candidates are tried in order; the first valid collection wins.
	Candidates   []string              `yaml:"candidates" json:"candidates"`
	Hover        []string              `yaml:"hover,omitempty" json:"hover,omitempty"`
	Classify     *classify.RuleSetSpec `yaml:"classify,omitempty" json:"classify,omitempty"`
	CategoryAttr string                `yaml:"category_attr,omitempty" json:"category_attr,omitempty"`
	Symbol       *classify.Symbol      `yaml:"symbol,omitempty" json:"symbol,omitempty"`
}

// SymbolFor returns the dataset's symbol, or the stock one for k.
func (d Dataset) SymbolFor(k classify.Kind) classify.Symbol {
	if d.Symbol != nil {
		s := *d.Symbol
		if s.Kind == "" {
			s.Kind = k
		}
		return s
	}
	return classify.DefaultSymbol(k)
}

// Camera is the file form of a camera directive.
type Camera struct {
	Center  []float64 `yaml:"center,omitempty" json:"center,omitempty"`
	Zoom    *float64  `yaml:"zoom,omitempty" json:"zoom,omitempty"`
	Pitch   *float64  `yaml:"pitch,omitempty" json:"pitch,omitempty"`
	Bearing *float64  `yaml:"bearing,omitempty" json:"bearing,omitempty"`
}

// Directive converts c to a narrative camera directive.
func (c Camera) Directive() narrative.Camera {
	d := narrative.Camera{Zoom: c.Zoom, Pitch: c.Pitch, Bearing: c.Bearing}
	if len(c.Center) == 2 {
		d.Center = &orb.Point{c.Center[0], c.Center[1]}
	}
	return d
}

// Chapter is the file form of a narrative chapter.
type Chapter struct {
	Name   string                 `yaml:"name" json:"name"`
	Title  string                 `yaml:"title,omitempty" json:"title,omitempty"`
	Layers []string               `yaml:"layers" json:"layers"`
	Camera Camera                 `yaml:"camera,omitempty" json:"camera,omitempty"`
	Fit    []string               `yaml:"fit,omitempty" json:"fit,omitempty"`
	Legend []narrative.LegendItem `yaml:"legend,omitempty" json:"legend,omitempty"`
}

// Load reads a story file. An empty path loads the built-in story.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return cfg, nil
}

// Default returns the built-in story.
func Default() (*Config, error) {
	return Parse(defaultStory)
}

// Parse decodes and validates a story document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing story: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross references and compiles rule tables. All problems
// are reported together.
func (c *Config) Validate() error {
	var errs []error
	datasets := make(map[string]bool, len(c.Datasets))
	c.rules = make(map[string]classify.RuleSet)

	for i, d := range c.Datasets {
		switch {
		case d.Key == "":
			errs = append(errs, fmt.Errorf("dataset %d: key is required", i))
			continue
		case datasets[d.Key]:
			errs = append(errs, fmt.Errorf("dataset %q: declared twice", d.Key))
			continue
		}
		datasets[d.Key] = true
		if len(d.Candidates) == 0 {
			errs = append(errs, fmt.Errorf("dataset %q: no candidate locations", d.Key))
		}
		if d.Classify != nil {
			rs, err := classify.Compile(*d.Classify)
			if err != nil {
				errs = append(errs, fmt.Errorf("dataset %q: %w", d.Key, err))
				continue
			}
			c.rules[d.Key] = rs
		}
	}

	chapters := make(map[string]bool, len(c.Chapters))
	for i, ch := range c.Chapters {
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("chapter %d: name is required", i))
			continue
		}
		if chapters[ch.Name] {
			errs = append(errs, fmt.Errorf("chapter %q: declared twice", ch.Name))
		}
		chapters[ch.Name] = true
		for _, l := range ch.Layers {
			if !datasets[l] {
				errs = append(errs, fmt.Errorf("chapter %q: unknown layer %q", ch.Name, l))
			}
		}
		for _, f := range ch.Fit {
			if !datasets[f] {
				errs = append(errs, fmt.Errorf("chapter %q: fit names unknown dataset %q", ch.Name, f))
			}
		}
		if n := len(ch.Camera.Center); n != 0 && n != 2 {
			errs = append(errs, fmt.Errorf("chapter %q: camera center needs 2 values, got %d", ch.Name, n))
		}
	}

	if c.Inspection.Limit < 0 {
		errs = append(errs, fmt.Errorf("inspection limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Dataset looks up a dataset by key.
func (c *Config) Dataset(key string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Key == key {
			return d, true
		}
	}
	return Dataset{}, false
}

// Keys returns dataset keys in declaration order.
func (c *Config) Keys() []string {
	keys := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		keys[i] = d.Key
	}
	return keys
}

// Sources returns the resolver specs for the named datasets, or for every
// dataset when keys is empty. Unknown keys are ignored.
func (c *Config) Sources(keys ...string) []source.Spec {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var specs []source.Spec
	for _, d := range c.Datasets {
		if len(keys) > 0 && !want[d.Key] {
			continue
		}
		specs = append(specs, source.Spec{Key: d.Key, Candidates: d.Candidates})
	}
	return specs
}

// RuleSet returns the compiled rule table for a dataset, if it has one.
// Tables are compiled by Validate.
func (c *Config) RuleSet(key string) (classify.RuleSet, bool) {
	rs, ok := c.rules[key]
	return rs, ok
}

// CategoryAttribute returns the property name categories are written to.
func (d Dataset) CategoryAttribute() string {
	if d.CategoryAttr != "" {
		return d.CategoryAttr
	}
	return DefaultCategoryAttr
}

// Preferences returns hover preferences keyed by dataset.
func (c *Config) Preferences() map[string][]string {
	prefs := make(map[string][]string, len(c.Datasets))
	for _, d := range c.Datasets {
		if len(d.Hover) > 0 {
			prefs[d.Key] = d.Hover
		}
	}
	return prefs
}

// Selector returns the attribute selector for the inspection deny list,
// falling back to attrs.DefaultDeny.
func (c *Config) Selector() attrs.Selector {
	if len(c.Inspection.Deny) == 0 {
		return attrs.NewSelector(attrs.DefaultDeny...)
	}
	return attrs.NewSelector(c.Inspection.Deny...)
}

// NarrativeChapters converts chapters for the controller.
func (c *Config) NarrativeChapters() []narrative.Chapter {
	out := make([]narrative.Chapter, len(c.Chapters))
	for i, ch := range c.Chapters {
		out[i] = narrative.Chapter{
			Name:   ch.Name,
			Layers: ch.Layers,
			Camera: ch.Camera.Directive(),
			Legend: ch.Legend,
			Fit:    ch.Fit,
		}
	}
	return out
}
