// Package classify assigns features a symbol category from their attributes.
//
// A RuleSet is an ordered table of (predicate, label) pairs evaluated
// generically: the first predicate that matches wins and the default label
// covers everything else. Classification looks at one feature's attributes
// only, so it is safe to run on many features at once in any order.
package classify

import (
	"fmt"
	"runtime"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// Rule pairs a predicate with the label it assigns.
type Rule struct {
	Label string
	When  Predicate
}

// RuleSet is an ordered list of rules plus a default label.
type RuleSet struct {
	Rules   []Rule
	Default string
}

// Classify returns the label of the first matching rule, or the default.
func (rs RuleSet) Classify(f *geojson.Feature) string {
	if f == nil {
		return rs.Default
	}
	return rs.ClassifyProperties(f.Properties)
}

// ClassifyProperties is Classify for a bare attribute map.
func (rs RuleSet) ClassifyProperties(props geojson.Properties) string {
	for _, r := range rs.Rules {
		if r.When != nil && r.When.Match(props) {
			return r.Label
		}
	}
	return rs.Default
}

// Labels returns every label the rule set can produce, in rule order,
// default last, without duplicates.
func (rs RuleSet) Labels() []string {
	seen := make(map[string]bool, len(rs.Rules)+1)
	var out []string
	add := func(label string) {
		if label == "" || seen[label] {
			return
		}
		seen[label] = true
		out = append(out, label)
	}
	for _, r := range rs.Rules {
		add(r.Label)
	}
	add(rs.Default)
	return out
}

// ClassifyAll labels every feature of fc, spreading the work over the
// available CPUs. Result i belongs to feature i.
func ClassifyAll(fc *geojson.FeatureCollection, rs RuleSet) []string {
	if fc == nil {
		return nil
	}
	labels := make([]string, len(fc.Features))

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(labels) + workers - 1) / workers
	if chunk < 256 {
		chunk = 256
	}

	var g errgroup.Group
	for start := 0; start < len(labels); start += chunk {
		end := min(start+chunk, len(labels))
		g.Go(func() error {
			for i := start; i < end; i++ {
				labels[i] = rs.Classify(fc.Features[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return labels
}

// Annotate returns a copy of fc with each feature's label stored under attr,
// ready for a renderer to style on. Geometries are shared with fc; fc and
// its properties are not modified.
func Annotate(fc *geojson.FeatureCollection, rs RuleSet, attr string) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	out.BBox = fc.BBox
	labels := ClassifyAll(fc, rs)
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		c := *f
		c.Properties = f.Properties.Clone()
		if c.Properties == nil {
			c.Properties = geojson.Properties{}
		}
		c.Properties[attr] = labels[i]
		out.Append(&c)
	}
	return out
}

// Histogram counts features per label.
func Histogram(labels []string) map[string]int {
	h := make(map[string]int)
	for _, l := range labels {
		h[l]++
	}
	return h
}

// RuleSpec is the declarative, config-file form of a rule.
//
// Exactly one of When (an expression), In (a value list for Attr) or a bare
// Attr (presence check) selects the predicate.
type RuleSpec struct {
	Label string   `yaml:"label" json:"label"`
	Attr  string   `yaml:"attr,omitempty" json:"attr,omitempty"`
	In    []string `yaml:"in,omitempty" json:"in,omitempty"`
	When  string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// RuleSetSpec is the config-file form of a RuleSet.
type RuleSetSpec struct {
	Attr    string     `yaml:"attr,omitempty" json:"attr,omitempty"`
	Rules   []RuleSpec `yaml:"rules" json:"rules"`
	Default string     `yaml:"default" json:"default"`
}

// Compile turns a spec into a RuleSet. A rule-level Attr falls back to the
// set-level Attr, so a table that matches on a single attribute only has to
// name it once.
func Compile(spec RuleSetSpec) (RuleSet, error) {
	rs := RuleSet{Default: spec.Default}
	for i, r := range spec.Rules {
		if r.Label == "" {
			return RuleSet{}, fmt.Errorf("rule %d: label is required", i)
		}
		attr := r.Attr
		if attr == "" {
			attr = spec.Attr
		}

		var p Predicate
		switch {
		case r.When != "":
			e, err := NewExpr(r.When)
			if err != nil {
				return RuleSet{}, fmt.Errorf("rule %d (%s): %w", i, r.Label, err)
			}
			p = e
		case attr != "" && len(r.In) > 0:
			p = NewIn(attr, r.In...)
		case attr != "":
			p = Exists{Attr: attr}
		default:
			return RuleSet{}, fmt.Errorf("rule %d (%s): needs when, in or attr", i, r.Label)
		}
		rs.Rules = append(rs.Rules, Rule{Label: r.Label, When: p})
	}
	return rs, nil
}
