package classify

import (
	"fmt"

	"github.com/danielgtaylor/mexpr"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostory/internal/attrs"
)

// Predicate decides whether a feature's attributes match a rule.
// Implementations must be pure and safe for concurrent use.
type Predicate interface {
	Match(props geojson.Properties) bool
}

// In matches when Attr's value, in string form, is one of Values.
type In struct {
	Attr   string
	values map[string]struct{}
}

// NewIn builds an In predicate.
func NewIn(attr string, values ...string) In {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return In{Attr: attr, values: set}
}

func (p In) Match(props geojson.Properties) bool {
	v, ok := props[p.Attr]
	if !ok || v == nil {
		return false
	}
	_, hit := p.values[attrs.FormatValue(v)]
	return hit
}

// Equals matches a single value.
func Equals(attr, value string) In { return NewIn(attr, value) }

// Exists matches when Attr is present and neither null nor "".
type Exists struct {
	Attr string
}

func (p Exists) Match(props geojson.Properties) bool {
	v, ok := props[p.Attr]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// Not inverts a predicate.
type Not struct{ P Predicate }

func (p Not) Match(props geojson.Properties) bool { return !p.P.Match(props) }

// All matches when every predicate matches. An empty All matches.
type All []Predicate

func (ps All) Match(props geojson.Properties) bool {
	for _, p := range ps {
		if !p.Match(props) {
			return false
		}
	}
	return true
}

// Any matches when at least one predicate matches.
type Any []Predicate

func (ps Any) Match(props geojson.Properties) bool {
	for _, p := range ps {
		if p.Match(props) {
			return true
		}
	}
	return false
}

// Expr is a predicate written in the mexpr expression language, e.g.
// `Type == "Ride" and AgeGroup != ""`. The expression is parsed once.
// Evaluation errors and non-boolean results count as no match.
type Expr struct {
	source string
	ast    *mexpr.Node
}

// NewExpr parses an expression.
func NewExpr(source string) (*Expr, error) {
	ast, err := mexpr.Parse(source, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing expression %q: %w", source, err)
	}
	return &Expr{source: source, ast: ast}, nil
}

func (e *Expr) String() string { return e.source }

func (e *Expr) Match(props geojson.Properties) bool {
	if props == nil {
		props = geojson.Properties{}
	}
	// Interpreters are cheap and not shared between goroutines.
	out, err := mexpr.NewInterpreter(e.ast).Run(map[string]any(props))
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
