// Package source loads GeoJSON feature collections from ordered candidate
// locations.
//
// A dataset is described by a key and a list of candidates, fastest first.
// Candidates are tried strictly in order and the first one that yields a
// valid FeatureCollection wins; later candidates are never fetched. This lets
// a publisher move data between a primary host and a mirror without breaking
// readers.
package source

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Spec is the ordered list of candidate locations for one dataset.
type Spec struct {
	Key        string
	Candidates []string
}

// Resolver resolves dataset specs into collections.
type Resolver struct {
	fetcher Fetcher
	log     zerolog.Logger
}

// NewResolver creates a resolver that fetches through f.
func NewResolver(f Fetcher, log zerolog.Logger) *Resolver {
	return &Resolver{fetcher: f, log: log}
}

// Resolve returns the first candidate's collection that decodes and
// validates. If every candidate fails the error is a
// *SourceUnavailableError carrying the number of attempts.
func (r *Resolver) Resolve(ctx context.Context, key string, candidates []string) (*geojson.FeatureCollection, error) {
	d, _, err := r.resolve(ctx, key, candidates)
	if err != nil {
		return nil, err
	}
	return d.Collection, nil
}

// Result is the outcome of resolving one dataset.
type Result struct {
	Key        string
	Collection *geojson.FeatureCollection
	// Location is the candidate that won.
	Location string
	// Attempts is the number of candidates tried.
	Attempts          int
	DroppedGeometries int
	// Properties is Decoded.Properties of the winning candidate.
	Properties [][]byte
	Err        error
}

func (r *Resolver) resolve(ctx context.Context, key string, candidates []string) (*Decoded, Result, error) {
	res := Result{Key: key}
	var last error
	for i, loc := range candidates {
		res.Attempts = i + 1
		d, err := r.try(ctx, loc)
		if err == nil {
			res.Collection = d.Collection
			res.Location = loc
			res.DroppedGeometries = d.DroppedGeometries
			res.Properties = d.Properties
			if i > 0 {
				r.log.Info().Str("dataset", key).Str("candidate", loc).Int("attempt", i+1).Msg("Resolved from fallback candidate")
			}
			return d, res, nil
		}
		last = &CandidateError{Location: loc, Err: err}
		r.log.Warn().Err(err).Str("dataset", key).Str("candidate", loc).Int("attempt", i+1).Msg("Candidate failed")

		// A cancelled caller will not want the remaining candidates either.
		if ctx.Err() != nil {
			break
		}
	}
	err := &SourceUnavailableError{Key: key, Attempts: res.Attempts, Last: last}
	res.Err = err
	return nil, res, err
}

func (r *Resolver) try(ctx context.Context, loc string) (d *Decoded, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, err = nil, fmt.Errorf("fetch panicked: %v", p)
		}
	}()

	data, err := r.fetcher.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ResolveAll resolves every spec concurrently, at most limit at a time
// (unbounded when limit <= 0), and waits for all of them. A failing dataset
// never cancels the others; its Result carries the error instead.
// Results are returned in spec order.
func (r *Resolver) ResolveAll(ctx context.Context, specs []Spec, limit int) []Result {
	results := make([]Result, len(specs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, spec := range specs {
		g.Go(func() error {
			_, res, _ := r.resolve(ctx, spec.Key, spec.Candidates)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
