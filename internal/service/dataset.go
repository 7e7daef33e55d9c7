package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/classify"
	"github.com/joeblew999/geostory/internal/geo"
	"github.com/joeblew999/geostory/internal/source"
	"github.com/joeblew999/geostory/internal/story"
)

// Catalog receives every loaded dataset for ad-hoc querying.
type Catalog interface {
	IndexDataset(ctx context.Context, key, categoryAttr string, fc *geojson.FeatureCollection) error
}

// Dataset is a loaded, normalized collection.
type Dataset struct {
	Info       DatasetInfo
	Collection *geojson.FeatureCollection
	Extent     geo.Extent
	Index      *geo.Index

	// raw properties per feature as published, before classification
	properties [][]byte
}

// At returns the topmost feature under p, within tolerance degrees, or -1
// and nil. Later features draw over earlier ones.
func (d *Dataset) At(p orb.Point, tolerance float64) (int, *geojson.Feature) {
	hits := d.Index.At(p, tolerance)
	if len(hits) == 0 {
		return -1, nil
	}
	top := hits[len(hits)-1]
	return top.Index, top.Feature
}

// Attributes returns feature i's attributes in the order the source
// document lists them. Computed properties such as categories are not
// included.
func (d *Dataset) Attributes(i int) attrs.Attributes {
	if i >= 0 && i < len(d.properties) {
		return attrs.Parse(d.properties[i])
	}
	if i >= 0 && i < len(d.Collection.Features) {
		return attrs.FromProperties(d.Collection.Features[i].Properties)
	}
	return nil
}

// DatasetService loads the story's datasets and serves them.
type DatasetService struct {
	story    *story.Config
	resolver *source.Resolver
	catalog  Catalog
	bus      *EventBus
	log      zerolog.Logger

	// Concurrency bounds simultaneous dataset fetches; 0 is unbounded.
	Concurrency int

	mu       sync.RWMutex
	datasets map[string]*Dataset
	failed   map[string]DatasetInfo
}

// NewDatasetService creates a dataset service. catalog and bus may be nil.
func NewDatasetService(cfg *story.Config, resolver *source.Resolver, catalog Catalog, bus *EventBus, log zerolog.Logger) *DatasetService {
	return &DatasetService{
		story:       cfg,
		resolver:    resolver,
		catalog:     catalog,
		bus:         bus,
		log:         log,
		Concurrency: 4,
		datasets:    make(map[string]*Dataset),
		failed:      make(map[string]DatasetInfo),
	}
}

// Load resolves the named datasets, or all of them when keys is empty.
// A dataset that cannot be resolved is reported in its info and never
// stops the others.
func (s *DatasetService) Load(ctx context.Context, keys ...string) ([]DatasetInfo, error) {
	for _, k := range keys {
		if _, ok := s.story.Dataset(k); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, k)
		}
	}

	results := s.resolver.ResolveAll(ctx, s.story.Sources(keys...), s.Concurrency)
	infos := make([]DatasetInfo, len(results))
	for i, res := range results {
		infos[i] = s.accept(ctx, res)
	}
	return infos, nil
}

func (s *DatasetService) accept(ctx context.Context, res source.Result) DatasetInfo {
	decl, _ := s.story.Dataset(res.Key)
	info := DatasetInfo{
		Key:      res.Key,
		Label:    decl.Label,
		Attempts: res.Attempts,
	}

	if res.Err != nil {
		info.Status = StatusUnavailable
		info.Error = res.Err.Error()
		info.Symbol = decl.SymbolFor(classify.KindUnknown)
		s.log.Error().Err(res.Err).Str("dataset", res.Key).Int("attempts", res.Attempts).Msg("Dataset unavailable")

		s.mu.Lock()
		delete(s.datasets, res.Key)
		s.failed[res.Key] = info
		s.mu.Unlock()
		s.publish(Event{Resource: ResourceDatasets, Action: StatusUnavailable, ID: res.Key, Data: info})
		return info
	}

	info.Projected = geo.IsProjected(res.Collection)
	fc := geo.Normalize(res.Collection)
	if rs, ok := s.story.RuleSet(res.Key); ok {
		fc = classify.Annotate(fc, rs, decl.CategoryAttribute())
		info.Categories = classify.Histogram(classify.ClassifyAll(fc, rs))
	}

	d := &Dataset{
		Collection: fc,
		Extent:     geo.ExtentOf(fc),
		Index:      geo.NewIndex(fc),
	}
	if len(res.Properties) == len(fc.Features) {
		d.properties = res.Properties
	}
	info.Status = StatusReady
	info.Location = res.Location
	info.Features = len(fc.Features)
	info.Dropped = res.DroppedGeometries
	info.Kind = classify.GeometryKind(fc)
	info.Extent = d.Extent.Array()
	info.Symbol = decl.SymbolFor(info.Kind)
	d.Info = info

	if s.catalog != nil {
		if err := s.catalog.IndexDataset(ctx, res.Key, decl.CategoryAttribute(), fc); err != nil {
			s.log.Warn().Err(err).Str("dataset", res.Key).Msg("Catalog indexing failed")
		}
	}

	s.mu.Lock()
	s.datasets[res.Key] = d
	delete(s.failed, res.Key)
	s.mu.Unlock()

	s.log.Info().
		Str("dataset", res.Key).
		Str("location", res.Location).
		Int("features", info.Features).
		Bool("projected", info.Projected).
		Msg("Dataset loaded")
	s.publish(Event{Resource: ResourceDatasets, Action: "loaded", ID: res.Key, Data: info})
	return info
}

func (s *DatasetService) publish(e Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// List returns every declared dataset in story order.
func (s *DatasetService) List() []DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DatasetInfo, 0, len(s.story.Datasets))
	for _, decl := range s.story.Datasets {
		if d, ok := s.datasets[decl.Key]; ok {
			out = append(out, d.Info)
			continue
		}
		if info, ok := s.failed[decl.Key]; ok {
			out = append(out, info)
			continue
		}
		out = append(out, DatasetInfo{
			Key:    decl.Key,
			Label:  decl.Label,
			Status: StatusPending,
			Symbol: decl.SymbolFor(classify.KindUnknown),
		})
	}
	return out
}

// Get returns a loaded dataset.
func (s *DatasetService) Get(key string) (*Dataset, error) {
	if _, ok := s.story.Dataset(key); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotLoaded, key)
	}
	return d, nil
}

// Extent merges the extents of the named loaded datasets. Unknown and
// unloaded keys contribute nothing.
func (s *DatasetService) Extent(keys ...string) geo.Extent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var e geo.Extent
	for _, k := range keys {
		if d, ok := s.datasets[k]; ok {
			e = geo.Merge(e, d.Extent)
		}
	}
	return e
}

// FeatureAt returns the topmost feature of a dataset under p, within
// tolerance degrees. Later features draw over earlier ones.
func (s *DatasetService) FeatureAt(key string, p orb.Point, tolerance float64) (int, *geojson.Feature, error) {
	d, err := s.Get(key)
	if err != nil {
		return -1, nil, err
	}
	idx, f := d.At(p, tolerance)
	return idx, f, nil
}
