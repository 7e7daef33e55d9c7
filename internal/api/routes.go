// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geostory/internal/narrative"
	"github.com/joeblew999/geostory/internal/service"
	"github.com/joeblew999/geostory/internal/story"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Story     *story.Config
	Datasets  *service.DatasetService
	Narrative *service.StoryService
}

// RegisterRoutes registers every Register* method of the API handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type KeyInput struct {
	Key string `path:"key" doc:"Dataset key" example:"walkways"`
}

type ChapterInput struct {
	Name string `path:"name" doc:"Chapter name" example:"rides"`
}

type InspectInput struct {
	KeyInput
	Lon       float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat       float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude"`
	Tolerance float64 `query:"tolerance" default:"0.0001" minimum:"0" doc:"Hit tolerance in degrees for points and lines"`
}

type AttributesInput struct {
	KeyInput
	RawBody []byte `contentType:"application/json" doc:"Feature properties object"`
}

type ExtentInput struct {
	Keys []string `query:"keys" doc:"Dataset keys to merge, comma separated" example:"walkways,nodes"`
}

type ExtentBody struct {
	Keys   []string  `json:"keys" doc:"Datasets merged"`
	Extent []float64 `json:"extent" nullable:"true" doc:"Bounding box [minX, minY, maxX, maxY], null when nothing is locatable"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type StoryBody struct {
	Title   string        `json:"title" doc:"Story title"`
	Basemap story.Basemap `json:"basemap" doc:"Raster imagery under every chapter"`
	service.Snapshot
}

type LoadBody struct {
	Datasets []service.DatasetInfo `json:"datasets" doc:"Load outcome per dataset"`
}

type LoadInput struct {
	Body struct {
		Keys []string `json:"keys,omitempty" doc:"Datasets to reload; all when empty"`
	} `required:"false"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterDatasets registers dataset routes.
func (h *APIHandler) RegisterDatasets(api huma.API) {
	huma.Get(api, "/api/v1/datasets", h.GetDatasets, huma.OperationTags("datasets"))
	huma.Post(api, "/api/v1/datasets/load", h.LoadDatasets, huma.OperationTags("datasets"))
	huma.Get(api, "/api/v1/datasets/{key}", h.GetDataset, huma.OperationTags("datasets"))
	huma.Get(api, "/api/v1/datasets/{key}/info", h.GetDatasetInfo, huma.OperationTags("datasets"))
	huma.Get(api, "/api/v1/datasets/{key}/extent", h.GetDatasetExtent, huma.OperationTags("datasets"))
	huma.Get(api, "/api/v1/datasets/{key}/inspect", h.InspectDataset, huma.OperationTags("datasets", "story"))
	huma.Post(api, "/api/v1/datasets/{key}/attributes", h.InspectAttributes, huma.OperationTags("datasets", "story"))
	huma.Get(api, "/api/v1/extent", h.GetExtent, huma.OperationTags("datasets"))
}

// RegisterStory registers chapter and story state routes.
func (h *APIHandler) RegisterStory(api huma.API) {
	huma.Get(api, "/api/v1/chapters", h.GetChapters, huma.OperationTags("story"))
	huma.Get(api, "/api/v1/story", h.GetStory, huma.OperationTags("story"))
	huma.Post(api, "/api/v1/story/chapters/{name}", h.EnterChapter, huma.OperationTags("story"))
	huma.Delete(api, "/api/v1/story/inspection", h.ClearInspection, huma.OperationTags("story"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetDatasets(ctx context.Context, input *struct{}) (*struct{ Body []service.DatasetInfo }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return &struct{ Body []service.DatasetInfo }{Body: []service.DatasetInfo{}}, nil
	}
	return &struct{ Body []service.DatasetInfo }{Body: h.svc.Datasets.List()}, nil
}

func (h *APIHandler) LoadDatasets(ctx context.Context, input *LoadInput) (*struct{ Body LoadBody }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	infos, err := h.svc.Datasets.Load(ctx, input.Body.Keys...)
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body LoadBody }{Body: LoadBody{Datasets: infos}}, nil
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (h *APIHandler) GetDataset(ctx context.Context, input *KeyInput) (*GeoJSONOutput, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	d, err := h.svc.Datasets.Get(input.Key)
	if err != nil {
		return nil, serviceError(err)
	}
	data, err := d.Collection.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding collection", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetDatasetInfo(ctx context.Context, input *KeyInput) (*struct{ Body service.DatasetInfo }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	for _, info := range h.svc.Datasets.List() {
		if info.Key == input.Key {
			return &struct{ Body service.DatasetInfo }{Body: info}, nil
		}
	}
	return nil, huma.Error404NotFound("dataset not found")
}

func (h *APIHandler) GetDatasetExtent(ctx context.Context, input *KeyInput) (*struct{ Body ExtentBody }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	if _, err := h.svc.Datasets.Get(input.Key); err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body ExtentBody }{Body: ExtentBody{
		Keys:   []string{input.Key},
		Extent: h.svc.Datasets.Extent(input.Key).Array(),
	}}, nil
}

func (h *APIHandler) GetExtent(ctx context.Context, input *ExtentInput) (*struct{ Body ExtentBody }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	keys := input.Keys
	if len(keys) == 0 && h.svc.Story != nil {
		keys = h.svc.Story.Keys()
	}
	if keys == nil {
		keys = []string{}
	}
	return &struct{ Body ExtentBody }{Body: ExtentBody{
		Keys:   keys,
		Extent: h.svc.Datasets.Extent(keys...).Array(),
	}}, nil
}

func (h *APIHandler) InspectDataset(ctx context.Context, input *InspectInput) (*struct{ Body service.Inspection }, error) {
	if h.svc == nil || h.svc.Narrative == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	got, err := h.svc.Narrative.InspectAt(input.Key, orb.Point{input.Lon, input.Lat}, input.Tolerance)
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body service.Inspection }{Body: got}, nil
}

func (h *APIHandler) InspectAttributes(ctx context.Context, input *AttributesInput) (*struct{ Body service.Inspection }, error) {
	if h.svc == nil || h.svc.Narrative == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	got, err := h.svc.Narrative.InspectAttributes(input.Key, input.RawBody)
	if err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body service.Inspection }{Body: got}, nil
}

func (h *APIHandler) GetChapters(ctx context.Context, input *struct{}) (*struct{ Body []service.ChapterInfo }, error) {
	if h.svc == nil || h.svc.Narrative == nil {
		return &struct{ Body []service.ChapterInfo }{Body: []service.ChapterInfo{}}, nil
	}
	return &struct{ Body []service.ChapterInfo }{Body: h.svc.Narrative.Chapters()}, nil
}

func (h *APIHandler) GetStory(ctx context.Context, input *struct{}) (*struct{ Body StoryBody }, error) {
	if h.svc == nil || h.svc.Narrative == nil || h.svc.Story == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	return &struct{ Body StoryBody }{Body: StoryBody{
		Title:    h.svc.Story.Title,
		Basemap:  h.svc.Story.Basemap,
		Snapshot: h.svc.Narrative.Snapshot(),
	}}, nil
}

func (h *APIHandler) EnterChapter(ctx context.Context, input *ChapterInput) (*struct{ Body service.Snapshot }, error) {
	if h.svc == nil || h.svc.Narrative == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	if err := h.svc.Narrative.Enter(input.Name); err != nil {
		return nil, serviceError(err)
	}
	return &struct{ Body service.Snapshot }{Body: h.svc.Narrative.Snapshot()}, nil
}

func (h *APIHandler) ClearInspection(ctx context.Context, input *struct{}) (*struct{}, error) {
	if h.svc == nil || h.svc.Narrative == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	h.svc.Narrative.ClearInspection()
	return nil, nil
}

// serviceError maps service errors to HTTP errors.
func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownDataset), errors.Is(err, narrative.ErrUnknownChapter):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrNotLoaded):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("unexpected error", err)
}
