package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geostory/internal/story"
)

type InfoHandler struct {
	story *story.Config
	dbOK  bool
}

func NewInfoHandler(cfg *story.Config, dbOK bool) *InfoHandler {
	return &InfoHandler{story: cfg, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Title    string   `json:"title" doc:"Story title"`
	DataDir  string   `json:"data_dir" doc:"Directory local dataset candidates resolve against"`
	DB       bool     `json:"db" doc:"Whether the feature catalog is available"`
	Datasets int      `json:"datasets" doc:"Number of datasets in the story"`
	Chapters int      `json:"chapters" doc:"Number of chapters in the story"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "geostory",
		Version:  "0.1.0",
		DB:       h.dbOK,
		Features: []string{"geojson", "story", "inspection"},
	}
	if h.story != nil {
		body.Title = h.story.Title
		body.DataDir = h.story.DataDir
		body.Datasets = len(h.story.Datasets)
		body.Chapters = len(h.story.Chapters)
	}
	if h.dbOK {
		body.Features = append(body.Features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
