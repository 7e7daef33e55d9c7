// Package service holds the datasets and the story state behind the API.
package service

import (
	"errors"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/classify"
	"github.com/joeblew999/geostory/internal/narrative"
)

var (
	// ErrUnknownDataset is returned for a key the story does not declare.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNotLoaded is returned for a declared dataset that has no collection.
	ErrNotLoaded = errors.New("dataset not loaded")
)

// Dataset load states.
const (
	StatusPending     = "pending"
	StatusReady       = "ready"
	StatusUnavailable = "unavailable"
)

// DatasetInfo summarizes one dataset. Huma reads the tags for OpenAPI.
type DatasetInfo struct {
	Key        string          `json:"key" doc:"Dataset key" example:"walkways"`
	Label      string          `json:"label,omitempty" doc:"Display name" example:"Walkways"`
	Status     string          `json:"status" enum:"pending,ready,unavailable" doc:"Load state"`
	Location   string          `json:"location,omitempty" doc:"Candidate location that was loaded"`
	Attempts   int             `json:"attempts" doc:"Candidates tried"`
	Features   int             `json:"features" doc:"Feature count"`
	Dropped    int             `json:"dropped,omitempty" doc:"Features whose geometry could not be decoded"`
	Projected  bool            `json:"projected,omitempty" doc:"Whether the source was in Web Mercator meters"`
	Kind       classify.Kind   `json:"kind,omitempty" doc:"Dominant geometry family: point, line or polygon"`
	Extent     []float64       `json:"extent,omitempty" doc:"Bounding box [minX, minY, maxX, maxY]; absent when nothing is locatable"`
	Categories map[string]int  `json:"categories,omitempty" doc:"Feature count per category"`
	Symbol     classify.Symbol `json:"symbol" doc:"Paint for the dataset layer"`
	Error      string          `json:"error,omitempty" doc:"Why the dataset is unavailable"`
}

// ChapterInfo describes one chapter.
type ChapterInfo struct {
	Name    string                 `json:"name" doc:"Chapter name" example:"rides"`
	Title   string                 `json:"title,omitempty" doc:"Chapter heading"`
	Layers  []string               `json:"layers" doc:"Visible datasets"`
	Fit     []string               `json:"fit,omitempty" doc:"Datasets the camera frames"`
	Legend  []narrative.LegendItem `json:"legend" doc:"Legend rows"`
	Current bool                   `json:"current" doc:"Whether this is the current chapter"`
}

// Inspection is the attribute panel for a feature.
type Inspection struct {
	Dataset string      `json:"dataset" doc:"Dataset key"`
	Feature int         `json:"feature" doc:"Feature index, -1 when nothing was hit"`
	Title   string      `json:"title" doc:"Panel title"`
	Rows    []attrs.Row `json:"rows" doc:"Attribute rows"`
}

// Snapshot is the state a late subscriber needs to catch up.
type Snapshot struct {
	Chapter string                 `json:"chapter"`
	Layers  []string               `json:"layers"`
	Camera  narrative.Camera       `json:"camera"`
	Legend  []narrative.LegendItem `json:"legend"`
}
