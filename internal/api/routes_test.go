package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/service"
	"github.com/joeblew999/geostory/internal/source"
	"github.com/joeblew999/geostory/internal/story"
)

const testStory = `
title: Test Story
basemap:
  tiles: https://tiles.example/{z}/{x}/{y}.png
datasets:
  - key: walkways
    candidates: [walkways.geojson]
  - key: poi
    candidates: [poi.geojson]
    hover: [Name, Type]
  - key: missing
    candidates: [missing.geojson]
chapters:
  - name: walkways
    layers: [walkways]
    fit: [walkways]
    legend:
      - {label: Walkways, swatch: "#39ff14"}
  - name: poi
    layers: [walkways, poi]
`

var testFiles = map[string]string{
	"walkways.geojson": `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"Name":"Main"},
		 "geometry":{"type":"LineString","coordinates":[[-117.16,32.73],[-117.15,32.74]]}}]}`,
	"poi.geojson": `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"Name":"Gate A","Type":"Entrance","OBJECTID":7},
		 "geometry":{"type":"Point","coordinates":[-117.22,32.76]}}]}`,
}

func newTestServices(t *testing.T) *Services {
	t.Helper()
	cfg, err := story.Parse([]byte(testStory))
	if err != nil {
		t.Fatalf("parsing story: %v", err)
	}
	fetcher := source.FetcherFunc(func(ctx context.Context, loc string) ([]byte, error) {
		body, ok := testFiles[loc]
		if !ok {
			return nil, fmt.Errorf("%s: not found", loc)
		}
		return []byte(body), nil
	})
	bus := service.NewEventBus(0)
	datasets := service.NewDatasetService(cfg, source.NewResolver(fetcher, zerolog.Nop()), nil, bus, zerolog.Nop())
	if _, err := datasets.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	narrative, err := service.NewStoryService(cfg, datasets, service.NewBroadcastRenderer(bus), bus, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return &Services{Story: cfg, Datasets: datasets, Narrative: narrative}
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decoding %s: %v", body, err)
	}
}

func TestHealth(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, nil)

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var body HealthBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Status != "ok" {
		t.Fatalf("body=%+v", body)
	}
}

func TestDatasets(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newTestServices(t))

	resp := api.Get("/api/v1/datasets")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	var list []service.DatasetInfo
	decode(t, resp.Body.Bytes(), &list)
	if len(list) != 3 || list[0].Key != "walkways" || list[2].Status != service.StatusUnavailable {
		t.Fatalf("list=%+v", list)
	}

	resp = api.Get("/api/v1/datasets/poi")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type=%q", ct)
	}
	if !strings.Contains(resp.Body.String(), `"Gate A"`) {
		t.Fatalf("collection=%s", resp.Body.String())
	}

	if resp := api.Get("/api/v1/datasets/missing"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("unavailable dataset status=%d", resp.Code)
	}
	if resp := api.Get("/api/v1/datasets/ghost"); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown dataset status=%d", resp.Code)
	}

	resp = api.Get("/api/v1/datasets/missing/info")
	var info service.DatasetInfo
	decode(t, resp.Body.Bytes(), &info)
	if info.Status != service.StatusUnavailable || info.Attempts != 1 || info.Error == "" {
		t.Fatalf("info=%+v", info)
	}
}

func TestExtent(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newTestServices(t))

	resp := api.Get("/api/v1/datasets/poi/extent")
	var body ExtentBody
	decode(t, resp.Body.Bytes(), &body)
	if len(body.Extent) != 4 || body.Extent[0] != -117.22 || body.Extent[3] != 32.76 {
		t.Fatalf("extent=%+v", body)
	}

	resp = api.Get("/api/v1/extent")
	decode(t, resp.Body.Bytes(), &body)
	if len(body.Keys) != 3 || body.Extent[0] != -117.22 || body.Extent[2] != -117.15 {
		t.Fatalf("merged extent=%+v", body)
	}

	resp = api.Get("/api/v1/extent?keys=missing")
	body = ExtentBody{}
	decode(t, resp.Body.Bytes(), &body)
	if body.Extent != nil {
		t.Fatalf("empty extent=%v, want null", body.Extent)
	}
}

func TestInspect(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newTestServices(t))

	resp := api.Get("/api/v1/datasets/poi/inspect?lon=-117.22&lat=32.76")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	var got service.Inspection
	decode(t, resp.Body.Bytes(), &got)
	if got.Title != "Gate A" || got.Feature != 0 || len(got.Rows) != 2 || got.Rows[1].Value != "Entrance" {
		t.Fatalf("inspection=%+v", got)
	}

	resp = api.Get("/api/v1/datasets/poi/inspect?lon=0&lat=0")
	got = service.Inspection{}
	decode(t, resp.Body.Bytes(), &got)
	if got.Feature != -1 || len(got.Rows) != 0 {
		t.Fatalf("miss=%+v", got)
	}

	resp = api.Post("/api/v1/datasets/poi/attributes",
		"Content-Type: application/json",
		strings.NewReader(`{"Zeta": 1, "Type": "Ride", "Name": "Sky Ride", "Alpha": ""}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	got = service.Inspection{}
	decode(t, resp.Body.Bytes(), &got)
	names := make([]string, len(got.Rows))
	for i, r := range got.Rows {
		names[i] = r.Name
	}
	if got.Title != "Sky Ride" || strings.Join(names, ",") != "Name,Type,Zeta" {
		t.Fatalf("inspection=%+v", got)
	}

	if resp := api.Delete("/api/v1/story/inspection"); resp.Code != http.StatusNoContent {
		t.Fatalf("clear status=%d", resp.Code)
	}
}

func TestStoryRoutes(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newTestServices(t))

	resp := api.Post("/api/v1/story/chapters/poi")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	var snap service.Snapshot
	decode(t, resp.Body.Bytes(), &snap)
	if snap.Chapter != "poi" || strings.Join(snap.Layers, ",") != "walkways,poi" {
		t.Fatalf("snapshot=%+v", snap)
	}

	if resp := api.Post("/api/v1/story/chapters/nowhere"); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown chapter status=%d", resp.Code)
	}

	resp = api.Get("/api/v1/chapters")
	var chapters []service.ChapterInfo
	decode(t, resp.Body.Bytes(), &chapters)
	if len(chapters) != 2 || chapters[0].Current || !chapters[1].Current {
		t.Fatalf("chapters=%+v", chapters)
	}

	resp = api.Get("/api/v1/story")
	var st StoryBody
	decode(t, resp.Body.Bytes(), &st)
	if st.Title != "Test Story" || st.Chapter != "poi" || st.Basemap.Tiles == "" {
		t.Fatalf("story=%+v", st)
	}
}

func TestLinkTransformer(t *testing.T) {
	config := huma.DefaultConfig("test", "1.0.0")
	config.CreateHooks = nil
	config.Transformers = append(config.Transformers, LinkTransformer())
	_, api := humatest.New(t, config)
	RegisterRoutes(api, newTestServices(t))

	links := api.Get("/health").Header().Values("Link")
	if len(links) != 4 || !strings.Contains(links[0], "/api/v1/info") {
		t.Fatalf("health links=%v", links)
	}

	links = api.Get("/api/v1/datasets/poi/info").Header().Values("Link")
	if len(links) != 2 || links[1] != `</api/v1/datasets/poi/info>; rel="self"` {
		t.Fatalf("item links=%v", links)
	}
}
