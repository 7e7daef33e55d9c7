package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostory/internal/db"
)

func TestDBHandler(t *testing.T) {
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	catalog, err := db.NewCatalog(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	fc := geojson.NewFeatureCollection()
	for _, name := range []string{"Gate A", "Gate B", "Kiosk"} {
		f := geojson.NewFeature(orb.Point{-117.22, 32.76})
		f.Properties["Name"] = name
		fc.Append(f)
	}
	if err := catalog.IndexDataset(context.Background(), "poi", "category", fc); err != nil {
		t.Fatal(err)
	}

	_, api := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(api)

	resp := api.Get("/api/v1/tables")
	var tables TablesBody
	decode(t, resp.Body.Bytes(), &tables)
	if len(tables.Tables) != 1 || tables.Tables[0] != "features" {
		t.Fatalf("tables=%v", tables.Tables)
	}

	resp = api.Post("/api/v1/query", map[string]any{
		"query": "SELECT title FROM features ORDER BY idx",
		"limit": 2,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body.String())
	}
	var body QueryBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Count != 2 || !body.Truncated || body.Rows[0]["title"] != "Gate A" {
		t.Fatalf("query=%+v", body)
	}

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELEKT nonsense"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad query status=%d", resp.Code)
	}
}

func TestDBHandlerUnavailable(t *testing.T) {
	_, api := humatest.New(t)
	NewDBHandler(nil).RegisterRoutes(api)

	if resp := api.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", resp.Code)
	}
}
