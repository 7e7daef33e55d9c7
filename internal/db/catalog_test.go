package db

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestCatalogIndexDataset(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(Config{})
	if err != nil {
		t.Fatalf("opening duckdb: %v", err)
	}
	defer conn.Close()

	cat, err := NewCatalog(ctx, conn)
	if err != nil {
		t.Fatal(err)
	}

	fc := geojson.NewFeatureCollection()
	gate := geojson.NewFeature(orb.Point{-117.22, 32.76})
	gate.Properties = geojson.Properties{"Name": "Gate A", "category": "landmark"}
	fc.Append(gate)
	fc.Append(&geojson.Feature{Type: "Feature", Properties: geojson.Properties{"Name": "Nowhere"}})

	if err := cat.IndexDataset(ctx, "poi", "category", fc); err != nil {
		t.Fatalf("indexing: %v", err)
	}
	// re-indexing replaces rows
	if err := cat.IndexDataset(ctx, "poi", "category", fc); err != nil {
		t.Fatalf("re-indexing: %v", err)
	}

	counts, err := cat.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["poi"] != 2 {
		t.Fatalf("counts=%v, want 2 poi rows", counts)
	}

	var title, category, wkt string
	var minX float64
	err = conn.QueryRowContext(ctx,
		`SELECT title, category, wkt, min_x FROM features WHERE dataset = 'poi' AND idx = 0`,
	).Scan(&title, &category, &wkt, &minX)
	if err != nil {
		t.Fatal(err)
	}
	if title != "Gate A" || category != "landmark" || wkt != "POINT(-117.22 32.76)" || minX != -117.22 {
		t.Fatalf("row=%q %q %q %v", title, category, wkt, minX)
	}

	var missing int
	if err := conn.QueryRowContext(ctx,
		`SELECT count(*) FROM features WHERE geometry_type IS NULL AND min_x IS NULL`,
	).Scan(&missing); err != nil {
		t.Fatal(err)
	}
	if missing != 1 {
		t.Fatalf("rows without geometry=%d, want 1", missing)
	}
}
