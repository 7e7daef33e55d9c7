package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostory/internal/attrs"
	"github.com/joeblew999/geostory/internal/geo"
)

const schema = `CREATE TABLE IF NOT EXISTS features (
	dataset       VARCHAR NOT NULL,
	idx           INTEGER NOT NULL,
	title         VARCHAR,
	category      VARCHAR,
	geometry_type VARCHAR,
	min_x         DOUBLE,
	min_y         DOUBLE,
	max_x         DOUBLE,
	max_y         DOUBLE,
	wkt           VARCHAR,
	properties    VARCHAR
)`

// Catalog stores one row per feature in the features table. Properties are
// kept as JSON text, geometry as WKT.
type Catalog struct {
	db *sql.DB
}

// NewCatalog creates the features table if needed.
func NewCatalog(ctx context.Context, db *sql.DB) (*Catalog, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating features table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// DB returns the underlying database.
func (c *Catalog) DB() *sql.DB { return c.db }

// IndexDataset replaces the rows of a dataset with the features of fc.
func (c *Catalog) IndexDataset(ctx context.Context, key, categoryAttr string, fc *geojson.FeatureCollection) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE dataset = ?`, key); err != nil {
		return fmt.Errorf("clearing %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features
		(dataset, idx, title, category, geometry_type, min_x, min_y, max_x, max_y, wkt, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		row, err := featureRow(f, categoryAttr)
		if err != nil {
			return fmt.Errorf("%s feature %d: %w", key, i, err)
		}
		if _, err := stmt.ExecContext(ctx, key, i, row.title, row.category, row.geomType,
			row.bounds[0], row.bounds[1], row.bounds[2], row.bounds[3], row.wkt, row.props); err != nil {
			return fmt.Errorf("%s feature %d: %w", key, i, err)
		}
	}
	return tx.Commit()
}

// record holds one row; nil fields are stored as NULL.
type record struct {
	title    any
	category any
	geomType any
	bounds   [4]any
	wkt      any
	props    string
}

func featureRow(f *geojson.Feature, categoryAttr string) (record, error) {
	var r record

	props := f.Properties
	if props == nil {
		props = geojson.Properties{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return r, fmt.Errorf("encoding properties: %w", err)
	}
	r.props = string(data)

	if title := attrs.Title(attrs.FromProperties(props), ""); title != "" {
		r.title = title
	}
	if v, ok := props[categoryAttr]; ok && v != nil {
		r.category = attrs.FormatValue(v)
	}

	if f.Geometry != nil {
		r.geomType = f.Geometry.GeoJSONType()
		r.wkt = wkt.MarshalString(f.Geometry)
		if b, ok := geo.GeometryExtent(f.Geometry).Bound(); ok {
			r.bounds = [4]any{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
		}
	}
	return r, nil
}

// Count returns feature rows per dataset.
func (c *Catalog) Count(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT dataset, count(*) FROM features GROUP BY dataset`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
