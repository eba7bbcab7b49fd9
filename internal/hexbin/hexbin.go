// Package hexbin bins point features into a regular hexagonal grid and
// reports incident density per cell.
//
// The tiling is pointy-top with a configurable edge length in meters. Points
// are projected to spherical Web Mercator (EPSG:3857), assigned to cells by
// axial coordinate rounding, and cell boundaries are unprojected back to
// WGS-84 for output. The grid is anchored at the projected origin, so cell
// identifiers are stable across runs for a given edge length.
package hexbin

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// ErrInvalidEdge is returned when the configured cell edge length is not a
// positive finite number. This is a configuration error: it is raised before
// any record is processed.
var ErrInvalidEdge = errors.New("hexbin: cell edge length must be a positive number of meters")

const sqrt3 = 1.7320508075688772

// DefaultEdgeMeters is the default hexagon edge length (center to vertex).
const DefaultEdgeMeters = 1000.0

// CellID addresses one hexagon in axial coordinates.
type CellID struct {
	Q int
	R int
}

func (c CellID) String() string {
	return fmt.Sprintf("%d:%d", c.Q, c.R)
}

// Result is the outcome of one aggregation run.
type Result struct {
	// Cells holds one polygon feature per populated cell, ordered by (Q, R).
	Cells *geojson.FeatureCollection

	// ValidPoints is the number of input points that were assigned to a cell.
	// It always equals the sum of the per-cell counts.
	ValidPoints int

	// Skipped is the number of input features excluded for having a
	// non-point geometry or implausible coordinates.
	Skipped int
}

// Aggregate bins every point feature in the input collections into a
// pointy-top hexagonal grid with the given edge length in meters and returns
// one polygon feature per populated cell with count, area_km2, and
// density_per_km2 properties.
//
// Features with non-point geometries or coordinates outside [-90,90] /
// [-180,180] are skipped and counted in Result.Skipped; they never fail the
// run. A non-positive or non-finite edge length fails immediately with
// ErrInvalidEdge. Empty input yields an empty collection.
func Aggregate(edgeMeters float64, collections ...*geojson.FeatureCollection) (*Result, error) {
	if edgeMeters <= 0 || math.IsNaN(edgeMeters) || math.IsInf(edgeMeters, 0) {
		return nil, ErrInvalidEdge
	}

	counts := make(map[CellID]int)
	valid, skipped := 0, 0

	for _, fc := range collections {
		if fc == nil {
			continue
		}
		for _, f := range fc.Features {
			pt, ok := pointOf(f)
			if !ok {
				skipped++
				continue
			}
			counts[cellFor(project.WGS84.ToMercator(pt), edgeMeters)]++
			valid++
		}
	}

	ids := make([]CellID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Q != ids[j].Q {
			return ids[i].Q < ids[j].Q
		}
		return ids[i].R < ids[j].R
	})

	// Regular hexagon area is constant across the tiling.
	areaKM2 := 3 * sqrt3 / 2 * edgeMeters * edgeMeters / 1e6

	out := geojson.NewFeatureCollection()
	for _, id := range ids {
		count := counts[id]
		f := geojson.NewFeature(cellPolygon(id, edgeMeters))
		f.Properties["hex_id"] = id.String()
		f.Properties["count"] = count
		f.Properties["area_km2"] = areaKM2
		f.Properties["density_per_km2"] = float64(count) / areaKM2
		out.Append(f)
	}

	return &Result{Cells: out, ValidPoints: valid, Skipped: skipped}, nil
}

// pointOf extracts a plausible WGS-84 point from a feature.
func pointOf(f *geojson.Feature) (orb.Point, bool) {
	if f == nil {
		return orb.Point{}, false
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return orb.Point{}, false
	}
	lon, lat := pt.Lon(), pt.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return orb.Point{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, false
	}
	return pt, true
}

// cellFor maps a projected point to its containing cell via axial coordinate
// rounding (cube rounding with the largest component error corrected).
func cellFor(m orb.Point, edge float64) CellID {
	qf := (sqrt3/3*m.X() - m.Y()/3) / edge
	rf := (2.0 / 3.0 * m.Y()) / edge

	x, z := qf, rf
	y := -x - z

	rx, ry, rz := math.Round(x), math.Round(y), math.Round(z)
	dx, dy, dz := math.Abs(rx-x), math.Abs(ry-y), math.Abs(rz-z)

	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy > dz:
		// y carried the largest error; q and r are already consistent.
	default:
		rz = -rx - ry
	}

	return CellID{Q: int(rx), R: int(rz)}
}

// cellPolygon builds the closed WGS-84 boundary ring of a cell. Pointy-top
// hexagons have vertices at 30° + 60°·i around the center.
func cellPolygon(id CellID, edge float64) orb.Polygon {
	cx := edge * sqrt3 * (float64(id.Q) + float64(id.R)/2)
	cy := edge * 1.5 * float64(id.R)

	ring := make(orb.Ring, 0, 7)
	for i := 0; i < 6; i++ {
		angle := math.Pi/6 + math.Pi/3*float64(i)
		v := orb.Point{cx + edge*math.Cos(angle), cy + edge*math.Sin(angle)}
		ring = append(ring, project.Mercator.ToWGS84(v))
	}
	ring = append(ring, ring[0])

	return orb.Polygon{ring}
}
