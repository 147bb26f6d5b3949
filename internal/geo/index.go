package geo

import (
	"context"
	"math"
	"sort"
	"sync"

	"service-dispatch/internal/domain"
)

// Candidate is one partner inside a radius query result.
type Candidate struct {
	PartnerID  int64
	DistanceKm float64
}

// Index is a spatial lookup of partner locations. Near returns candidates
// ordered by distance ascending, ties broken by partner id ascending, so a
// query over identical state is always answered in the same order.
type Index interface {
	Upsert(ctx context.Context, partnerID int64, p domain.GeoPoint) error
	Remove(ctx context.Context, partnerID int64) error
	Near(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]Candidate, error)
}

// GridIndex is an in-memory Index bucketing locations into fixed-size
// latitude/longitude cells. A radius query scans only the cells the circle
// can touch and verifies each hit with the haversine distance.
type GridIndex struct {
	mu        sync.RWMutex
	cellDeg   float64
	cells     map[cellKey]map[int64]domain.GeoPoint
	positions map[int64]cellKey
}

type cellKey struct{ row, col int }

// NewGridIndex creates a GridIndex with the given cell size in degrees.
// Zero or negative sizes fall back to 0.1° (≈11km at the equator).
func NewGridIndex(cellDeg float64) *GridIndex {
	if cellDeg <= 0 {
		cellDeg = 0.1
	}
	return &GridIndex{
		cellDeg:   cellDeg,
		cells:     make(map[cellKey]map[int64]domain.GeoPoint),
		positions: make(map[int64]cellKey),
	}
}

func (g *GridIndex) keyFor(p domain.GeoPoint) cellKey {
	return cellKey{
		row: int(math.Floor(p.Lat / g.cellDeg)),
		col: int(math.Floor(p.Lng / g.cellDeg)),
	}
}

// Upsert records or moves a partner location.
func (g *GridIndex) Upsert(_ context.Context, partnerID int64, p domain.GeoPoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.keyFor(p)
	if old, ok := g.positions[partnerID]; ok && old != key {
		delete(g.cells[old], partnerID)
		if len(g.cells[old]) == 0 {
			delete(g.cells, old)
		}
	}
	cell, ok := g.cells[key]
	if !ok {
		cell = make(map[int64]domain.GeoPoint)
		g.cells[key] = cell
	}
	cell[partnerID] = p
	g.positions[partnerID] = key
	return nil
}

// Remove drops a partner from the index.
func (g *GridIndex) Remove(_ context.Context, partnerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key, ok := g.positions[partnerID]
	if !ok {
		return nil
	}
	delete(g.cells[key], partnerID)
	if len(g.cells[key]) == 0 {
		delete(g.cells, key)
	}
	delete(g.positions, partnerID)
	return nil
}

// Near returns all partners within radiusKm of center, distance ascending,
// partner id ascending on equal distance.
func (g *GridIndex) Near(_ context.Context, center domain.GeoPoint, radiusKm float64) ([]Candidate, error) {
	if radiusKm <= 0 {
		return nil, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	// Degrees of latitude per km is constant; longitude shrinks with
	// cos(lat). Guard against poles where the longitude span blows up.
	latSpan := radiusKm / 110.574
	cosLat := math.Cos(degreesToRadians(center.Lat))
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngSpan := radiusKm / (111.320 * cosLat)

	minKey := g.keyFor(domain.GeoPoint{Lat: center.Lat - latSpan, Lng: center.Lng - lngSpan})
	maxKey := g.keyFor(domain.GeoPoint{Lat: center.Lat + latSpan, Lng: center.Lng + lngSpan})

	var out []Candidate
	for row := minKey.row; row <= maxKey.row; row++ {
		for col := minKey.col; col <= maxKey.col; col++ {
			for id, p := range g.cells[cellKey{row: row, col: col}] {
				d := HaversineKm(center, p)
				if d <= radiusKm {
					out = append(out, Candidate{PartnerID: id, DistanceKm: d})
				}
			}
		}
	}

	SortCandidates(out)
	return out, nil
}

// SortCandidates orders candidates by distance ascending with partner id as
// the deterministic tie-break.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DistanceKm != cs[j].DistanceKm {
			return cs[i].DistanceKm < cs[j].DistanceKm
		}
		return cs[i].PartnerID < cs[j].PartnerID
	})
}

var _ Index = (*GridIndex)(nil)
