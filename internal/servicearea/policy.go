// Package servicearea decides whether a partner's configured coverage
// contains the endpoints of a delivery.
package servicearea

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
)

// PincodeResolver resolves a coordinate to its postal pincode. Resolution is
// an external collaborator; the policy only consumes the result.
type PincodeResolver interface {
	Resolve(ctx context.Context, p domain.GeoPoint) (string, error)
}

// Covers reports whether the area contains the point. For pincode areas the
// point's pincode is taken from the location when present, otherwise looked
// up through the resolver.
func Covers(ctx context.Context, area domain.ServiceArea, loc domain.Location, resolver PincodeResolver) (bool, error) {
	switch area.Kind {
	case domain.AreaCircle:
		return geo.HaversineKm(area.Center, loc.GeoPoint) <= area.RadiusKm, nil
	case domain.AreaPincodes:
		pin := loc.Pincode
		if pin == "" && resolver != nil {
			var err error
			pin, err = resolver.Resolve(ctx, loc.GeoPoint)
			if err != nil {
				return false, err
			}
		}
		for _, p := range area.Pincodes {
			if p == pin {
				return true, nil
			}
		}
		return false, nil
	case domain.AreaPolygon:
		return containsPoint(area.Polygon, loc.GeoPoint), nil
	default:
		return false, nil
	}
}

// CoversDelivery applies the pickup/drop rule: the pickup must always be
// covered; the drop may fall outside only when the area allows it.
func CoversDelivery(ctx context.Context, area domain.ServiceArea, pickup, drop domain.Location, resolver PincodeResolver) (bool, error) {
	ok, err := Covers(ctx, area, pickup, resolver)
	if err != nil || !ok {
		return false, err
	}
	if AllowsDropOutside(area) {
		return true, nil
	}
	return Covers(ctx, area, drop, resolver)
}

// AllowsDropOutside reads the configuration flag.
func AllowsDropOutside(area domain.ServiceArea) bool {
	return area.AllowDropOutside
}

// containsPoint runs a ray cast over the vertex ring. A point on an edge
// counts as inside.
func containsPoint(ring []domain.GeoPoint, p domain.GeoPoint) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if onSegment(a, b, p) {
			return true
		}
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

const segmentEps = 1e-9

func onSegment(a, b, p domain.GeoPoint) bool {
	cross := (b.Lat-a.Lat)*(p.Lng-a.Lng) - (b.Lng-a.Lng)*(p.Lat-a.Lat)
	if cross > segmentEps || cross < -segmentEps {
		return false
	}
	if p.Lat < minF(a.Lat, b.Lat)-segmentEps || p.Lat > maxF(a.Lat, b.Lat)+segmentEps {
		return false
	}
	if p.Lng < minF(a.Lng, b.Lng)-segmentEps || p.Lng > maxF(a.Lng, b.Lng)+segmentEps {
		return false
	}
	return true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
