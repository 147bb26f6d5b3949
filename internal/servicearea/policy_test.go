package servicearea

import (
	"context"
	"errors"
	"testing"

	"service-dispatch/internal/domain"
)

type resolverFunc func(ctx context.Context, p domain.GeoPoint) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, p domain.GeoPoint) (string, error) {
	return f(ctx, p)
}

func loc(lat, lng float64) domain.Location {
	return domain.Location{GeoPoint: domain.GeoPoint{Lat: lat, Lng: lng}}
}

func circle(lat, lng, radiusKm float64) domain.ServiceArea {
	return domain.ServiceArea{
		Kind:     domain.AreaCircle,
		Center:   domain.GeoPoint{Lat: lat, Lng: lng},
		RadiusKm: radiusKm,
	}
}

func TestCovers_Circle(t *testing.T) {
	t.Parallel()

	area := circle(12.9716, 77.5946, 5)

	ok, err := Covers(context.Background(), area, loc(12.9716, 77.5946), nil)
	if err != nil || !ok {
		t.Fatalf("center: ok=%v err=%v", ok, err)
	}

	// ~0.03° latitude is about 3.3 km
	ok, err = Covers(context.Background(), area, loc(13.0016, 77.5946), nil)
	if err != nil || !ok {
		t.Fatalf("inside radius: ok=%v err=%v", ok, err)
	}

	ok, err = Covers(context.Background(), area, loc(13.2, 77.5946), nil)
	if err != nil || ok {
		t.Fatalf("outside radius: ok=%v err=%v", ok, err)
	}
}

func TestCovers_PincodesUsesLocationPincode(t *testing.T) {
	t.Parallel()

	area := domain.ServiceArea{Kind: domain.AreaPincodes, Pincodes: []string{"560001", "560002"}}

	l := loc(12.9, 77.6)
	l.Pincode = "560002"
	ok, err := Covers(context.Background(), area, l, nil)
	if err != nil || !ok {
		t.Fatalf("known pincode: ok=%v err=%v", ok, err)
	}

	l.Pincode = "110001"
	ok, err = Covers(context.Background(), area, l, nil)
	if err != nil || ok {
		t.Fatalf("foreign pincode: ok=%v err=%v", ok, err)
	}
}

func TestCovers_PincodesFallsBackToResolver(t *testing.T) {
	t.Parallel()

	area := domain.ServiceArea{Kind: domain.AreaPincodes, Pincodes: []string{"560001"}}
	resolver := resolverFunc(func(_ context.Context, _ domain.GeoPoint) (string, error) {
		return "560001", nil
	})

	ok, err := Covers(context.Background(), area, loc(12.9, 77.6), resolver)
	if err != nil || !ok {
		t.Fatalf("resolved pincode: ok=%v err=%v", ok, err)
	}
}

func TestCovers_PincodesResolverError(t *testing.T) {
	t.Parallel()

	area := domain.ServiceArea{Kind: domain.AreaPincodes, Pincodes: []string{"560001"}}
	boom := errors.New("resolver down")
	resolver := resolverFunc(func(_ context.Context, _ domain.GeoPoint) (string, error) {
		return "", boom
	})

	_, err := Covers(context.Background(), area, loc(12.9, 77.6), resolver)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestCovers_PincodesWithoutResolver(t *testing.T) {
	t.Parallel()

	area := domain.ServiceArea{Kind: domain.AreaPincodes, Pincodes: []string{"560001"}}

	ok, err := Covers(context.Background(), area, loc(12.9, 77.6), nil)
	if err != nil || ok {
		t.Fatalf("no pincode, no resolver: ok=%v err=%v", ok, err)
	}
}

func TestCovers_Polygon(t *testing.T) {
	t.Parallel()

	square := domain.ServiceArea{
		Kind: domain.AreaPolygon,
		Polygon: []domain.GeoPoint{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 10},
			{Lat: 10, Lng: 10},
			{Lat: 10, Lng: 0},
		},
	}

	tests := []struct {
		name string
		p    domain.Location
		want bool
	}{
		{"inside", loc(5, 5), true},
		{"outside", loc(15, 5), false},
		{"on edge", loc(0, 5), true},
		{"vertex", loc(10, 10), true},
		{"just outside edge", loc(10.001, 5), false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ok, err := Covers(context.Background(), square, tc.p, nil)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tc.want {
				t.Fatalf("covers = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestCovers_UnknownKindIsNotCovered(t *testing.T) {
	t.Parallel()

	ok, err := Covers(context.Background(), domain.ServiceArea{}, loc(0, 0), nil)
	if err != nil || ok {
		t.Fatalf("zero-value area: ok=%v err=%v", ok, err)
	}
}

func TestCoversDelivery_RequiresBothEndpoints(t *testing.T) {
	t.Parallel()

	area := circle(12.9716, 77.5946, 5)
	pickup := loc(12.9716, 77.5946)
	dropInside := loc(12.99, 77.59)
	dropOutside := loc(13.5, 77.59)

	ok, err := CoversDelivery(context.Background(), area, pickup, dropInside, nil)
	if err != nil || !ok {
		t.Fatalf("both inside: ok=%v err=%v", ok, err)
	}

	ok, err = CoversDelivery(context.Background(), area, pickup, dropOutside, nil)
	if err != nil || ok {
		t.Fatalf("drop outside: ok=%v err=%v", ok, err)
	}

	ok, err = CoversDelivery(context.Background(), area, dropOutside, dropInside, nil)
	if err != nil || ok {
		t.Fatalf("pickup outside: ok=%v err=%v", ok, err)
	}
}

func TestCoversDelivery_AllowDropOutside(t *testing.T) {
	t.Parallel()

	area := circle(12.9716, 77.5946, 5)
	area.AllowDropOutside = true

	pickup := loc(12.9716, 77.5946)
	dropOutside := loc(13.5, 77.59)

	ok, err := CoversDelivery(context.Background(), area, pickup, dropOutside, nil)
	if err != nil || !ok {
		t.Fatalf("relaxed drop: ok=%v err=%v", ok, err)
	}

	// pickup must still be covered even with the relaxed drop rule
	ok, err = CoversDelivery(context.Background(), area, dropOutside, pickup, nil)
	if err != nil || ok {
		t.Fatalf("pickup outside: ok=%v err=%v", ok, err)
	}
}
