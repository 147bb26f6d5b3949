package domain

// ServiceAreaKind selects how a partner's coverage is defined.
type ServiceAreaKind string

// List of service area kinds
const (
	AreaCircle   ServiceAreaKind = "circle"
	AreaPincodes ServiceAreaKind = "pincodes"
	AreaPolygon  ServiceAreaKind = "polygon"
)

// ServiceArea is a partner's coverage definition. Exactly one of the shape
// field groups is meaningful for a given Kind. AllowDropOutside relaxes the
// drop-side check: when set, only the pickup must be covered.
type ServiceArea struct {
	Kind             ServiceAreaKind `json:"kind"`
	Center           GeoPoint        `json:"center,omitempty"`
	RadiusKm         float64         `json:"radius_km,omitempty"`
	Pincodes         []string        `json:"pincodes,omitempty"`
	Polygon          []GeoPoint      `json:"polygon,omitempty"`
	AllowDropOutside bool            `json:"allow_drop_outside,omitempty"`
}

var allowedAreaKinds = [...]ServiceAreaKind{AreaCircle, AreaPincodes, AreaPolygon}

// Valid checks if the ServiceAreaKind is valid.
func (k ServiceAreaKind) Valid() bool {
	for _, v := range allowedAreaKinds {
		if k == v {
			return true
		}
	}
	return false
}
