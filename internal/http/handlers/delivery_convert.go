package handlers

import (
	"github.com/shopspring/decimal"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/delivery"
)

func locationToModel(l locationDTO) domain.Location {
	return domain.Location{
		GeoPoint: domain.GeoPoint{Lat: l.Lat, Lng: l.Lng},
		Address:  l.Address,
		Contact:  l.Contact,
		Pincode:  l.Pincode,
	}
}

func locationToResponse(l domain.Location) locationDTO {
	return locationDTO{
		Lat:     l.Lat,
		Lng:     l.Lng,
		Address: l.Address,
		Contact: l.Contact,
		Pincode: l.Pincode,
	}
}

func (req createDeliveryRequest) toModel() (delivery.CreateRequest, error) {
	pkg := domain.Package{
		WeightKg:        req.Package.WeightKg,
		Type:            req.Package.Type,
		Hazardous:       req.Package.Hazardous,
		SpecialHandling: req.Package.SpecialHandling,
	}
	if req.Package.DeclaredValue != "" {
		v, err := decimal.NewFromString(req.Package.DeclaredValue)
		if err != nil {
			return delivery.CreateRequest{}, err
		}
		pkg.DeclaredValue = v
	}
	return delivery.CreateRequest{
		RequesterID:   req.RequesterID,
		RequesterType: domain.RequesterType(req.RequesterType),
		Pickup:        locationToModel(req.Pickup),
		Drop:          locationToModel(req.Drop),
		Package:       pkg,
		Priority:      domain.Priority(req.Priority),
		PoolRoute:     req.PoolRoute,
		OpenBidding:   req.OpenBidding,
	}, nil
}

func deliveryToResponse(d domain.Delivery) deliveryDTO {
	dto := deliveryDTO{
		ID:                d.ID.String(),
		RequesterID:       d.RequesterID,
		RequesterType:     string(d.RequesterType),
		Pickup:            locationToResponse(d.Pickup),
		Drop:              locationToResponse(d.Drop),
		Priority:          string(d.Priority),
		Status:            string(d.Status),
		AssignedPartnerID: d.AssignedPartnerID,
		EstimatedPrice:    d.EstimatedPrice.StringFixed(2),
		MatchingAttempts:  d.MatchingAttempts,
		DistanceKm:        d.DistanceKm,
		BidWindowOpensAt:  d.BidWindowOpensAt,
		BidWindowClosesAt: d.BidWindowClosesAt,
		CancelReason:      d.CancelReason,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	dto.Package = packageDTO{
		WeightKg:        d.Package.WeightKg,
		Type:            d.Package.Type,
		Hazardous:       d.Package.Hazardous,
		SpecialHandling: d.Package.SpecialHandling,
	}
	if !d.Package.DeclaredValue.IsZero() {
		dto.Package.DeclaredValue = d.Package.DeclaredValue.StringFixed(2)
	}
	if d.FinalPrice != nil {
		s := d.FinalPrice.StringFixed(2)
		dto.FinalPrice = &s
	}
	return dto
}

func attemptsToResponse(list []domain.MatchingAttempt) []attemptDTO {
	out := make([]attemptDTO, 0, len(list))
	for _, a := range list {
		out = append(out, attemptDTO{
			PartnerID:   a.PartnerID,
			Attempt:     a.Attempt,
			NotifiedAt:  a.NotifiedAt,
			Response:    string(a.Response),
			RespondedAt: a.RespondedAt,
			Reason:      a.Reason,
		})
	}
	return out
}
