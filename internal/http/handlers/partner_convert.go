package handlers

import "service-dispatch/internal/domain"

func (req createPartnerRequest) toModel() *domain.Partner {
	return &domain.Partner{
		Name:          req.Name,
		Phone:         req.Phone,
		Online:        req.Online,
		Rating:        req.Rating,
		MaxConcurrent: req.MaxConcurrent,
		ServiceArea:   req.ServiceArea,
	}
}

func (req updatePartnerRequest) toModel() domain.PartialPartnerUpdate {
	return domain.PartialPartnerUpdate{
		ID:            req.ID,
		Name:          req.Name,
		Phone:         req.Phone,
		Online:        req.Online,
		MaxConcurrent: req.MaxConcurrent,
		ServiceArea:   req.ServiceArea,
	}
}

func partnerToResponse(p domain.Partner) partnerDTO {
	dto := partnerDTO{
		ID:               p.ID,
		Name:             p.Name,
		Phone:            p.Phone,
		Online:           p.Online,
		Rating:           p.Rating,
		ActiveDeliveries: p.ActiveDeliveries,
		MaxConcurrent:    p.MaxConcurrent,
		LastSeenAt:       p.LastSeenAt,
		ServiceArea:      p.ServiceArea,
	}
	if p.LastLocation != nil {
		dto.LastLocation = &geoPointDTO{Lat: p.LastLocation.Lat, Lng: p.LastLocation.Lng}
	}
	return dto
}

func partnersToResponse(list []domain.Partner) []partnerDTO {
	out := make([]partnerDTO, 0, len(list))
	for _, p := range list {
		out = append(out, partnerToResponse(p))
	}
	return out
}
