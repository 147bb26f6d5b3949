//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/repository"
)

type PartnerRepositorySuite struct {
	suite.Suite
	pool *pgxpool.Pool
	repo *repository.PartnerRepo
}

func (s *PartnerRepositorySuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.repo = repository.NewPartnerRepo(tcPool)
}

func (s *PartnerRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE partners RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func (s *PartnerRepositorySuite) TestCreateAndGet() {
	ctx := context.Background()

	in := &domain.Partner{
		Name:          "Ravi",
		Phone:         "+919876543210",
		Online:        true,
		Rating:        4.7,
		MaxConcurrent: 3,
		ServiceArea: domain.ServiceArea{
			Kind:     domain.AreaCircle,
			Center:   domain.GeoPoint{Lat: 12.9716, Lng: 77.5946},
			RadiusKm: 10,
		},
	}

	id, err := s.repo.Create(ctx, in)
	s.Require().NoError(err)

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(got)

	s.Equal(id, got.ID)
	s.Equal(in.Name, got.Name)
	s.Equal(in.Phone, got.Phone)
	s.Equal(in.Online, got.Online)
	s.Equal(in.Rating, got.Rating)
	s.Equal(in.MaxConcurrent, got.MaxConcurrent)
	s.Equal(0, got.ActiveDeliveries)
	s.Equal(int64(1), got.Version)
	s.Nil(got.LastLocation)
	s.Nil(got.LastSeenAt)
	s.Equal(in.ServiceArea, got.ServiceArea)
}

func (s *PartnerRepositorySuite) TestCreate_DuplicatePhone() {
	ctx := context.Background()

	phone := "+919876543210"
	_, err := s.repo.Create(ctx, &domain.Partner{Name: "Ravi", Phone: phone, MaxConcurrent: 1})
	s.Require().NoError(err)

	_, err = s.repo.Create(ctx, &domain.Partner{Name: "Raj", Phone: phone, MaxConcurrent: 1})
	s.ErrorIs(err, apperr.ErrConflict, "expected conflict for duplicate phone")
}

func (s *PartnerRepositorySuite) TestGetNotFound() {
	ctx := context.Background()

	got, err := s.repo.Get(ctx, 9999)
	s.Require().NoError(err)
	s.Require().Nil(got)
}

func (s *PartnerRepositorySuite) TestListWithLimitOffset() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.repo.Create(ctx, &domain.Partner{
			Name:          fmt.Sprintf("P%d", i+1),
			Phone:         fmt.Sprintf("+91987654321%d", i),
			MaxConcurrent: 1,
		})
		s.Require().NoError(err)
	}

	limit := 2
	offset := 1

	list, err := s.repo.List(ctx, &limit, &offset)
	s.Require().NoError(err)

	s.Len(list, 2)
	s.True(list[0].ID < list[1].ID)
}

func (s *PartnerRepositorySuite) TestUpdatePartial() {
	ctx := context.Background()

	id, err := s.repo.Create(ctx, &domain.Partner{
		Name:          "Ravi",
		Phone:         "+919876543210",
		MaxConcurrent: 1,
		ServiceArea: domain.ServiceArea{
			Kind:     domain.AreaCircle,
			Center:   domain.GeoPoint{Lat: 12.9716, Lng: 77.5946},
			RadiusKm: 5,
		},
	})
	s.Require().NoError(err)

	newMax := 4
	newArea := domain.ServiceArea{Kind: domain.AreaPincodes, Pincodes: []string{"560001", "560002"}}
	ok, err := s.repo.UpdatePartial(ctx, domain.PartialPartnerUpdate{
		ID:            id,
		MaxConcurrent: &newMax,
		ServiceArea:   &newArea,
	})
	s.Require().NoError(err)
	s.True(ok)

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)

	s.Equal("Ravi", got.Name)
	s.Equal(newMax, got.MaxConcurrent)
	s.Equal(newArea, got.ServiceArea)
	s.Equal(int64(2), got.Version, "partial update must bump the version")
}

func (s *PartnerRepositorySuite) TestUpdatePartial_DuplicatePhone() {
	ctx := context.Background()

	phone1 := "+919876543210"
	_, err := s.repo.Create(ctx, &domain.Partner{Name: "Ravi", Phone: phone1, MaxConcurrent: 1})
	s.Require().NoError(err)

	id2, err := s.repo.Create(ctx, &domain.Partner{Name: "Raj", Phone: "+919876543211", MaxConcurrent: 1})
	s.Require().NoError(err)

	ok, err := s.repo.UpdatePartial(ctx, domain.PartialPartnerUpdate{ID: id2, Phone: &phone1})
	s.False(ok, "row must not be marked as updated on duplicate")
	s.ErrorIs(err, apperr.ErrConflict, "expected apperr.ErrConflict on duplicate phone")
}

func (s *PartnerRepositorySuite) TestUpdatePartial_MissingPartner() {
	ctx := context.Background()

	newName := "Ghost"
	ok, err := s.repo.UpdatePartial(ctx, domain.PartialPartnerUpdate{ID: 424242, Name: &newName})
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PartnerRepositorySuite) TestHeartbeat() {
	ctx := context.Background()

	id, err := s.repo.Create(ctx, &domain.Partner{Name: "Ravi", Phone: "+919876543210", MaxConcurrent: 1})
	s.Require().NoError(err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	loc := domain.GeoPoint{Lat: 12.9352, Lng: 77.6245}

	ok, err := s.repo.Heartbeat(ctx, id, loc, at)
	s.Require().NoError(err)
	s.True(ok)

	got, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(got.LastLocation)
	s.Equal(loc, *got.LastLocation)
	s.Require().NotNil(got.LastSeenAt)
	s.WithinDuration(at, *got.LastSeenAt, time.Second)
}

func (s *PartnerRepositorySuite) TestHeartbeat_UnknownPartner() {
	ctx := context.Background()

	ok, err := s.repo.Heartbeat(ctx, 424242, domain.GeoPoint{Lat: 1, Lng: 2}, time.Now())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PartnerRepositorySuite) TestGet_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := s.repo.Get(ctx, 1)
	s.Nil(got)
	s.Error(err)
}

func (s *PartnerRepositorySuite) TestCreate_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.repo.Create(ctx, &domain.Partner{
		Name:          "Ravi",
		Phone:         "+919876543219",
		MaxConcurrent: 1,
	})
	s.Error(err)
	s.ErrorIs(err, context.Canceled)
}

func (s *PartnerRepositorySuite) TestList_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	list, err := s.repo.List(ctx, nil, nil)
	s.Nil(list)
	s.Error(err)
	s.ErrorIs(err, context.Canceled)
}

func TestPartnerRepositorySuite(t *testing.T) {
	suite.Run(t, new(PartnerRepositorySuite))
}
