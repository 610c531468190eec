package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"geochat-service/internal/config"
	"geochat-service/internal/geo"
	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/observability"
	"geochat-service/internal/repositories"
)

// ProximityService finds users within a radius and maintains locations.
type ProximityService struct {
	users repositories.UserRepository
	cfg   config.GeoConfig
}

// NewProximityService builds a ProximityService.
func NewProximityService(users repositories.UserRepository, cfg config.GeoConfig) *ProximityService {
	return &ProximityService{users: users, cfg: cfg}
}

// DefaultRadiusKm is the radius used when the caller does not pass one.
func (s *ProximityService) DefaultRadiusKm() float64 {
	return s.cfg.DefaultRadiusKm
}

// FindNearby returns the eligible users within radiusKm of userID, nearest first.
// Ties on distance are broken by id. Distances are not rounded.
func (s *ProximityService) FindNearby(ctx context.Context, userID int64, radiusKm float64) ([]models.NearbyUser, error) {
	ctx, span := observability.StartSpan(ctx, "geo.nearby",
		attribute.Int64("user.id", userID), attribute.Float64("geo.radius_km", radiusKm))
	defer span.End()

	if !(radiusKm > 0) || math.IsInf(radiusKm, 1) {
		return nil, invalid("radius", "must be a positive number")
	}
	if s.cfg.MaxRadiusKm > 0 && radiusKm > s.cfg.MaxRadiusKm {
		return nil, invalid("radius", "must be at most "+strconv.FormatFloat(s.cfg.MaxRadiusKm, 'f', -1, 64)+" km")
	}

	ref, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("load user", err)
	}
	if !ref.HasLocation() {
		return nil, ErrLocationNotSet
	}

	candidates, err := s.users.ListEligibleExcept(ctx, userID)
	if err != nil {
		return nil, persistence("list eligible users", err)
	}

	nearby := make([]models.NearbyUser, 0, len(candidates))
	for _, c := range candidates {
		d := geo.DistanceKm(*ref.Latitude, *ref.Longitude, c.Latitude, c.Longitude)
		if d <= radiusKm {
			c.DistanceKm = d
			nearby = append(nearby, c)
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm == nearby[j].DistanceKm {
			return nearby[i].ID < nearby[j].ID
		}
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})

	observability.IncNearbyQuery()
	span.SetAttributes(attribute.Int("geo.results", len(nearby)))
	logging.Ctx(ctx).Debug().
		Int64(logging.FieldUserID, userID).
		Float64("radius_km", radiusKm).
		Int("candidates", len(candidates)).
		Int("results", len(nearby)).
		Msg("nearby search")
	return nearby, nil
}

// UpdateLocation validates and stores the user's coordinates.
func (s *ProximityService) UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) error {
	if !geo.ValidLatitude(latitude) {
		return invalid("latitude", "must be between -90 and 90")
	}
	if !geo.ValidLongitude(longitude) {
		return invalid("longitude", "must be between -180 and 180")
	}

	if err := s.users.UpdateLocation(ctx, userID, latitude, longitude); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrNotFound
		}
		return persistence("update location", err)
	}
	return nil
}
