package airquality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidRange is returned for a history request whose dates are out of order or too far apart.
var ErrInvalidRange = errors.New("invalid date range")

// DefaultMaxHistoryRange bounds a single site history request.
const DefaultMaxHistoryRange = 31 * 24 * time.Hour

// ReadingsProvider supplies live readings. Implementations return ErrNoData
// when the upstream has nothing to offer.
type ReadingsProvider interface {
	// FetchCurrentReadings returns the latest reading per site of a group.
	FetchCurrentReadings(ctx context.Context, group string) ([]Reading, error)

	// FetchReadingsNear returns the latest readings around a point.
	FetchReadingsNear(ctx context.Context, lat, lon float64) ([]Reading, error)

	// FetchSiteHistory returns raw measurements for a site between two dates.
	FetchSiteHistory(ctx context.Context, siteCode string, start, end time.Time) ([]SiteMeasurement, error)
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Repository holds the populated reference data.
	Repository Repository

	// Provider supplies live readings.
	Provider ReadingsProvider

	// Group is the upstream site group whose readings are shown (default: London).
	Group string

	// MaxHistoryRange bounds site history requests (default: 31 days).
	MaxHistoryRange time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service is the read path: reference data from the store, readings fresh
// from the provider on every call.
type Service struct {
	repo            Repository
	provider        ReadingsProvider
	group           string
	maxHistoryRange time.Duration
	logger          zerolog.Logger
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	group := cfg.Group
	if group == "" {
		group = "London"
	}

	maxRange := cfg.MaxHistoryRange
	if maxRange == 0 {
		maxRange = DefaultMaxHistoryRange
	}

	return &Service{
		repo:            cfg.Repository,
		provider:        cfg.Provider,
		group:           group,
		maxHistoryRange: maxRange,
		logger:          cfg.Logger,
	}
}

// PageData is everything the map page renders.
type PageData struct {
	Species          []*Species
	LocalAuthorities []*LocalAuthority
	Sites            []*Site
	HealthAdvice     []*HealthAdviceBand

	// Readings is empty when ReadingsAvailable is false.
	Readings          []Reading
	ReadingsAvailable bool
	MaxIndex          int
}

// GetPageData loads the reference data and the current readings.
// Missing readings do not fail the page.
func (s *Service) GetPageData(ctx context.Context) (*PageData, error) {
	data := &PageData{MaxIndex: MaxIndex}

	var err error
	if data.Species, err = s.repo.ListSpecies(ctx); err != nil {
		return nil, fmt.Errorf("list species: %w", err)
	}
	if data.LocalAuthorities, err = s.repo.ListLocalAuthorities(ctx); err != nil {
		return nil, fmt.Errorf("list local authorities: %w", err)
	}
	if data.Sites, err = s.repo.ListSites(ctx); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	if data.HealthAdvice, err = s.repo.ListHealthAdviceBands(ctx); err != nil {
		return nil, fmt.Errorf("list health advice: %w", err)
	}

	readings, err := s.CurrentReadings(ctx)
	switch {
	case err == nil:
		data.Readings = readings
		data.ReadingsAvailable = true
	case errors.Is(err, ErrNoData):
		data.Readings = []Reading{}
	default:
		return nil, fmt.Errorf("current readings: %w", err)
	}

	return data, nil
}

// ListSpecies returns the species catalog.
func (s *Service) ListSpecies(ctx context.Context) ([]*Species, error) {
	return s.repo.ListSpecies(ctx)
}

// ListLocalAuthorities returns all local authorities.
func (s *Service) ListLocalAuthorities(ctx context.Context) ([]*LocalAuthority, error) {
	return s.repo.ListLocalAuthorities(ctx)
}

// ListSites returns all sites.
func (s *Service) ListSites(ctx context.Context) ([]*Site, error) {
	return s.repo.ListSites(ctx)
}

// ListSitesInLocalAuthority returns the sites of one local authority, or
// ErrLocalAuthorityNotFound for an unknown code.
func (s *Service) ListSitesInLocalAuthority(ctx context.Context, code int) ([]*Site, error) {
	if _, err := s.repo.GetLocalAuthority(ctx, code); err != nil {
		return nil, err
	}
	return s.repo.ListSitesByLocalAuthority(ctx, code)
}

// ListHealthAdvice returns the health advice bands ordered by index.
func (s *Service) ListHealthAdvice(ctx context.Context) ([]*HealthAdviceBand, error) {
	return s.repo.ListHealthAdviceBands(ctx)
}

// HealthAdviceFor returns the band containing index.
func (s *Service) HealthAdviceFor(ctx context.Context, index int) (*HealthAdviceBand, error) {
	bands, err := s.repo.ListHealthAdviceBands(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bands {
		if b.Contains(index) {
			return b, nil
		}
	}
	return nil, ErrNoData
}

// CurrentReadings returns the latest readings for the configured group.
func (s *Service) CurrentReadings(ctx context.Context) ([]Reading, error) {
	readings, err := s.provider.FetchCurrentReadings(ctx, s.group)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			s.logger.Info().Str("group", s.group).Msg("no current readings available")
		}
		return nil, err
	}
	return readings, nil
}

// ReadingsNear returns the latest readings around a point, nearest site first.
func (s *Service) ReadingsNear(ctx context.Context, lat, lon float64) ([]Reading, error) {
	readings, err := s.provider.FetchReadingsNear(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	SortByDistance(readings, lat, lon)
	return readings, nil
}

// SiteHistory returns raw measurements for a known site.
func (s *Service) SiteHistory(ctx context.Context, siteCode string, start, end time.Time) ([]SiteMeasurement, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	if end.Sub(start) > s.maxHistoryRange {
		return nil, fmt.Errorf("%w: range exceeds %s", ErrInvalidRange, s.maxHistoryRange)
	}

	if _, err := s.repo.GetSite(ctx, siteCode); err != nil {
		return nil, err
	}

	return s.provider.FetchSiteHistory(ctx, siteCode, start, end)
}
