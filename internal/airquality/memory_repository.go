package airquality

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu          sync.RWMutex
	groups      map[string]*Group
	species     map[string]*Species
	authorities map[int]*LocalAuthority
	sites       map[string]*Site
	bands       map[bandKey]*HealthAdviceBand
}

type bandKey struct {
	band  string
	lower int
	upper int
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		groups:      make(map[string]*Group),
		species:     make(map[string]*Species),
		authorities: make(map[int]*LocalAuthority),
		sites:       make(map[string]*Site),
		bands:       make(map[bandKey]*HealthAdviceBand),
	}
}

// UpsertGroup creates or updates a group keyed by name.
func (r *InMemoryRepository) UpsertGroup(_ context.Context, group *Group) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.groups[group.Name]
	g := *group
	r.groups[group.Name] = &g
	return !exists, nil
}

// UpsertSpecies creates or updates a species keyed by code.
func (r *InMemoryRepository) UpsertSpecies(_ context.Context, species *Species) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.species[species.Code]
	s := *species
	r.species[species.Code] = &s
	return !exists, nil
}

// UpsertLocalAuthority creates or updates a local authority keyed by code.
func (r *InMemoryRepository) UpsertLocalAuthority(_ context.Context, la *LocalAuthority) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.authorities[la.Code]
	l := *la
	r.authorities[la.Code] = &l
	return !exists, nil
}

// UpsertSite creates or updates a site keyed by code.
func (r *InMemoryRepository) UpsertSite(_ context.Context, site *Site) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !ValidSiteCode(site.Code) {
		return false, ErrInvalidSiteCode
	}
	if _, ok := r.authorities[site.LocalAuthorityCode]; !ok {
		return false, ErrLocalAuthorityNotFound
	}

	_, exists := r.sites[site.Code]
	r.sites[site.Code] = copySite(site)
	return !exists, nil
}

// UpsertHealthAdviceBand creates or updates a band keyed by label and index range.
func (r *InMemoryRepository) UpsertHealthAdviceBand(_ context.Context, band *HealthAdviceBand) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := bandKey{band: band.Band, lower: band.LowerIndex, upper: band.UpperIndex}
	_, exists := r.bands[key]
	b := *band
	r.bands[key] = &b
	return !exists, nil
}

// GetLocalAuthorityByName resolves a local authority by exact name.
func (r *InMemoryRepository) GetLocalAuthorityByName(_ context.Context, name string) (*LocalAuthority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, la := range r.authorities {
		if la.Name == name {
			l := *la
			return &l, nil
		}
	}
	return nil, ErrLocalAuthorityNotFound
}

// GetLocalAuthority resolves a local authority by code.
func (r *InMemoryRepository) GetLocalAuthority(_ context.Context, code int) (*LocalAuthority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	la, ok := r.authorities[code]
	if !ok {
		return nil, ErrLocalAuthorityNotFound
	}
	l := *la
	return &l, nil
}

// GetSite resolves a site by code.
func (r *InMemoryRepository) GetSite(_ context.Context, code string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sites[code]
	if !ok {
		return nil, ErrSiteNotFound
	}
	return copySite(s), nil
}

// ListSpecies returns all species ordered by code.
func (r *InMemoryRepository) ListSpecies(_ context.Context) ([]*Species, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Species, 0, len(r.species))
	for _, s := range r.species {
		c := *s
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, nil
}

// ListLocalAuthorities returns all local authorities ordered by name.
func (r *InMemoryRepository) ListLocalAuthorities(_ context.Context) ([]*LocalAuthority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*LocalAuthority, 0, len(r.authorities))
	for _, la := range r.authorities {
		c := *la
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// ListSites returns all sites ordered by code.
func (r *InMemoryRepository) ListSites(_ context.Context) ([]*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedSites(func(*Site) bool { return true }), nil
}

// ListSitesByLocalAuthority returns the sites owned by one local authority.
func (r *InMemoryRepository) ListSitesByLocalAuthority(_ context.Context, code int) ([]*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.authorities[code]; !ok {
		return nil, ErrLocalAuthorityNotFound
	}
	return r.sortedSites(func(s *Site) bool { return s.LocalAuthorityCode == code }), nil
}

// ListGroups returns all groups ordered by name.
func (r *InMemoryRepository) ListGroups(_ context.Context) ([]*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		c := *g
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// ListHealthAdviceBands returns all bands ordered by lower index.
func (r *InMemoryRepository) ListHealthAdviceBands(_ context.Context) ([]*HealthAdviceBand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*HealthAdviceBand, 0, len(r.bands))
	for _, b := range r.bands {
		c := *b
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LowerIndex < items[j].LowerIndex })
	return items, nil
}

func (r *InMemoryRepository) sortedSites(keep func(*Site) bool) []*Site {
	items := make([]*Site, 0, len(r.sites))
	for _, s := range r.sites {
		if keep(s) {
			items = append(items, copySite(s))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items
}

// copySite creates a deep copy of a site.
func copySite(s *Site) *Site {
	if s == nil {
		return nil
	}

	siteCopy := *s
	if s.OpenedAt != nil {
		val := *s.OpenedAt
		siteCopy.OpenedAt = &val
	}
	if s.ClosedAt != nil {
		val := *s.ClosedAt
		siteCopy.ClosedAt = &val
	}
	return &siteCopy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
