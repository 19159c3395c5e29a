package airquality

import "context"

// Repository persists the reference entities written by the populator.
// Every Upsert is keyed by the entity's natural identity and reports whether
// a new record was created.
type Repository interface {
	// UpsertGroup creates or updates a group keyed by name.
	UpsertGroup(ctx context.Context, group *Group) (created bool, err error)

	// UpsertSpecies creates or updates a species keyed by code.
	UpsertSpecies(ctx context.Context, species *Species) (created bool, err error)

	// UpsertLocalAuthority creates or updates a local authority keyed by code.
	UpsertLocalAuthority(ctx context.Context, la *LocalAuthority) (created bool, err error)

	// UpsertSite creates or updates a site keyed by code.
	UpsertSite(ctx context.Context, site *Site) (created bool, err error)

	// UpsertHealthAdviceBand creates or updates a band keyed by its label and index range.
	UpsertHealthAdviceBand(ctx context.Context, band *HealthAdviceBand) (created bool, err error)

	// GetLocalAuthorityByName resolves a local authority by exact name.
	GetLocalAuthorityByName(ctx context.Context, name string) (*LocalAuthority, error)

	// GetLocalAuthority resolves a local authority by code.
	GetLocalAuthority(ctx context.Context, code int) (*LocalAuthority, error)

	// GetSite resolves a site by code.
	GetSite(ctx context.Context, code string) (*Site, error)

	// ListGroups returns all groups ordered by name.
	ListGroups(ctx context.Context) ([]*Group, error)

	// ListSpecies returns all species ordered by code.
	ListSpecies(ctx context.Context) ([]*Species, error)

	// ListLocalAuthorities returns all local authorities ordered by name.
	ListLocalAuthorities(ctx context.Context) ([]*LocalAuthority, error)

	// ListSites returns all sites ordered by code.
	ListSites(ctx context.Context) ([]*Site, error)

	// ListSitesByLocalAuthority returns the sites owned by one local authority.
	ListSitesByLocalAuthority(ctx context.Context, code int) ([]*Site, error)

	// ListHealthAdviceBands returns all bands ordered by lower index.
	ListHealthAdviceBands(ctx context.Context) ([]*HealthAdviceBand, error)
}
