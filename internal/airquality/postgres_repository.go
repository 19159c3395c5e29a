package airquality

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL reference data repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const siteColumns = `code, name, site_type, local_authority_code, link, lat, lon, opened_at, closed_at,
	co_active, no2_active, so2_active, o3_active, pm10_active, pm25_active`

// UpsertGroup creates or updates a group keyed by name.
func (r *PostgresRepository) UpsertGroup(ctx context.Context, group *Group) (bool, error) {
	query := `
		INSERT INTO groups (name, description, link)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			link = EXCLUDED.link
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query, group.Name, group.Description, group.Link).Scan(&inserted)
	return inserted, err
}

// UpsertSpecies creates or updates a species keyed by code.
func (r *PostgresRepository) UpsertSpecies(ctx context.Context, species *Species) (bool, error) {
	query := `
		INSERT INTO species (code, name, description, health_effect, link)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			health_effect = EXCLUDED.health_effect,
			link = EXCLUDED.link
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		species.Code,
		species.Name,
		species.Description,
		species.HealthEffect,
		species.Link,
	).Scan(&inserted)
	return inserted, err
}

// UpsertLocalAuthority creates or updates a local authority keyed by code.
func (r *PostgresRepository) UpsertLocalAuthority(ctx context.Context, la *LocalAuthority) (bool, error) {
	query := `
		INSERT INTO local_authorities (code, name, lat, lon, link)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			link = EXCLUDED.link
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query, la.Code, la.Name, la.Lat, la.Lon, la.Link).Scan(&inserted)
	return inserted, err
}

// UpsertSite creates or updates a site keyed by code.
func (r *PostgresRepository) UpsertSite(ctx context.Context, site *Site) (bool, error) {
	query := `
		INSERT INTO sites (` + siteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			site_type = EXCLUDED.site_type,
			local_authority_code = EXCLUDED.local_authority_code,
			link = EXCLUDED.link,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			opened_at = EXCLUDED.opened_at,
			closed_at = EXCLUDED.closed_at,
			co_active = EXCLUDED.co_active,
			no2_active = EXCLUDED.no2_active,
			so2_active = EXCLUDED.so2_active,
			o3_active = EXCLUDED.o3_active,
			pm10_active = EXCLUDED.pm10_active,
			pm25_active = EXCLUDED.pm25_active
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		site.Code,
		site.Name,
		site.Type,
		site.LocalAuthorityCode,
		site.Link,
		site.Lat,
		site.Lon,
		site.OpenedAt,
		site.ClosedAt,
		site.Measuring.Has(PollutantCO),
		site.Measuring.Has(PollutantNO2),
		site.Measuring.Has(PollutantSO2),
		site.Measuring.Has(PollutantO3),
		site.Measuring.Has(PollutantPM10),
		site.Measuring.Has(PollutantPM25),
	).Scan(&inserted)
	return inserted, err
}

// UpsertHealthAdviceBand creates or updates a band keyed by label and index range.
func (r *PostgresRepository) UpsertHealthAdviceBand(ctx context.Context, band *HealthAdviceBand) (bool, error) {
	query := `
		INSERT INTO health_advice_bands (band, lower_index, upper_index, general_advice, at_risk_advice)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (band, lower_index, upper_index) DO UPDATE SET
			general_advice = EXCLUDED.general_advice,
			at_risk_advice = EXCLUDED.at_risk_advice
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		band.Band,
		band.LowerIndex,
		band.UpperIndex,
		band.GeneralAdvice,
		band.AtRiskAdvice,
	).Scan(&inserted)
	return inserted, err
}

// GetLocalAuthorityByName resolves a local authority by exact name.
func (r *PostgresRepository) GetLocalAuthorityByName(ctx context.Context, name string) (*LocalAuthority, error) {
	query := `SELECT code, name, lat, lon, link FROM local_authorities WHERE name = $1 ORDER BY code LIMIT 1`
	return r.scanLocalAuthority(ctx, query, name)
}

// GetLocalAuthority resolves a local authority by code.
func (r *PostgresRepository) GetLocalAuthority(ctx context.Context, code int) (*LocalAuthority, error) {
	query := `SELECT code, name, lat, lon, link FROM local_authorities WHERE code = $1`
	return r.scanLocalAuthority(ctx, query, code)
}

func (r *PostgresRepository) scanLocalAuthority(ctx context.Context, query string, args ...interface{}) (*LocalAuthority, error) {
	var la LocalAuthority
	err := r.pool.QueryRow(ctx, query, args...).Scan(&la.Code, &la.Name, &la.Lat, &la.Lon, &la.Link)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocalAuthorityNotFound
		}
		return nil, err
	}
	return &la, nil
}

// GetSite resolves a site by code.
func (r *PostgresRepository) GetSite(ctx context.Context, code string) (*Site, error) {
	sites, err := r.querySites(ctx, `SELECT `+siteColumns+` FROM sites WHERE code = $1`, code)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, ErrSiteNotFound
	}
	return sites[0], nil
}

// ListSpecies returns all species ordered by code.
func (r *PostgresRepository) ListSpecies(ctx context.Context) ([]*Species, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, name, description, health_effect, link
		FROM species
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Species
	for rows.Next() {
		var s Species
		if err := rows.Scan(&s.Code, &s.Name, &s.Description, &s.HealthEffect, &s.Link); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// ListGroups returns all groups ordered by name.
func (r *PostgresRepository) ListGroups(ctx context.Context) ([]*Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, link FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Name, &g.Description, &g.Link); err != nil {
			return nil, err
		}
		items = append(items, &g)
	}
	return items, rows.Err()
}

// ListLocalAuthorities returns all local authorities ordered by name.
func (r *PostgresRepository) ListLocalAuthorities(ctx context.Context) ([]*LocalAuthority, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, lat, lon, link FROM local_authorities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LocalAuthority
	for rows.Next() {
		var la LocalAuthority
		if err := rows.Scan(&la.Code, &la.Name, &la.Lat, &la.Lon, &la.Link); err != nil {
			return nil, err
		}
		items = append(items, &la)
	}
	return items, rows.Err()
}

// ListSites returns all sites ordered by code.
func (r *PostgresRepository) ListSites(ctx context.Context) ([]*Site, error) {
	return r.querySites(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY code`)
}

// ListSitesByLocalAuthority returns the sites owned by one local authority.
func (r *PostgresRepository) ListSitesByLocalAuthority(ctx context.Context, code int) ([]*Site, error) {
	if _, err := r.GetLocalAuthority(ctx, code); err != nil {
		return nil, err
	}
	return r.querySites(ctx, `SELECT `+siteColumns+` FROM sites WHERE local_authority_code = $1 ORDER BY code`, code)
}

func (r *PostgresRepository) querySites(ctx context.Context, query string, args ...interface{}) ([]*Site, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Site
	for rows.Next() {
		var s Site
		var co, no2, so2, o3, pm10, pm25 bool
		err := rows.Scan(
			&s.Code,
			&s.Name,
			&s.Type,
			&s.LocalAuthorityCode,
			&s.Link,
			&s.Lat,
			&s.Lon,
			&s.OpenedAt,
			&s.ClosedAt,
			&co, &no2, &so2, &o3, &pm10, &pm25,
		)
		if err != nil {
			return nil, err
		}
		flags := map[Pollutant]bool{
			PollutantCO:   co,
			PollutantNO2:  no2,
			PollutantSO2:  so2,
			PollutantO3:   o3,
			PollutantPM10: pm10,
			PollutantPM25: pm25,
		}
		for p, on := range flags {
			if on {
				s.Measuring = s.Measuring.With(p)
			}
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// ListHealthAdviceBands returns all bands ordered by lower index.
func (r *PostgresRepository) ListHealthAdviceBands(ctx context.Context) ([]*HealthAdviceBand, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT band, lower_index, upper_index, general_advice, at_risk_advice
		FROM health_advice_bands
		ORDER BY lower_index
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*HealthAdviceBand
	for rows.Next() {
		var b HealthAdviceBand
		if err := rows.Scan(&b.Band, &b.LowerIndex, &b.UpperIndex, &b.GeneralAdvice, &b.AtRiskAdvice); err != nil {
			return nil, err
		}
		items = append(items, &b)
	}
	return items, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
