// Package londonair provides a client for the London Air API together with
// the normalization of its responses.
package londonair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the London Air API.
	DefaultBaseURL = "https://api.erg.kcl.ac.uk/AirQuality"

	// ProviderName identifies this provider.
	ProviderName = "londonair"

	// DefaultGroup is the site group covering all of London.
	DefaultGroup = "London"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestRecorder receives one observation per upstream request.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// Config holds configuration for the London Air client.
type Config struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Proxy is an optional forward proxy ("host:port" or URL). Ignored when
	// HTTPClient is set.
	Proxy string

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// HTTPClient overrides the default resilient client.
	HTTPClient HTTPDoer

	// Registry receives the default resilient client for health reporting.
	Registry *resilience.Registry

	// Metrics, when set, records every request.
	Metrics RequestRecorder

	Logger zerolog.Logger
}

// Client is a London Air API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	metrics    RequestRecorder
	log        zerolog.Logger
	normalizer *Normalizer
	rows       *RowBuilder
}

// NewClient creates a new London Air client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Proxy != "" {
			if _, err := resilience.ParseProxy(cfg.Proxy); err != nil {
				return nil, err
			}
		}
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:           ProviderName,
			Timeout:        timeout,
			DisableRetries: true,
			Proxy:          cfg.Proxy,
			Registry:       cfg.Registry,
		})
	}

	log := cfg.Logger.With().Str("provider", ProviderName).Logger()
	normalizer := NewNormalizer(log)

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		log:        log,
		normalizer: normalizer,
		rows:       NewRowBuilder(normalizer),
	}, nil
}

// Normalizer returns the normalizer shared by every fetch of this client.
func (c *Client) Normalizer() *Normalizer {
	return c.normalizer
}

// Fetch issues a GET for path and returns the decoded JSON. ok is false when
// the upstream could not be reached, answered with a non-200 status, or sent
// a body that is not JSON. Those failures are logged, never returned.
func (c *Client) Fetch(ctx context.Context, path string) (body any, ok bool) {
	start := time.Now()
	body, err := c.fetch(ctx, path)
	if c.metrics != nil {
		c.metrics.RecordRequest(ProviderName, operationName(path), time.Since(start), err)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("no response from London Air API server")
		return nil, false
	}
	return body, true
}

var errEmptyBody = errors.New("empty response body")

func (c *Client) fetch(ctx context.Context, path string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body == nil {
		return nil, errEmptyBody
	}
	return body, nil
}

// operationName keeps metric cardinality low by dropping path parameters.
func operationName(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		if strings.Contains(p, "=") || p == "Json" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

// FetchGroups retrieves the site group catalog.
func (c *Client) FetchGroups(ctx context.Context) ([]airquality.Group, error) {
	body, ok := c.Fetch(ctx, GroupsPath())
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "Groups", "Group")
	groups := make([]airquality.Group, 0, len(records))
	for _, r := range records {
		name := r.String("GroupName")
		if name == "" {
			c.normalizer.Report().Msg("group without a name")
			continue
		}
		groups = append(groups, airquality.Group{
			Name:        name,
			Description: r.String("Description"),
			Link:        r.String("WebsiteURL"),
		})
	}
	return groups, nil
}

// FetchLocalAuthorities retrieves the local authorities monitored by a group.
func (c *Client) FetchLocalAuthorities(ctx context.Context, group string) ([]airquality.LocalAuthority, error) {
	body, ok := c.Fetch(ctx, LocalAuthoritiesPath(group))
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "LocalAuthorities", "LocalAuthority")
	items := make([]airquality.LocalAuthority, 0, len(records))
	for _, r := range records {
		code, ok := r.Int("LocalAuthorityCode")
		if !ok {
			c.normalizer.Report().
				Str("local_authority", r.String("LocalAuthorityName")).
				Msg("local authority without a numeric code")
			continue
		}
		la := airquality.LocalAuthority{
			Code: code,
			Name: r.String("LocalAuthorityName"),
		}
		la.Lat, _ = r.Float("LaCentreLatitude")
		la.Lon, _ = r.Float("LaCentreLongitude")
		items = append(items, la)
	}
	return items, nil
}

// FetchSpecies retrieves the species catalog.
func (c *Client) FetchSpecies(ctx context.Context) ([]airquality.Species, error) {
	body, ok := c.Fetch(ctx, SpeciesPath())
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "AirQualitySpecies", "Species")
	items := make([]airquality.Species, 0, len(records))
	for _, r := range records {
		code := r.String("SpeciesCode")
		if code == "" {
			c.normalizer.Report().Msg("species without a code")
			continue
		}
		items = append(items, airquality.Species{
			Code:         code,
			Name:         r.String("SpeciesName"),
			Description:  r.String("Description"),
			HealthEffect: r.String("HealthEffect"),
			Link:         r.String("Link"),
		})
	}
	return items, nil
}

// SiteListing is a site as listed upstream, before its local authority is resolved.
type SiteListing struct {
	Code               string
	Name               string
	Type               string
	LocalAuthorityName string
	Link               string
	Lat                float64
	Lon                float64
	HasCoordinates     bool
	OpenedAt           *time.Time
	ClosedAt           *time.Time

	// Measuring holds species whose measurement has not finished.
	Measuring airquality.PollutantSet
}

// FetchSites retrieves a group's sites with the species each one measures.
func (c *Client) FetchSites(ctx context.Context, group string) ([]SiteListing, error) {
	body, ok := c.Fetch(ctx, SitesPath(group))
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "Sites", "Site")
	items := make([]SiteListing, 0, len(records))
	for _, r := range records {
		if site, ok := c.siteListing(r); ok {
			items = append(items, site)
		}
	}
	return items, nil
}

func (c *Client) siteListing(r Record) (SiteListing, bool) {
	site := SiteListing{
		Code:               r.String("SiteCode"),
		Name:               r.String("SiteName"),
		Type:               r.String("SiteType"),
		LocalAuthorityName: r.String("LocalAuthorityName"),
		Link:               r.String("SiteLink"),
	}
	if site.Code == "" {
		c.normalizer.Report().Str("site_name", site.Name).Msg("site without a code")
		return SiteListing{}, false
	}

	lat, latOK := r.Float("Latitude")
	lon, lonOK := r.Float("Longitude")
	site.Lat, site.Lon = lat, lon
	site.HasCoordinates = latOK && lonOK

	var err error
	if site.OpenedAt, err = r.Time("DateOpened"); err != nil {
		c.normalizer.Report().Err(err).Str("site_code", site.Code).Msg("unparsable opening date")
		site.OpenedAt = nil
	}
	if site.ClosedAt, err = r.Time("DateClosed"); err != nil {
		c.normalizer.Report().Err(err).Str("site_code", site.Code).Msg("unparsable closing date")
		site.ClosedAt = nil
	}

	species, _ := c.normalizer.Many(r.Field("Species"), "Site["+site.Code+"].Species")
	for _, sp := range species {
		p, known := airquality.ParsePollutant(sp.String("SpeciesCode"))
		if !known {
			continue
		}
		if sp.String("DateMeasurementFinished") == "" {
			site.Measuring = site.Measuring.With(p)
		}
	}

	return site, true
}

// HealthAdviceEntry is one row of the upstream health advice list. The list
// alternates at-risk and general advice for each band.
type HealthAdviceEntry struct {
	Band       string
	LowerIndex int
	UpperIndex int
	Advice     string
}

// FetchHealthAdvice retrieves the index health advice entries in upstream order.
func (c *Client) FetchHealthAdvice(ctx context.Context) ([]HealthAdviceEntry, error) {
	body, ok := c.Fetch(ctx, HealthAdvicePath())
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "AirQualityIndexHealthAdvice", "AirQualityBanding")
	items := make([]HealthAdviceEntry, 0, len(records))
	for _, r := range records {
		lower, lowerOK := r.Int("LowerIndex")
		upper, upperOK := r.Int("UpperIndex")
		if !lowerOK || !upperOK {
			c.normalizer.Report().
				Str("band", r.String("AirQualityBanding")).
				Msg("health advice without an index range")
			continue
		}
		items = append(items, HealthAdviceEntry{
			Band:       r.String("AirQualityBanding"),
			LowerIndex: lower,
			UpperIndex: upper,
			Advice:     r.String("HealthAdvice"),
		})
	}
	return items, nil
}

// FetchCurrentReadings retrieves the latest hourly readings for a group.
func (c *Client) FetchCurrentReadings(ctx context.Context, group string) ([]airquality.Reading, error) {
	body, ok := c.Fetch(ctx, CurrentIndexPath(group))
	if !ok {
		return nil, airquality.ErrNoData
	}
	return c.rows.Build(body), nil
}

// FetchReadingsNear retrieves the latest hourly readings around a point.
func (c *Client) FetchReadingsNear(ctx context.Context, lat, lon float64) ([]airquality.Reading, error) {
	body, ok := c.Fetch(ctx, IndexNearPath(lat, lon))
	if !ok {
		return nil, airquality.ErrNoData
	}
	return c.rows.Build(body), nil
}

// FetchSiteHistory retrieves raw measurements for a site between two dates.
func (c *Client) FetchSiteHistory(ctx context.Context, siteCode string, start, end time.Time) ([]airquality.SiteMeasurement, error) {
	body, ok := c.Fetch(ctx, SiteHistoryPath(siteCode, start, end))
	if !ok {
		return nil, airquality.ErrNoData
	}

	records := c.normalizer.Records(body, "AirQualityData", "Data")
	items := make([]airquality.SiteMeasurement, 0, len(records))
	for _, r := range records {
		code := r.String("SpeciesCode")
		pollutant, known := airquality.ParsePollutant(code)
		if !known {
			c.normalizer.Report().
				Str("site_code", siteCode).
				Str("species_code", code).
				Msg("unrecognised species code")
			continue
		}

		at, err := ParseTimestamp(r.String("MeasurementDateGMT"))
		if err != nil {
			c.normalizer.Report().Err(err).Str("site_code", siteCode).Msg("unparsable measurement date")
			continue
		}

		m := airquality.SiteMeasurement{
			SiteCode:   siteCode,
			Pollutant:  pollutant,
			MeasuredAt: at,
		}
		if v, ok := r.Float("Value"); ok {
			m.Value = &v
		}
		items = append(items, m)
	}
	return items, nil
}
