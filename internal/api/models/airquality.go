// Package models provides the JSON request and response shapes of the HTTP API.
package models

import (
	"time"

	"github.com/londonair/londonair/internal/airquality"
)

// Species is an entry of the species catalog.
type Species struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	HealthEffect string `json:"healthEffect"`
	Link         string `json:"link"`
}

// LocalAuthority is a borough with its centroid.
type LocalAuthority struct {
	Code int     `json:"code"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Link string  `json:"link"`
}

// Site is a monitoring site. Measuring lists the pollutant codes it still reports.
type Site struct {
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	LocalAuthorityCode int        `json:"localAuthorityCode"`
	Link               string     `json:"link"`
	Lat                float64    `json:"lat"`
	Lon                float64    `json:"lon"`
	OpenedAt           *Timestamp `json:"openedAt"`
	ClosedAt           *Timestamp `json:"closedAt"`
	StillActive        bool       `json:"stillActive"`
	Measuring          []string   `json:"measuring"`
}

// HealthAdviceBand is the advice for one index range.
type HealthAdviceBand struct {
	Band          string `json:"band"`
	LowerIndex    int    `json:"lowerIndex"`
	UpperIndex    int    `json:"upperIndex"`
	GeneralAdvice string `json:"generalAdvice"`
	AtRiskAdvice  string `json:"atRiskAdvice"`
}

// Reading is one site's current levels. Each level is the map intensity in
// (0, 1], or null when the site reported nothing for that pollutant.
type Reading struct {
	LocalAuthorityName string              `json:"localAuthorityName"`
	SiteName           string              `json:"siteName"`
	SiteCode           string              `json:"siteCode"`
	SiteType           string              `json:"siteType"`
	ObservedAt         string              `json:"observedAt"`
	Lat                float64             `json:"lat"`
	Lon                float64             `json:"lon"`
	Levels             map[string]*float64 `json:"levels"`
}

// SiteMeasurement is one raw value of a site history; Value is null when missing.
type SiteMeasurement struct {
	SiteCode   string    `json:"siteCode"`
	Pollutant  string    `json:"pollutant"`
	MeasuredAt Timestamp `json:"measuredAt"`
	Value      *float64  `json:"value"`
}

// Timestamp marshals as RFC 3339.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(data))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func optionalTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// FromSpecies converts domain species. The result is never nil.
func FromSpecies(in []*airquality.Species) []Species {
	out := make([]Species, 0, len(in))
	for _, s := range in {
		out = append(out, Species{
			Code:         s.Code,
			Name:         s.Name,
			Description:  s.Description,
			HealthEffect: s.HealthEffect,
			Link:         s.Link,
		})
	}
	return out
}

// FromLocalAuthorities converts domain local authorities. The result is never nil.
func FromLocalAuthorities(in []*airquality.LocalAuthority) []LocalAuthority {
	out := make([]LocalAuthority, 0, len(in))
	for _, la := range in {
		out = append(out, LocalAuthority{
			Code: la.Code,
			Name: la.Name,
			Lat:  la.Lat,
			Lon:  la.Lon,
			Link: la.Link,
		})
	}
	return out
}

// FromSites converts domain sites. The result is never nil.
func FromSites(in []*airquality.Site) []Site {
	out := make([]Site, 0, len(in))
	for _, s := range in {
		measuring := make([]string, 0, len(airquality.Pollutants))
		for _, p := range s.Measuring.List() {
			measuring = append(measuring, string(p))
		}
		out = append(out, Site{
			Code:               s.Code,
			Name:               s.Name,
			Type:               s.Type,
			LocalAuthorityCode: s.LocalAuthorityCode,
			Link:               s.Link,
			Lat:                s.Lat,
			Lon:                s.Lon,
			OpenedAt:           optionalTimestamp(s.OpenedAt),
			ClosedAt:           optionalTimestamp(s.ClosedAt),
			StillActive:        s.StillActive(),
			Measuring:          measuring,
		})
	}
	return out
}

// FromHealthAdvice converts domain bands. The result is never nil.
func FromHealthAdvice(in []*airquality.HealthAdviceBand) []HealthAdviceBand {
	out := make([]HealthAdviceBand, 0, len(in))
	for _, b := range in {
		out = append(out, HealthAdviceBand{
			Band:          b.Band,
			LowerIndex:    b.LowerIndex,
			UpperIndex:    b.UpperIndex,
			GeneralAdvice: b.GeneralAdvice,
			AtRiskAdvice:  b.AtRiskAdvice,
		})
	}
	return out
}

// FromReadings converts readings. Every pollutant appears in Levels, null
// when absent. The result is never nil.
func FromReadings(in []airquality.Reading) []Reading {
	out := make([]Reading, 0, len(in))
	for i := range in {
		r := &in[i]
		levels := make(map[string]*float64, len(airquality.Pollutants))
		for _, p := range airquality.Pollutants {
			levels[string(p)] = r.Level(p)
		}
		out = append(out, Reading{
			LocalAuthorityName: r.LocalAuthorityName,
			SiteName:           r.SiteName,
			SiteCode:           r.SiteCode,
			SiteType:           r.SiteType,
			ObservedAt:         r.ObservedAt,
			Lat:                r.Lat,
			Lon:                r.Lon,
			Levels:             levels,
		})
	}
	return out
}

// FromMeasurements converts a site history. The result is never nil.
func FromMeasurements(in []airquality.SiteMeasurement) []SiteMeasurement {
	out := make([]SiteMeasurement, 0, len(in))
	for _, m := range in {
		out = append(out, SiteMeasurement{
			SiteCode:   m.SiteCode,
			Pollutant:  string(m.Pollutant),
			MeasuredAt: Timestamp(m.MeasuredAt),
			Value:      m.Value,
		})
	}
	return out
}
