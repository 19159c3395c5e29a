package londonair

import (
	"errors"
	"fmt"

	"github.com/londonair/londonair/internal/airquality"
)

// ErrIndexOutOfRange is returned for an index outside 0..MaxIndex.
var ErrIndexOutOfRange = errors.New("air quality index out of range")

// IndexLevel converts an air quality index into the map intensity
// ((MaxIndex - v) + 1) / MaxIndex. Zero means no reading and yields nil.
func IndexLevel(v int) (*float64, error) {
	if v == 0 {
		return nil, nil
	}
	if v < 1 || v > airquality.MaxIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, v)
	}
	level := float64((airquality.MaxIndex-v)+1) / airquality.MaxIndex
	return &level, nil
}

// RowBuilder pivots an hourly index response into one Reading per site.
type RowBuilder struct {
	n *Normalizer
}

// NewRowBuilder creates a row builder that reports through n.
func NewRowBuilder(n *Normalizer) *RowBuilder {
	return &RowBuilder{n: n}
}

// Build returns one Reading per site that reported at least one species.
func (b *RowBuilder) Build(root any) []airquality.Reading {
	var rows []airquality.Reading

	for _, la := range b.n.Records(root, "HourlyAirQualityIndex", "LocalAuthority") {
		laName := la.String("LocalAuthorityName")

		sites, _ := b.n.Many(la.Field("Site"), "HourlyAirQualityIndex.LocalAuthority.Site")
		for _, site := range sites {
			if row, ok := b.buildRow(laName, site); ok {
				rows = append(rows, row)
			}
		}
	}

	return rows
}

func (b *RowBuilder) buildRow(laName string, site Record) (airquality.Reading, bool) {
	code := site.String("SiteCode")

	species, ok := b.n.Many(site.Field("Species"), "Site["+code+"].Species")
	if !ok || len(species) == 0 {
		return airquality.Reading{}, false
	}

	row := airquality.Reading{
		LocalAuthorityName: laName,
		SiteName:           site.String("SiteName"),
		SiteCode:           code,
		SiteType:           site.String("SiteType"),
		ObservedAt:         site.String("BulletinDate"),
	}
	row.Lat, _ = site.Float("Latitude")
	row.Lon, _ = site.Float("Longitude")

	for _, sp := range species {
		speciesCode := sp.String("SpeciesCode")
		pollutant, known := airquality.ParsePollutant(speciesCode)
		if !known {
			b.n.Report().
				Str("site_code", code).
				Str("species_code", speciesCode).
				Msg("unrecognised species code")
			continue
		}

		index, present := sp.Int("AirQualityIndex")
		if !present {
			continue
		}
		level, err := IndexLevel(index)
		if err != nil {
			b.n.Report().
				Err(err).
				Str("site_code", code).
				Str("species_code", speciesCode).
				Msg("discarding air quality index")
			continue
		}
		row.SetLevel(pollutant, level)
	}

	return row, true
}
