// Package airquality provides the London air quality reference data and the
// read path that combines it with current readings.
package airquality

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Repository and provider errors.
var (
	ErrNoData                 = errors.New("no data available")
	ErrLocalAuthorityNotFound = errors.New("local authority not found")
	ErrSiteNotFound           = errors.New("site not found")
	ErrInvalidSiteCode        = errors.New("invalid site code")
)

// MaxIndex is the top of the air quality index scale (1 = low, 10 = very high).
const MaxIndex = 10

// Pollutant is one of the species the map can display.
type Pollutant string

const (
	PollutantCO   Pollutant = "CO"
	PollutantNO2  Pollutant = "NO2"
	PollutantSO2  Pollutant = "SO2"
	PollutantO3   Pollutant = "O3"
	PollutantPM10 Pollutant = "PM10"
	PollutantPM25 Pollutant = "PM25"
)

// Pollutants lists every known pollutant in display column order.
var Pollutants = []Pollutant{
	PollutantCO,
	PollutantNO2,
	PollutantSO2,
	PollutantO3,
	PollutantPM10,
	PollutantPM25,
}

// ParsePollutant maps an upstream species code to a Pollutant.
func ParsePollutant(code string) (Pollutant, bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "CO":
		return PollutantCO, true
	case "NO2":
		return PollutantNO2, true
	case "SO2":
		return PollutantSO2, true
	case "O3":
		return PollutantO3, true
	case "PM10":
		return PollutantPM10, true
	case "PM25", "PM2.5":
		return PollutantPM25, true
	default:
		return "", false
	}
}

// DisplayName returns the human-readable pollutant name used as a column header.
func (p Pollutant) DisplayName() string {
	switch p {
	case PollutantCO:
		return "Carbon Monoxide"
	case PollutantNO2:
		return "Nitrogen Dioxide"
	case PollutantSO2:
		return "Sulphur Dioxide"
	case PollutantO3:
		return "Ozone"
	case PollutantPM10:
		return "PM10"
	case PollutantPM25:
		return "PM2.5"
	default:
		return string(p)
	}
}

func (p Pollutant) bit() PollutantSet {
	for i, known := range Pollutants {
		if known == p {
			return 1 << uint(i)
		}
	}
	return 0
}

// PollutantSet is a fixed-size set of pollutants, one bit per entry in Pollutants.
type PollutantSet uint8

// NewPollutantSet builds a set from the given pollutants.
func NewPollutantSet(pollutants ...Pollutant) PollutantSet {
	var s PollutantSet
	for _, p := range pollutants {
		s = s.With(p)
	}
	return s
}

// With returns the set with p added.
func (s PollutantSet) With(p Pollutant) PollutantSet {
	return s | p.bit()
}

// Has reports whether p is in the set.
func (s PollutantSet) Has(p Pollutant) bool {
	b := p.bit()
	return b != 0 && s&b != 0
}

// List returns the members in display column order.
func (s PollutantSet) List() []Pollutant {
	var out []Pollutant
	for _, p := range Pollutants {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Species is an entry of the upstream species catalog.
type Species struct {
	Code         string
	Name         string
	Description  string
	HealthEffect string
	Link         string
}

// LocalAuthority is a London borough (or equivalent) that owns monitoring sites.
type LocalAuthority struct {
	Code int
	Name string
	Lat  float64
	Lon  float64
	Link string
}

// SiteCodeLength is the fixed length of a monitoring site code.
const SiteCodeLength = 3

// ValidSiteCode reports whether code fits the stored site code column.
func ValidSiteCode(code string) bool {
	return utf8.RuneCountInString(code) == SiteCodeLength && strings.TrimSpace(code) == code
}

// Site is a monitoring site.
type Site struct {
	Code               string
	Name               string
	Type               string
	LocalAuthorityCode int
	Link               string
	Lat                float64
	Lon                float64
	OpenedAt           *time.Time
	ClosedAt           *time.Time

	// Measuring holds the pollutants the site still reports.
	Measuring PollutantSet
}

// StillActive reports whether the site has not been closed.
func (s *Site) StillActive() bool {
	return s.ClosedAt == nil
}

// HealthAdviceBand pairs general and at-risk advice for one index range.
type HealthAdviceBand struct {
	Band          string
	LowerIndex    int
	UpperIndex    int
	GeneralAdvice string
	AtRiskAdvice  string
}

// Contains reports whether the index falls inside the band.
func (b *HealthAdviceBand) Contains(index int) bool {
	return index >= b.LowerIndex && index <= b.UpperIndex
}

// Reading is one site's current pollutant levels. Levels are nil when the
// upstream reported nothing for that pollutant.
type Reading struct {
	LocalAuthorityName string
	SiteName           string
	SiteCode           string
	SiteType           string
	ObservedAt         string
	Lat                float64
	Lon                float64

	CarbonMonoxide  *float64
	NitrogenDioxide *float64
	SulphurDioxide  *float64
	Ozone           *float64
	PM10            *float64
	PM25            *float64
}

// Level returns the level recorded for p.
func (r *Reading) Level(p Pollutant) *float64 {
	switch p {
	case PollutantCO:
		return r.CarbonMonoxide
	case PollutantNO2:
		return r.NitrogenDioxide
	case PollutantSO2:
		return r.SulphurDioxide
	case PollutantO3:
		return r.Ozone
	case PollutantPM10:
		return r.PM10
	case PollutantPM25:
		return r.PM25
	default:
		return nil
	}
}

// SetLevel records the level for p. Unknown pollutants are ignored.
func (r *Reading) SetLevel(p Pollutant, level *float64) {
	switch p {
	case PollutantCO:
		r.CarbonMonoxide = level
	case PollutantNO2:
		r.NitrogenDioxide = level
	case PollutantSO2:
		r.SulphurDioxide = level
	case PollutantO3:
		r.Ozone = level
	case PollutantPM10:
		r.PM10 = level
	case PollutantPM25:
		r.PM25 = level
	}
}

// SiteMeasurement is one raw value from a site's history.
type SiteMeasurement struct {
	SiteCode   string
	Pollutant  Pollutant
	MeasuredAt time.Time
	Value      *float64
}

// Group is a named set of sites in the upstream catalog.
type Group struct {
	Name        string
	Description string
	Link        string
}
