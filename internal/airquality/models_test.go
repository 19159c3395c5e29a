package airquality_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/londonair/londonair/internal/airquality"
)

func TestParsePollutant(t *testing.T) {
	tests := []struct {
		code string
		want airquality.Pollutant
		ok   bool
	}{
		{"CO", airquality.PollutantCO, true},
		{"no2", airquality.PollutantNO2, true},
		{" SO2 ", airquality.PollutantSO2, true},
		{"O3", airquality.PollutantO3, true},
		{"PM10", airquality.PollutantPM10, true},
		{"PM25", airquality.PollutantPM25, true},
		{"PM2.5", airquality.PollutantPM25, true},
		{"BENZ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := airquality.ParsePollutant(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPollutant_DisplayName(t *testing.T) {
	assert.Equal(t, "Carbon Monoxide", airquality.PollutantCO.DisplayName())
	assert.Equal(t, "Nitrogen Dioxide", airquality.PollutantNO2.DisplayName())
	assert.Equal(t, "PM2.5", airquality.PollutantPM25.DisplayName())
	assert.Equal(t, "XYZ", airquality.Pollutant("XYZ").DisplayName())
}

func TestPollutantSet(t *testing.T) {
	set := airquality.NewPollutantSet(airquality.PollutantPM25, airquality.PollutantCO)

	assert.True(t, set.Has(airquality.PollutantCO))
	assert.True(t, set.Has(airquality.PollutantPM25))
	assert.False(t, set.Has(airquality.PollutantO3))
	assert.False(t, set.Has(airquality.Pollutant("XYZ")))

	assert.Equal(t, []airquality.Pollutant{airquality.PollutantCO, airquality.PollutantPM25}, set.List())

	set = set.With(airquality.PollutantO3).With(airquality.PollutantO3)
	assert.Len(t, set.List(), 3)

	var empty airquality.PollutantSet
	assert.Empty(t, empty.List())
}

func TestReading_Levels(t *testing.T) {
	var r airquality.Reading
	level := 0.4

	for _, p := range airquality.Pollutants {
		assert.Nil(t, r.Level(p))
		r.SetLevel(p, &level)
		assert.Equal(t, &level, r.Level(p))
	}

	assert.Equal(t, &level, r.CarbonMonoxide)
	assert.Equal(t, &level, r.PM25)

	r.SetLevel(airquality.Pollutant("XYZ"), &level)
	assert.Nil(t, r.Level(airquality.Pollutant("XYZ")))
}

func TestSite_StillActive(t *testing.T) {
	site := &airquality.Site{Code: "BG1"}
	assert.True(t, site.StillActive())

	closed := time.Date(2018, time.June, 1, 0, 0, 0, 0, time.UTC)
	site.ClosedAt = &closed
	assert.False(t, site.StillActive())
}

func TestHealthAdviceBand_Contains(t *testing.T) {
	band := &airquality.HealthAdviceBand{Band: "Moderate", LowerIndex: 4, UpperIndex: 6}

	assert.False(t, band.Contains(3))
	assert.True(t, band.Contains(4))
	assert.True(t, band.Contains(6))
	assert.False(t, band.Contains(7))
}
