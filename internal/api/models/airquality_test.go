package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api/models"
)

func TestFromReadings_EveryPollutantPresent(t *testing.T) {
	level := 0.8
	r := airquality.Reading{SiteCode: "BG1", SiteName: "Barking - Rush Green"}
	r.SetLevel(airquality.PollutantNO2, &level)

	out := models.FromReadings([]airquality.Reading{r})
	require.Len(t, out, 1)
	assert.Len(t, out[0].Levels, len(airquality.Pollutants))
	assert.Equal(t, &level, out[0].Levels["NO2"])
	assert.Nil(t, out[0].Levels["CO"])

	body, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"CO":null`)
	assert.Contains(t, string(body), `"NO2":0.8`)
}

func TestFromSlices_NeverNil(t *testing.T) {
	body, err := json.Marshal(models.FromReadings(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))

	assert.NotNil(t, models.FromSpecies(nil))
	assert.NotNil(t, models.FromLocalAuthorities(nil))
	assert.NotNil(t, models.FromSites(nil))
	assert.NotNil(t, models.FromHealthAdvice(nil))
	assert.NotNil(t, models.FromMeasurements(nil))
}

func TestFromSites(t *testing.T) {
	opened := time.Date(2001, time.March, 4, 0, 0, 0, 0, time.UTC)
	closed := time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC)
	sites := []*airquality.Site{
		{
			Code:      "BG1",
			Name:      "Barking - Rush Green",
			OpenedAt:  &opened,
			Measuring: airquality.NewPollutantSet(airquality.PollutantSO2, airquality.PollutantNO2),
		},
		{Code: "BG2", OpenedAt: &opened, ClosedAt: &closed},
	}

	out := models.FromSites(sites)
	require.Len(t, out, 2)
	assert.True(t, out[0].StillActive)
	assert.Equal(t, []string{"NO2", "SO2"}, out[0].Measuring)
	assert.Nil(t, out[0].ClosedAt)
	assert.False(t, out[1].StillActive)
	assert.Empty(t, out[1].Measuring)

	body, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"closedAt":"2019-06-01T00:00:00Z"`)
	assert.Contains(t, string(body), `"measuring":[]`)
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := models.Timestamp(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC))
	body, err := json.Marshal(ts)
	require.NoError(t, err)

	var decoded models.Timestamp
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.True(t, ts.Time().Equal(decoded.Time()))
}
