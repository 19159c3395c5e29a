package londonair_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/londonair/londonair/internal/airquality/londonair"
)

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "01Jan2019", londonair.FormatDate(time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "25Dec2020", londonair.FormatDate(time.Date(2020, time.December, 25, 13, 45, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := londonair.ParseDate("01Jan2019")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = londonair.ParseDate("2019-01-01")
	assert.Error(t, err)
}

func TestParseOptionalTimestamp(t *testing.T) {
	ts, err := londonair.ParseOptionalTimestamp("2008-03-01 12:30:00")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2008, time.March, 1, 12, 30, 0, 0, time.UTC), *ts)

	ts, err = londonair.ParseOptionalTimestamp("  ")
	require.NoError(t, err)
	assert.Nil(t, ts)

	_, err = londonair.ParseOptionalTimestamp("yesterday")
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, time.January, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "/Information/Groups/Json", londonair.GroupsPath())
	assert.Equal(t, "/Information/MonitoringLocalAuthority/GroupName=London/Json", londonair.LocalAuthoritiesPath("London"))
	assert.Equal(t, "/Information/MonitoringSiteSpecies/GroupName=City%20of%20London/Json", londonair.SitesPath("City of London"))
	assert.Equal(t, "/Hourly/MonitoringIndex/GroupName=London/Json", londonair.CurrentIndexPath("London"))
	assert.Equal(t, "/Hourly/MonitoringIndex/Latitude=51.5/Longitude=-0.12/Json", londonair.IndexNearPath(51.5, -0.12))
	assert.Equal(t, "/Data/Site/SiteCode=BG1/StartDate=01Jan2019/EndDate=02Jan2019/Json", londonair.SiteHistoryPath("BG1", start, end))
}
