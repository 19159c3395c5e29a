package londonair_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/londonair/londonair/internal/airquality/londonair"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestNormalizer_SingleMapping(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"AirQualitySpecies":{"Species":{"@SpeciesCode":"CO","@SpeciesName":"Carbon Monoxide"}}}`)

	records := n.Records(body, "AirQualitySpecies", "Species")
	require.Len(t, records, 1)
	assert.Equal(t, "CO", records[0].String("SpeciesCode"))
	assert.Equal(t, "Carbon Monoxide", records[0].String("SpeciesName"))
	assert.NotContains(t, records[0], "@SpeciesCode")
	assert.Zero(t, n.Anomalies())
}

func TestNormalizer_ListPreservesOrder(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"AirQualitySpecies":{"Species":[
		{"@SpeciesCode":"NO2"},
		{"@SpeciesCode":"CO"},
		{"@SpeciesCode":"PM10"}
	]}}`)

	records := n.Records(body, "AirQualitySpecies", "Species")
	require.Len(t, records, 3)
	assert.Equal(t, "NO2", records[0].String("SpeciesCode"))
	assert.Equal(t, "CO", records[1].String("SpeciesCode"))
	assert.Equal(t, "PM10", records[2].String("SpeciesCode"))
}

func TestNormalizer_AbsentFieldIsEmpty(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"AirQualitySpecies":{}}`)

	assert.Empty(t, n.Records(body, "AirQualitySpecies", "Species"))
	assert.Empty(t, n.Records(body, "Missing", "Species"))
	assert.Zero(t, n.Anomalies())
}

func TestNormalizer_WrongShapeIsReported(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"AirQualitySpecies":{"Species":"unexpected"}}`)

	assert.Empty(t, n.Records(body, "AirQualitySpecies", "Species"))
	assert.Equal(t, int64(1), n.Anomalies())
}

func TestNormalizer_NonMappingListEntriesDropped(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"Sites":{"Site":[{"@SiteCode":"BG1"}, 7, {"@SiteCode":"BG2"}]}}`)

	records := n.Records(body, "Sites", "Site")
	require.Len(t, records, 2)
	assert.Equal(t, "BG1", records[0].String("SiteCode"))
	assert.Equal(t, "BG2", records[1].String("SiteCode"))
	assert.Equal(t, int64(1), n.Anomalies())
}

func TestNormalizer_StripsNestedMarkers(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"Sites":{"Site":{"@SiteCode":"BG1","Species":[{"@SpeciesCode":"NO2"}]}}}`)

	records := n.Records(body, "Sites", "Site")
	require.Len(t, records, 1)

	species, ok := n.Many(records[0].Field("Species"), "Species")
	require.True(t, ok)
	require.Len(t, species, 1)
	assert.Equal(t, "NO2", species[0].String("SpeciesCode"))
}

func TestOneOrMany(t *testing.T) {
	records, dropped, err := londonair.OneOrMany(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, dropped)

	_, _, err = londonair.OneOrMany(json.Number("3"))
	assert.ErrorIs(t, err, londonair.ErrShape)
}

func TestRecord_Accessors(t *testing.T) {
	n := londonair.NewNormalizer(zerolog.Nop())
	body := decode(t, `{"Data":{
		"@Code":" 12 ",
		"@Lat":"51.5",
		"@Number":3,
		"@Empty":"",
		"@Opened":"2019-01-01 00:00:00",
		"@Fraction":"2.5"
	}}`)

	records := n.Records(body, "Data")
	require.Len(t, records, 1)
	r := records[0]

	code, ok := r.Int("Code")
	require.True(t, ok)
	assert.Equal(t, 12, code)

	lat, ok := r.Float("Lat")
	require.True(t, ok)
	assert.InDelta(t, 51.5, lat, 1e-9)

	num, ok := r.Int("Number")
	require.True(t, ok)
	assert.Equal(t, 3, num)

	_, ok = r.Float("Empty")
	assert.False(t, ok)

	_, ok = r.Int("Fraction")
	assert.False(t, ok)

	_, ok = r.Float("Missing")
	assert.False(t, ok)

	opened, err := r.Time("Opened")
	require.NoError(t, err)
	require.NotNil(t, opened)
	assert.Equal(t, 2019, opened.Year())

	closed, err := r.Time("Empty")
	require.NoError(t, err)
	assert.Nil(t, closed)
}
