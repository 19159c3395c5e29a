package londonair

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// GroupsPath lists the site groups.
func GroupsPath() string {
	return "/Information/Groups/Json"
}

// LocalAuthoritiesPath lists the local authorities monitored by a group.
func LocalAuthoritiesPath(group string) string {
	return fmt.Sprintf("/Information/MonitoringLocalAuthority/GroupName=%s/Json", url.PathEscape(group))
}

// SpeciesPath lists the species catalog.
func SpeciesPath() string {
	return "/Information/Species/Json"
}

// SitesPath lists a group's sites with the species each one measures.
func SitesPath(group string) string {
	return fmt.Sprintf("/Information/MonitoringSiteSpecies/GroupName=%s/Json", url.PathEscape(group))
}

// HealthAdvicePath lists the index health advice.
func HealthAdvicePath() string {
	return "/Information/IndexHealthAdvice/Json"
}

// CurrentIndexPath returns the latest hourly index for a group.
func CurrentIndexPath(group string) string {
	return fmt.Sprintf("/Hourly/MonitoringIndex/GroupName=%s/Json", url.PathEscape(group))
}

// IndexNearPath returns the latest hourly index around a point.
func IndexNearPath(lat, lon float64) string {
	return fmt.Sprintf("/Hourly/MonitoringIndex/Latitude=%s/Longitude=%s/Json",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	)
}

// SiteHistoryPath returns raw measurements for a site between two dates.
func SiteHistoryPath(siteCode string, start, end time.Time) string {
	return fmt.Sprintf("/Data/Site/SiteCode=%s/StartDate=%s/EndDate=%s/Json",
		url.PathEscape(siteCode), FormatDate(start), FormatDate(end))
}
