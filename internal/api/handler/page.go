package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api/models"
	"github.com/londonair/londonair/internal/api/response"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplate is parsed once; a parse error is a build defect.
var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// PollutantOption is one entry of the pollutant drop-down.
type PollutantOption struct {
	Code string
	Name string
}

// PageView is the data the index template renders. The slices are embedded
// as JSON for the map script.
type PageView struct {
	Pollutants        []PollutantOption
	Species           []models.Species
	LocalAuthorities  []models.LocalAuthority
	Sites             []models.Site
	HealthAdvice      []models.HealthAdviceBand
	Readings          []models.Reading
	ReadingsAvailable bool
	MaxIndex          int
}

// NewPageView converts the read path's page data.
func NewPageView(data *airquality.PageData) PageView {
	options := make([]PollutantOption, 0, len(airquality.Pollutants))
	for _, p := range airquality.Pollutants {
		options = append(options, PollutantOption{Code: string(p), Name: p.DisplayName()})
	}

	return PageView{
		Pollutants:        options,
		Species:           models.FromSpecies(data.Species),
		LocalAuthorities:  models.FromLocalAuthorities(data.LocalAuthorities),
		Sites:             models.FromSites(data.Sites),
		HealthAdvice:      models.FromHealthAdvice(data.HealthAdvice),
		Readings:          models.FromReadings(data.Readings),
		ReadingsAvailable: data.ReadingsAvailable,
		MaxIndex:          data.MaxIndex,
	}
}

// PageHandler renders the map page.
type PageHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(service AirQualityService, logger zerolog.Logger) *PageHandler {
	return &PageHandler{service: service, logger: logger}
}

// Index handles GET /.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetPageData(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("loading page data")
		response.InternalError(w, r, "failed to load air quality data")
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, NewPageView(data)); err != nil {
		h.logger.Error().Err(err).Msg("rendering page")
		response.InternalError(w, r, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
