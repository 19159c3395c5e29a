// Package handler provides the HTTP handlers of the map server.
package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api/models"
	"github.com/londonair/londonair/internal/api/response"
)

// DateLayout is the format of the history start and end parameters.
const DateLayout = "2006-01-02"

// AirQualityService is the read path the handlers serve.
type AirQualityService interface {
	GetPageData(ctx context.Context) (*airquality.PageData, error)
	ListSpecies(ctx context.Context) ([]*airquality.Species, error)
	ListLocalAuthorities(ctx context.Context) ([]*airquality.LocalAuthority, error)
	ListSites(ctx context.Context) ([]*airquality.Site, error)
	ListSitesInLocalAuthority(ctx context.Context, code int) ([]*airquality.Site, error)
	ListHealthAdvice(ctx context.Context) ([]*airquality.HealthAdviceBand, error)
	CurrentReadings(ctx context.Context) ([]airquality.Reading, error)
	ReadingsNear(ctx context.Context, lat, lon float64) ([]airquality.Reading, error)
	SiteHistory(ctx context.Context, siteCode string, start, end time.Time) ([]airquality.SiteMeasurement, error)
}

// AirQualityHandler serves the JSON read path.
type AirQualityHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service AirQualityService, logger zerolog.Logger) *AirQualityHandler {
	return &AirQualityHandler{service: service, logger: logger}
}

// ListSpecies handles GET /v1/species.
func (h *AirQualityHandler) ListSpecies(w http.ResponseWriter, r *http.Request) {
	species, err := h.service.ListSpecies(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromSpecies(species))
}

// ListLocalAuthorities handles GET /v1/local-authorities.
func (h *AirQualityHandler) ListLocalAuthorities(w http.ResponseWriter, r *http.Request) {
	authorities, err := h.service.ListLocalAuthorities(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromLocalAuthorities(authorities))
}

// ListSitesInLocalAuthority handles GET /v1/local-authorities/{code}/sites.
func (h *AirQualityHandler) ListSitesInLocalAuthority(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		response.BadRequest(w, r, "invalid local authority code", []models.FieldError{
			{Field: "code", Message: "must be an integer", Code: models.CodeInvalid},
		})
		return
	}

	sites, err := h.service.ListSitesInLocalAuthority(r.Context(), code)
	if errors.Is(err, airquality.ErrLocalAuthorityNotFound) {
		response.NotFound(w, r, "local authority not found")
		return
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromSites(sites))
}

// ListSites handles GET /v1/sites.
func (h *AirQualityHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromSites(sites))
}

// ListHealthAdvice handles GET /v1/health-advice.
func (h *AirQualityHandler) ListHealthAdvice(w http.ResponseWriter, r *http.Request) {
	bands, err := h.service.ListHealthAdvice(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromHealthAdvice(bands))
}

// ListReadings handles GET /v1/readings. With lat and lon it returns the
// readings around that point. No upstream data is an empty list.
func (h *AirQualityHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latParam, lonParam := q.Get("lat"), q.Get("lon")

	var (
		readings []airquality.Reading
		err      error
	)
	if latParam == "" && lonParam == "" {
		readings, err = h.service.CurrentReadings(r.Context())
	} else {
		lat, lon, fieldErrors := parsePoint(latParam, lonParam)
		if len(fieldErrors) > 0 {
			response.BadRequest(w, r, "invalid coordinates", fieldErrors)
			return
		}
		readings, err = h.service.ReadingsNear(r.Context(), lat, lon)
	}

	if err != nil && !errors.Is(err, airquality.ErrNoData) {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromReadings(readings))
}

// SiteHistory handles GET /v1/sites/{siteCode}/history?start=&end=.
func (h *AirQualityHandler) SiteHistory(w http.ResponseWriter, r *http.Request) {
	siteCode := chi.URLParam(r, "siteCode")

	start, end, fieldErrors := parseDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid date range", fieldErrors)
		return
	}

	history, err := h.service.SiteHistory(r.Context(), siteCode, start, end)
	switch {
	case err == nil, errors.Is(err, airquality.ErrNoData):
		response.JSON(w, r, http.StatusOK, models.FromMeasurements(history))
	case errors.Is(err, airquality.ErrInvalidRange):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "end", Message: err.Error(), Code: models.CodeOutOfRange},
		})
	case errors.Is(err, airquality.ErrSiteNotFound):
		response.NotFound(w, r, "site not found")
	default:
		h.storeError(w, r, err)
	}
}

func (h *AirQualityHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("read path failed")
	response.InternalError(w, r, "failed to load air quality data")
}

func parsePoint(latParam, lonParam string) (lat, lon float64, fieldErrors []models.FieldError) {
	lat, fe := parseCoordinate("lat", latParam, 90)
	if fe != nil {
		fieldErrors = append(fieldErrors, *fe)
	}
	lon, fe = parseCoordinate("lon", lonParam, 180)
	if fe != nil {
		fieldErrors = append(fieldErrors, *fe)
	}
	return lat, lon, fieldErrors
}

func parseCoordinate(field, value string, limit float64) (float64, *models.FieldError) {
	if value == "" {
		return 0, &models.FieldError{Field: field, Message: "required with the other coordinate", Code: models.CodeRequired}
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) {
		return 0, &models.FieldError{Field: field, Message: "must be a number", Code: models.CodeInvalid}
	}
	if v < -limit || v > limit {
		return 0, &models.FieldError{
			Field:   field,
			Message: "must be between -" + strconv.FormatFloat(limit, 'f', -1, 64) + " and " + strconv.FormatFloat(limit, 'f', -1, 64),
			Code:    models.CodeOutOfRange,
		}
	}
	return v, nil
}

func parseDateRange(startParam, endParam string) (start, end time.Time, fieldErrors []models.FieldError) {
	parse := func(field, value string) time.Time {
		if value == "" {
			fieldErrors = append(fieldErrors, models.FieldError{Field: field, Message: "required", Code: models.CodeRequired})
			return time.Time{}
		}
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: field, Message: "expected YYYY-MM-DD", Code: models.CodeInvalid})
		}
		return t
	}
	start = parse("start", startParam)
	end = parse("end", endParam)
	return start, end, fieldErrors
}
