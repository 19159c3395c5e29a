package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/airquality/londonair"
)

const tracerName = "github.com/londonair/londonair/internal/worker"

// ErrSpeciesCatalogUnavailable is returned by Run when SpeciesRequired is set
// and the species catalog returned no data.
var ErrSpeciesCatalogUnavailable = errors.New("species catalog unavailable")

// Source is the upstream side of a populate run.
type Source interface {
	FetchGroups(ctx context.Context) ([]airquality.Group, error)
	FetchLocalAuthorities(ctx context.Context, group string) ([]airquality.LocalAuthority, error)
	FetchSpecies(ctx context.Context) ([]airquality.Species, error)
	FetchSites(ctx context.Context, group string) ([]londonair.SiteListing, error)
	FetchHealthAdvice(ctx context.Context) ([]londonair.HealthAdviceEntry, error)
}

// AnomalyCounter reports how many upstream anomalies have been seen so far.
type AnomalyCounter interface {
	Anomalies() int64
}

// PopulatorConfig holds configuration for creating a Populator.
type PopulatorConfig struct {
	Config     PopulateConfig
	Source     Source
	Repository airquality.Repository

	// Anomalies, when set, is read before and after each step so the step
	// result includes the anomalies reported while fetching.
	Anomalies AnomalyCounter

	Logger zerolog.Logger
}

// Populator writes upstream reference data into the local store. Every write
// is an upsert keyed by natural identity, so repeated runs converge.
type Populator struct {
	config    PopulateConfig
	source    Source
	repo      airquality.Repository
	anomalies AnomalyCounter
	excluded  map[string]bool
	logger    zerolog.Logger
	tracer    trace.Tracer

	runMu   sync.Mutex
	statsMu sync.RWMutex
	stats   PopulateStats
}

// PopulateStats tracks populator statistics across runs.
type PopulateStats struct {
	TotalRuns       int64
	FailedRuns      int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
	EntitiesCreated int64
	EntitiesUpdated int64
}

// NewPopulator creates a new populator.
func NewPopulator(cfg PopulatorConfig) *Populator {
	config := cfg.Config.withDefaults()

	excluded := make(map[string]bool, len(config.ExcludedSites))
	for _, code := range config.ExcludedSites {
		excluded[code] = true
	}

	return &Populator{
		config:    config,
		source:    cfg.Source,
		repo:      cfg.Repository,
		anomalies: cfg.Anomalies,
		excluded:  excluded,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// StepResult is the outcome of one populate step.
type StepResult struct {
	Step      Step
	Created   int
	Updated   int
	Skipped   int
	Anomalies int64
	Aborted   bool
	Error     string
	Duration  time.Duration
}

// PopulateResult contains the result of a populate run.
type PopulateResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Steps     []*StepResult
}

// Step returns the result for step, or nil if it did not run.
func (r *PopulateResult) Step(step Step) *StepResult {
	for _, s := range r.Steps {
		if s.Step == step {
			return s
		}
	}
	return nil
}

// AbortedSteps counts the steps that did not finish.
func (r *PopulateResult) AbortedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Aborted {
			n++
		}
	}
	return n
}

// Run executes the configured steps in order. A step whose fetch returns no
// data is aborted and the run continues. The returned error joins every
// non-no-data step failure; it is ErrSpeciesCatalogUnavailable, and the run
// stops, when SpeciesRequired is set and the species catalog is empty.
func (p *Populator) Run(ctx context.Context) (*PopulateResult, error) {
	// Population is single-writer.
	p.runMu.Lock()
	defer p.runMu.Unlock()

	startTime := time.Now()
	result := &PopulateResult{StartTime: startTime}

	p.logger.Info().
		Str("group", p.config.Group).
		Interface("steps", p.config.Steps).
		Msg("starting populate run")

	var errs []error
	for _, step := range AllSteps {
		if !p.config.enabled(step) {
			continue
		}

		sr, err := p.runStep(ctx, step)
		result.Steps = append(result.Steps, sr)

		if err != nil {
			if step == StepSpecies && p.config.SpeciesRequired && errors.Is(err, airquality.ErrNoData) {
				errs = append(errs, ErrSpeciesCatalogUnavailable)
				break
			}
			if !errors.Is(err, airquality.ErrNoData) {
				errs = append(errs, fmt.Errorf("%s: %w", step, err))
			}
		}

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	runErr := errors.Join(errs...)
	p.updateStats(result, runErr)

	p.logger.Info().
		Dur("duration", result.Duration).
		Int("steps", len(result.Steps)).
		Int("aborted", result.AbortedSteps()).
		Bool("failed", runErr != nil).
		Msg("populate run completed")

	return result, runErr
}

func (p *Populator) runStep(ctx context.Context, step Step) (*StepResult, error) {
	ctx, span := p.tracer.Start(ctx, "populate."+string(step))
	defer span.End()

	stepCtx, cancel := context.WithTimeout(ctx, p.config.StepTimeout)
	defer cancel()

	start := time.Now()
	before := p.anomalyCount()

	var (
		sr  *StepResult
		err error
	)
	switch step {
	case StepGroups:
		sr, err = p.PopulateGroups(stepCtx)
	case StepLocalAuthorities:
		sr, err = p.PopulateLocalAuthorities(stepCtx)
	case StepSpecies:
		sr, err = p.PopulateSpecies(stepCtx)
	case StepSites:
		sr, err = p.PopulateSites(stepCtx, p.config.Group)
	case StepHealthAdvice:
		sr, err = p.PopulateHealthAdvice(stepCtx)
	default:
		sr, err = &StepResult{Step: step}, fmt.Errorf("unknown populate step %q", step)
	}

	sr.Anomalies += p.anomalyCount() - before
	sr.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("populate.created", sr.Created),
		attribute.Int("populate.updated", sr.Updated),
		attribute.Int("populate.skipped", sr.Skipped),
		attribute.Int64("populate.anomalies", sr.Anomalies),
	)

	event := p.logger.Info()
	if err != nil {
		sr.Aborted = true
		sr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		event = p.logger.Warn().Err(err)
	}
	event.
		Str("step", string(step)).
		Int("created", sr.Created).
		Int("updated", sr.Updated).
		Int("skipped", sr.Skipped).
		Int64("anomalies", sr.Anomalies).
		Bool("aborted", sr.Aborted).
		Dur("duration", sr.Duration).
		Msg("populate step finished")

	return sr, err
}

func (p *Populator) anomalyCount() int64 {
	if p.anomalies == nil {
		return 0
	}
	return p.anomalies.Anomalies()
}

func (sr *StepResult) record(created bool) {
	if created {
		sr.Created++
	} else {
		sr.Updated++
	}
}

// PopulateGroups upserts one group per catalog entry.
func (p *Populator) PopulateGroups(ctx context.Context) (*StepResult, error) {
	sr := &StepResult{Step: StepGroups}

	groups, err := p.source.FetchGroups(ctx)
	if err != nil {
		return sr, fmt.Errorf("fetch groups: %w", err)
	}

	for i := range groups {
		created, err := p.repo.UpsertGroup(ctx, &groups[i])
		if err != nil {
			return sr, fmt.Errorf("upsert group %q: %w", groups[i].Name, err)
		}
		sr.record(created)
	}

	return sr, nil
}

// PopulateLocalAuthorities upserts every local authority that also appears in
// the group catalog, joined on name. The group supplies the link.
func (p *Populator) PopulateLocalAuthorities(ctx context.Context) (*StepResult, error) {
	sr := &StepResult{Step: StepLocalAuthorities}

	groups, err := p.source.FetchGroups(ctx)
	if err != nil {
		return sr, fmt.Errorf("fetch groups: %w", err)
	}
	authorities, err := p.source.FetchLocalAuthorities(ctx, p.config.Group)
	if err != nil {
		return sr, fmt.Errorf("fetch local authorities: %w", err)
	}

	byName := make(map[string]airquality.Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}

	for i := range authorities {
		la := authorities[i]
		group, ok := byName[la.Name]
		if !ok {
			sr.Skipped++
			continue
		}
		la.Link = group.Link

		created, err := p.repo.UpsertLocalAuthority(ctx, &la)
		if err != nil {
			return sr, fmt.Errorf("upsert local authority %d: %w", la.Code, err)
		}
		sr.record(created)
	}

	return sr, nil
}

// PopulateSpecies upserts one species per catalog entry.
func (p *Populator) PopulateSpecies(ctx context.Context) (*StepResult, error) {
	sr := &StepResult{Step: StepSpecies}

	species, err := p.source.FetchSpecies(ctx)
	if err != nil {
		return sr, fmt.Errorf("fetch species: %w", err)
	}

	for i := range species {
		created, err := p.repo.UpsertSpecies(ctx, &species[i])
		if err != nil {
			return sr, fmt.Errorf("upsert species %s: %w", species[i].Code, err)
		}
		sr.record(created)
	}

	return sr, nil
}

// PopulateSites upserts the group's sites. Sites that are excluded, carry a
// malformed code, lack coordinates or name an unknown local authority are
// skipped.
func (p *Populator) PopulateSites(ctx context.Context, group string) (*StepResult, error) {
	sr := &StepResult{Step: StepSites}

	listings, err := p.source.FetchSites(ctx, group)
	if err != nil {
		return sr, fmt.Errorf("fetch sites: %w", err)
	}

	authorityCodes := make(map[string]int)
	for _, l := range listings {
		if p.excluded[l.Code] {
			sr.Skipped++
			continue
		}

		if !airquality.ValidSiteCode(l.Code) {
			sr.Skipped++
			sr.Anomalies++
			p.logger.Warn().Str("site_code", l.Code).Msg("skipping site with malformed code")
			continue
		}

		if !l.HasCoordinates {
			sr.Skipped++
			sr.Anomalies++
			p.logger.Warn().Str("site_code", l.Code).Msg("skipping site without coordinates")
			continue
		}

		code, ok := authorityCodes[l.LocalAuthorityName]
		if !ok {
			la, err := p.repo.GetLocalAuthorityByName(ctx, l.LocalAuthorityName)
			if errors.Is(err, airquality.ErrLocalAuthorityNotFound) {
				sr.Skipped++
				sr.Anomalies++
				p.logger.Warn().
					Str("site_code", l.Code).
					Str("local_authority", l.LocalAuthorityName).
					Msg("skipping site with unknown local authority")
				continue
			}
			if err != nil {
				return sr, fmt.Errorf("resolve local authority %q: %w", l.LocalAuthorityName, err)
			}
			code = la.Code
			authorityCodes[l.LocalAuthorityName] = code
		}

		site := &airquality.Site{
			Code:               l.Code,
			Name:               l.Name,
			Type:               l.Type,
			LocalAuthorityCode: code,
			Link:               l.Link,
			Lat:                l.Lat,
			Lon:                l.Lon,
			OpenedAt:           l.OpenedAt,
			ClosedAt:           l.ClosedAt,
			Measuring:          l.Measuring,
		}
		created, err := p.repo.UpsertSite(ctx, site)
		if err != nil {
			return sr, fmt.Errorf("upsert site %s: %w", l.Code, err)
		}
		sr.record(created)
	}

	return sr, nil
}

// PopulateHealthAdvice pairs the alternating at-risk and general entries and
// upserts one band per pair. An entry whose neighbour does not share its band
// and index range is reported and skipped.
func (p *Populator) PopulateHealthAdvice(ctx context.Context) (*StepResult, error) {
	sr := &StepResult{Step: StepHealthAdvice}

	entries, err := p.source.FetchHealthAdvice(ctx)
	if err != nil {
		return sr, fmt.Errorf("fetch health advice: %w", err)
	}

	for i := 0; i < len(entries); {
		atRisk := entries[i]
		if i+1 >= len(entries) || !sameBand(atRisk, entries[i+1]) {
			sr.Skipped++
			sr.Anomalies++
			p.logger.Warn().
				Str("band", atRisk.Band).
				Int("lower_index", atRisk.LowerIndex).
				Int("upper_index", atRisk.UpperIndex).
				Msg("unpaired health advice entry")
			i++
			continue
		}

		band := &airquality.HealthAdviceBand{
			Band:          atRisk.Band,
			LowerIndex:    atRisk.LowerIndex,
			UpperIndex:    atRisk.UpperIndex,
			AtRiskAdvice:  atRisk.Advice,
			GeneralAdvice: entries[i+1].Advice,
		}
		created, err := p.repo.UpsertHealthAdviceBand(ctx, band)
		if err != nil {
			return sr, fmt.Errorf("upsert health advice band %s: %w", band.Band, err)
		}
		sr.record(created)
		i += 2
	}

	return sr, nil
}

func sameBand(a, b londonair.HealthAdviceEntry) bool {
	return a.Band == b.Band && a.LowerIndex == b.LowerIndex && a.UpperIndex == b.UpperIndex
}

func (p *Populator) updateStats(result *PopulateResult, err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	p.stats.TotalRuns++
	if err != nil {
		p.stats.FailedRuns++
	}
	p.stats.LastRunAt = result.EndTime
	p.stats.LastRunDuration = result.Duration
	for _, s := range result.Steps {
		p.stats.EntitiesCreated += int64(s.Created)
		p.stats.EntitiesUpdated += int64(s.Updated)
	}
}

// Stats returns a copy of the populator statistics.
func (p *Populator) Stats() PopulateStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}
