// Package pipeline runs one fetch-join-enrich-report cycle.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/kartta/extract"
	"github.com/yairfalse/kartta/lookup"
	"github.com/yairfalse/kartta/report"
	"github.com/yairfalse/kartta/runlog"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// Source fetches the three mapping-service datasets.
type Source interface {
	FetchApplications(ctx context.Context) (*types.Node, error)
	FetchApps(ctx context.Context, appCode string) ([]types.Application, error)
	FetchMappings(ctx context.Context, appCode, segment, month string) ([]types.Mapping, error)
}

// Enricher resolves account classifications onto resource rows.
type Enricher interface {
	Enrich(ctx context.Context, rows []types.ResourceRow)
	Stats() (hits, calls int)
}

// Params are the run parameters after config/flag merging.
type Params struct {
	AppCode    string
	Segment    string
	Month      string
	OutputRoot string
}

// Result summarizes a completed run.
type Result struct {
	Paths           report.Paths
	ResourceRows    int
	ServiceRows     int
	LookupEntries   int
	LookupMatches   int
	CacheHits       int
	LookupCalls     int
	DegradedFetches []string
}

// Pipeline joins the mapping-service datasets and emits the reports.
type Pipeline struct {
	source   Source
	enricher Enricher
	history  *runlog.Store // optional
	now      func() time.Time
}

// New creates a pipeline. history may be nil to skip run recording.
func New(source Source, enricher Enricher, history *runlog.Store) *Pipeline {
	return &Pipeline{
		source:   source,
		enricher: enricher,
		history:  history,
		now:      time.Now,
	}
}

// Run executes one full cycle. A failed source fetch degrades that
// dataset to empty and the run continues; only report emission can
// fail the run.
func (p *Pipeline) Run(ctx context.Context, params Params) (Result, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "pipeline.run")
	defer span.End()

	startedAt := p.now()
	var result Result

	// fetch phase: three independent blocking calls, each degradable
	appsNode := p.fetchApplications(ctx, &result)
	apps := p.fetchApps(ctx, params, &result)
	mappings := p.fetchMappings(ctx, params, &result)

	idx := p.buildLookup(ctx, apps)
	result.LookupEntries = idx.Len()
	gaugeRecord(ctx, telemetry.LookupEntries, int64(idx.Len()))

	resourceRows, serviceRows := p.extractRows(ctx, mappings, idx, apps, &result)

	p.enrich(ctx, resourceRows)
	result.CacheHits, result.LookupCalls = p.enricher.Stats()
	counterAdd(ctx, telemetry.CacheHits, int64(result.CacheHits))
	counterAdd(ctx, telemetry.LookupCalls, int64(result.LookupCalls))

	paths, err := p.emit(ctx, params, appsNode, resourceRows, serviceRows)
	if err != nil {
		return result, err
	}
	result.Paths = paths

	p.record(ctx, params, startedAt, result)
	return result, nil
}

func (p *Pipeline) fetchApplications(ctx context.Context, result *Result) *types.Node {
	ctx, span := telemetry.Tracer.Start(ctx, "fetch.applications")
	defer span.End()
	start := time.Now()

	node, err := p.source.FetchApplications(ctx)
	telemetry.LogPhase(ctx, "fetch applications", start, err)
	if err != nil {
		p.degrade(ctx, "applications", result)
		return nil
	}
	return node
}

func (p *Pipeline) fetchApps(ctx context.Context, params Params, result *Result) []types.Application {
	ctx, span := telemetry.Tracer.Start(ctx, "fetch.apps")
	defer span.End()
	start := time.Now()

	apps, err := p.source.FetchApps(ctx, params.AppCode)
	telemetry.LogPhase(ctx, "fetch apps", start, err)
	if err != nil {
		p.degrade(ctx, "apps", result)
		return nil
	}
	return apps
}

func (p *Pipeline) fetchMappings(ctx context.Context, params Params, result *Result) []types.Mapping {
	ctx, span := telemetry.Tracer.Start(ctx, "fetch.mappings")
	defer span.End()
	start := time.Now()

	mappings, err := p.source.FetchMappings(ctx, params.AppCode, params.Segment, params.Month)
	telemetry.LogPhase(ctx, "fetch mappings", start, err)
	if err != nil {
		p.degrade(ctx, "mappings", result)
		return nil
	}
	return mappings
}

// degrade records a failed fetch; the run continues with empty data.
func (p *Pipeline) degrade(ctx context.Context, dataset string, result *Result) {
	result.DegradedFetches = append(result.DegradedFetches, dataset)
	counterAdd(ctx, telemetry.FetchErrors, 1, attribute.String("dataset", dataset))
	telemetry.Ctx(ctx).Warn().Str("dataset", dataset).Msg("fetch failed, continuing with empty dataset")
}

func (p *Pipeline) buildLookup(ctx context.Context, apps []types.Application) *lookup.Index {
	ctx, span := telemetry.Tracer.Start(ctx, "lookup.build")
	defer span.End()
	start := time.Now()

	idx := lookup.Build(apps)
	telemetry.LogPhase(ctx, "build lookup", start, nil)
	return idx
}

func (p *Pipeline) extractRows(ctx context.Context, mappings []types.Mapping, idx *lookup.Index, apps []types.Application, result *Result) ([]types.ResourceRow, []types.ServiceRow) {
	ctx, span := telemetry.Tracer.Start(ctx, "extract")
	defer span.End()
	start := time.Now()

	resourceRows, matched := extract.Resources(mappings, idx)
	serviceRows := extract.Services(apps)

	result.ResourceRows = len(resourceRows)
	result.ServiceRows = len(serviceRows)
	result.LookupMatches = matched
	counterAdd(ctx, telemetry.RowsExtracted, int64(len(resourceRows)), attribute.String("report", "resources"))
	counterAdd(ctx, telemetry.RowsExtracted, int64(len(serviceRows)), attribute.String("report", "services"))

	telemetry.LogPhase(ctx, "extract rows", start, nil)
	return resourceRows, serviceRows
}

func (p *Pipeline) enrich(ctx context.Context, rows []types.ResourceRow) {
	ctx, span := telemetry.Tracer.Start(ctx, "enrich")
	defer span.End()
	start := time.Now()

	p.enricher.Enrich(ctx, rows)
	telemetry.LogPhase(ctx, "enrich rows", start, nil)
}

func (p *Pipeline) emit(ctx context.Context, params Params, appsNode *types.Node, resourceRows []types.ResourceRow, serviceRows []types.ServiceRow) (report.Paths, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "report.write")
	defer span.End()
	start := time.Now()

	meta := types.MetaFromNode(appsNode)
	if meta.AppCode == "" {
		meta.AppCode = params.AppCode
	}

	dir := report.OutputDir(params.OutputRoot, meta)
	paths, err := report.Write(dir, p.now(), resourceRows, serviceRows)
	telemetry.LogPhase(ctx, "write reports", start, err)
	return paths, err
}

func (p *Pipeline) record(ctx context.Context, params Params, startedAt time.Time, result Result) {
	if p.history == nil {
		return
	}

	err := p.history.Append(runlog.Record{
		StartedAt:       startedAt,
		FinishedAt:      p.now(),
		AppCode:         params.AppCode,
		Segment:         params.Segment,
		Month:           params.Month,
		ResourceRows:    result.ResourceRows,
		ServiceRows:     result.ServiceRows,
		LookupEntries:   result.LookupEntries,
		LookupMatches:   result.LookupMatches,
		CacheHits:       result.CacheHits,
		LookupCalls:     result.LookupCalls,
		ResourcesPath:   result.Paths.Resources,
		ServicesPath:    result.Paths.Services,
		DegradedFetches: result.DegradedFetches,
	})
	if err != nil {
		// audit-only; never fails the run
		telemetry.Ctx(ctx).Warn().Err(err).Msg("run history append failed")
	}
}

// counterAdd tolerates uninitialized instruments so the pipeline works
// without InitOTEL in tests.
func counterAdd(ctx context.Context, c metric.Int64Counter, v int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, v, metric.WithAttributes(attrs...))
}

func gaugeRecord(ctx context.Context, g metric.Int64Gauge, v int64) {
	if g == nil {
		return
	}
	g.Record(ctx, v)
}
