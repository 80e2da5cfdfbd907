package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kartta/newrelic"
	"github.com/yairfalse/kartta/runlog"
	"github.com/yairfalse/kartta/types"
)

type fakeSource struct {
	applications *types.Node
	apps         []types.Application
	mappings     []types.Mapping

	applicationsErr error
	appsErr         error
	mappingsErr     error
}

func (f *fakeSource) FetchApplications(context.Context) (*types.Node, error) {
	return f.applications, f.applicationsErr
}

func (f *fakeSource) FetchApps(context.Context, string) ([]types.Application, error) {
	return f.apps, f.appsErr
}

func (f *fakeSource) FetchMappings(context.Context, string, string, string) ([]types.Mapping, error) {
	return f.mappings, f.mappingsErr
}

type fakeAccounts struct {
	accounts map[string]string
	calls    int
}

func (f *fakeAccounts) AccountName(_ context.Context, name string) (string, error) {
	f.calls++
	if account, ok := f.accounts[name]; ok {
		return account, nil
	}
	return newrelic.NotFound, nil
}

func mustNode(t *testing.T, doc string) *types.Node {
	t.Helper()
	n, err := types.ParseNode([]byte(doc))
	require.NoError(t, err)
	return n
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

// One application with one service owning resource "VM-01", one
// mapping record with resource id "vm-01": the case-insensitive join
// must populate the enrichment fields, and one service row comes out.
func TestRun_EndToEnd(t *testing.T) {
	source := &fakeSource{
		applications: mustNode(t, `[{"mfc_app_code": "APP1", "apm_app_id": "APM0001", "app_name": "Billing"}]`),
		apps: types.ApplicationsFromNode(mustNode(t, `[{
			"mfc_app_code": "APP1",
			"apm_app_id": "APM0001",
			"process_state": "live",
			"app_services": [{
				"app_service_name": "svc-a",
				"app_service_ci_number": "CI100",
				"app_service_sys_class_name": "cmdb_ci_service",
				"mfc_env": "prod",
				"resources": [{"resource_id": "VM-01"}]
			}]
		}]`)),
		mappings: []types.Mapping{{
			ResourceID: "vm-01",
			Name:       "vm-01-name",
			AppCode:    "APP1",
		}},
	}
	accounts := &fakeAccounts{accounts: map[string]string{"vm-01-name": "MLF-PROD"}}
	resolver := newrelic.NewResolver(accounts, newrelic.NotFound)

	history, err := runlog.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = history.Close() }()

	outputRoot := t.TempDir()
	p := New(source, resolver, history)

	result, err := p.Run(context.Background(), Params{
		AppCode:    "APP1",
		Segment:    "ASIA",
		Month:      "2026-07",
		OutputRoot: outputRoot,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ResourceRows)
	assert.Equal(t, 1, result.ServiceRows)
	assert.Equal(t, 1, result.LookupEntries)
	assert.Equal(t, 1, result.LookupMatches)
	assert.Empty(t, result.DegradedFetches)

	// output dir named from fetched metadata
	assert.Equal(t, filepath.Join(outputRoot, "APP1_APM0001_Billing"), result.Paths.Dir)

	resources := readCSV(t, result.Paths.Resources)
	require.Len(t, resources, 2)
	row := resources[1]
	assert.Equal(t, "vm-01-name", row[0])
	assert.Equal(t, "svc-a", row[11])
	assert.Equal(t, "CI100", row[12])
	assert.Equal(t, "cmdb_ci_service", row[13])
	assert.Equal(t, "live", row[14])
	assert.Equal(t, "MLF-PROD", row[15])
	assert.Equal(t, "Yes", row[16])

	services := readCSV(t, result.Paths.Services)
	require.Len(t, services, 2)
	assert.Equal(t, "svc-a", services[1][0])
	assert.Equal(t, "APP1", services[1][3])
	assert.Equal(t, "APM0001", services[1][5])
	assert.Equal(t, "live", services[1][6])

	// run recorded
	records, err := history.List(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "APP1", records[0].AppCode)
	assert.Equal(t, 1, records[0].ResourceRows)
}

func TestRun_DegradedFetches(t *testing.T) {
	source := &fakeSource{
		applicationsErr: errors.New("applications down"),
		appsErr:         errors.New("apps down"),
		mappings:        []types.Mapping{{ResourceID: "vm-01", Name: "vm1"}},
	}
	resolver := newrelic.NewResolver(nil, newrelic.NotFound)

	p := New(source, resolver, nil)
	result, err := p.Run(context.Background(), Params{
		AppCode:    "APP1",
		OutputRoot: t.TempDir(),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"applications", "apps"}, result.DegradedFetches)

	// mappings still produce rows, unjoined and unclassified
	assert.Equal(t, 1, result.ResourceRows)
	assert.Equal(t, 0, result.ServiceRows)
	assert.Equal(t, 0, result.LookupEntries)

	resources := readCSV(t, result.Paths.Resources)
	require.Len(t, resources, 2)
	assert.Equal(t, "", resources[1][11])
	assert.Equal(t, newrelic.NotFound, resources[1][15])
	assert.Equal(t, "No", resources[1][16])

	// metadata fetch failed, so the dir name falls back to the app code
	assert.Equal(t, "APP1", filepath.Base(result.Paths.Dir))
}

func TestRun_AllSourcesDown(t *testing.T) {
	source := &fakeSource{
		applicationsErr: errors.New("down"),
		appsErr:         errors.New("down"),
		mappingsErr:     errors.New("down"),
	}
	resolver := newrelic.NewResolver(nil, newrelic.NotFound)

	p := New(source, resolver, nil)
	result, err := p.Run(context.Background(), Params{OutputRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Len(t, result.DegradedFetches, 3)
	assert.Equal(t, 0, result.ResourceRows)

	// headers still written for downstream consumers
	assert.Equal(t, [][]string{types.ResourceHeader}, readCSV(t, result.Paths.Resources))
	assert.Equal(t, [][]string{types.ServiceHeader}, readCSV(t, result.Paths.Services))
}

func TestRun_MemoizationAcrossRows(t *testing.T) {
	source := &fakeSource{
		mappings: []types.Mapping{
			{ResourceID: "a", Name: "shared"},
			{ResourceID: "b", Name: "shared"},
			{ResourceID: "c", Name: "shared"},
		},
	}
	accounts := &fakeAccounts{accounts: map[string]string{"shared": "MLF-PREPROD"}}
	resolver := newrelic.NewResolver(accounts, newrelic.NotFound)

	p := New(source, resolver, nil)
	result, err := p.Run(context.Background(), Params{OutputRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 1, accounts.calls)
	assert.Equal(t, 1, result.LookupCalls)
	assert.Equal(t, 2, result.CacheHits)
}
