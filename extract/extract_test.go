package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kartta/lookup"
	"github.com/yairfalse/kartta/types"
)

func mustNode(t *testing.T, doc string) *types.Node {
	t.Helper()
	n, err := types.ParseNode([]byte(doc))
	require.NoError(t, err)
	return n
}

func TestResources_JoinHitAndMiss(t *testing.T) {
	idx := lookup.Build([]types.Application{{
		Services: []types.Service{{
			Name:      "svc-a",
			CINumber:  "CI100",
			SysClass:  "cmdb_ci_service",
			Resources: []types.Resource{{ID: "VM-01"}},
		}},
	}})

	mappings := []types.Mapping{
		{
			ResourceID: "/subscriptions/x/providers/Microsoft.Compute/virtualMachines/vm-01",
			Name:       "vm-01",
			AppCode:    "APP1",
		},
		{ResourceID: "vm-01", Name: "joined"},
		{ResourceID: "vm-99", Name: "orphan"},
	}

	rows, matched := Resources(mappings, idx)
	require.Len(t, rows, len(mappings))
	// only the bare-id mapping joins; the full path is not an indexed id
	assert.Equal(t, 1, matched)

	// meter category derived from the mapping's resource id field
	assert.Equal(t, "Microsoft.Compute/virtualMachines", rows[0].MeterCategory)
	assert.Equal(t, "", rows[1].MeterCategory)

	// case-insensitive join hit
	joined := rows[1]
	assert.Equal(t, "svc-a", joined.ServiceName)
	assert.Equal(t, "CI100", joined.ServiceCINumber)
	assert.Equal(t, "cmdb_ci_service", joined.ServiceClass)

	// miss defaults every enrichment field to empty
	orphan := rows[2]
	assert.Equal(t, "", orphan.ServiceName)
	assert.Equal(t, "", orphan.ServiceCINumber)
	assert.Equal(t, "", orphan.ServiceClass)
	assert.Equal(t, "", orphan.ProcessState)
	assert.Equal(t, "orphan", orphan.ResourceName)
}

func TestResources_RowCountInvariant(t *testing.T) {
	idx := lookup.Build(nil)

	mappings := []types.Mapping{
		{ResourceID: "a"}, {ResourceID: "a"}, {ResourceID: ""},
	}

	// one row per input record, duplicates and empties included
	rows, matched := Resources(mappings, idx)
	assert.Len(t, rows, len(mappings))
	assert.Equal(t, 0, matched)
}

func TestResources_Empty(t *testing.T) {
	rows, matched := Resources(nil, lookup.Build(nil))
	assert.Empty(t, rows)
	assert.Equal(t, 0, matched)
}

func TestServices_ProcessStatePrecedence(t *testing.T) {
	apps := []types.Application{{
		Code:  "APP1",
		APMID: "APM0001",
		Raw:   mustNode(t, `{"process_state": "live"}`),
		Services: []types.Service{
			{
				Name:     "overriding",
				SysClass: "cmdb_ci_service",
				CINumber: "CI1",
				Env:      "prod",
				Raw:      mustNode(t, `{"state": {"process_state": "retired"}}`),
			},
			{
				Name: "inheriting",
				Raw:  mustNode(t, `{}`),
			},
		},
	}}

	rows := Services(apps)
	require.Len(t, rows, 2)

	assert.Equal(t, types.ServiceRow{
		ResourceName:   "overriding",
		ResourceType:   "cmdb_ci_service",
		CINumber:       "CI1",
		AppCode:        "APP1",
		Environment:    "prod",
		ParentCINumber: "APM0001",
		ProcessState:   "retired",
	}, rows[0])

	assert.Equal(t, "live", rows[1].ProcessState)
	assert.Equal(t, "APP1", rows[1].AppCode)
}

func TestServices_NoStateAnywhere(t *testing.T) {
	apps := []types.Application{{
		Services: []types.Service{{Name: "bare"}},
	}}

	rows := Services(apps)
	require.Len(t, rows, 1)
	// column present, value empty
	assert.Equal(t, "", rows[0].ProcessState)
}
