package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceRow_Record_MatchesHeader(t *testing.T) {
	row := ResourceRow{
		ResourceName:    "vm1",
		ResourceID:      "/subscriptions/x/vm1",
		NewRelicAccount: "MLF-PROD",
		Infrastructure:  true,
	}

	rec := row.Record()
	assert.Len(t, rec, len(ResourceHeader))
	assert.Equal(t, "vm1", rec[0])
	assert.Equal(t, "/subscriptions/x/vm1", rec[10])
	assert.Equal(t, "MLF-PROD", rec[15])
	assert.Equal(t, "Yes", rec[16])

	assert.Equal(t, "No", ResourceRow{}.Record()[16])
}

func TestServiceRow_Record_MatchesHeader(t *testing.T) {
	row := ServiceRow{
		ResourceName:   "svc-a",
		AppCode:        "APP1",
		ParentCINumber: "APM0001",
		ProcessState:   "live",
	}

	rec := row.Record()
	assert.Len(t, rec, len(ServiceHeader))
	assert.Equal(t, "svc-a", rec[0])
	assert.Equal(t, "APP1", rec[3])
	assert.Equal(t, "APM0001", rec[5])
	assert.Equal(t, "live", rec[6])
}
