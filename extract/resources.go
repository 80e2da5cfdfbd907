// Package extract flattens the two source datasets into report rows.
package extract

import (
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/lookup"
	"github.com/yairfalse/kartta/types"
)

// Resources builds one resources-report row per mapping record, joined
// against the lookup index by normalized resource id. Rows keep input
// order; nothing is filtered or deduplicated. Misses join against an
// all-empty entry. The matched count is observability data, never used
// to filter rows.
func Resources(mappings []types.Mapping, idx *lookup.Index) ([]types.ResourceRow, int) {
	rows := make([]types.ResourceRow, 0, len(mappings))
	matched := 0

	for _, m := range mappings {
		entry, ok := idx.Get(lookup.Normalize(m.ResourceID))
		if ok {
			matched++
		}

		rows = append(rows, types.ResourceRow{
			ResourceName:        m.Name,
			ResourceType:        m.SysClass,
			CINumber:            m.CINumber,
			BusinessApplication: m.AppCINumber,
			MeterCategory:       lookup.MeterCategory(m.ResourceID),
			AppCode:             m.AppCode,
			AppName:             m.AppName,
			AppCostCenter:       m.AppCostCenter,
			Segment:             m.Segment,
			SubSegment:          m.SubSegment,
			ResourceID:          m.ResourceID,
			ServiceName:         entry.ServiceName,
			ServiceCINumber:     entry.ServiceCINumber,
			ServiceClass:        entry.ServiceClass,
			ProcessState:        entry.ProcessState,
		})
	}

	log.Info().
		Int("rows", len(rows)).
		Int("matched", matched).
		Int("unmatched", len(rows)-matched).
		Msg("extracted resource rows")

	return rows, matched
}
