package extract

import (
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/types"
)

// Services builds one services-report row per contained service. A
// service's own process state overrides its application's; the column
// is always present, empty when neither record carries a value. No
// join against the lookup happens here.
func Services(apps []types.Application) []types.ServiceRow {
	var rows []types.ServiceRow

	for _, app := range apps {
		appState := app.ProcessState()

		for _, svc := range app.Services {
			state := svc.ProcessState()
			if state == "" {
				state = appState
			}

			rows = append(rows, types.ServiceRow{
				ResourceName:   svc.Name,
				ResourceType:   svc.SysClass,
				CINumber:       svc.CINumber,
				AppCode:        app.Code,
				Environment:    svc.Env,
				ParentCINumber: app.APMID,
				ProcessState:   state,
			})
		}
	}

	log.Info().Int("rows", len(rows)).Msg("extracted service rows")
	return rows
}
