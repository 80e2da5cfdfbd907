package types

// Column order in both reports is a compatibility contract for
// downstream consumers. Do not reorder or rename.

// ResourceHeader is the resources report header, in emission order.
var ResourceHeader = []string{
	"Resource Name",
	"Resource Type",
	"CI Number",
	"Business Application",
	"Meter Category",
	"App Code",
	"App Name",
	"App Cost Center",
	"Segment",
	"Sub Segment",
	"Resource ID",
	"app_service_name",
	"app_service_ci_number",
	"Resource Type- Class",
	"Process State",
	"New Relic Account",
	"Infrastructure",
}

// ServiceHeader is the services report header, in emission order.
var ServiceHeader = []string{
	"Resource Name",
	"Resource Type",
	"CI Number",
	"Application Code",
	"Environment",
	"Parent CI Number",
	"Process State",
}

// ResourceRow is one resources-report row: a Mapping record joined with
// its service enrichment fields and the New Relic classification.
type ResourceRow struct {
	ResourceName        string
	ResourceType        string
	CINumber            string
	BusinessApplication string
	MeterCategory       string
	AppCode             string
	AppName             string
	AppCostCenter       string
	Segment             string
	SubSegment          string
	ResourceID          string
	ServiceName         string
	ServiceCINumber     string
	ServiceClass        string
	ProcessState        string
	NewRelicAccount     string
	Infrastructure      bool
}

// Record renders the row in ResourceHeader order.
func (r ResourceRow) Record() []string {
	infra := "No"
	if r.Infrastructure {
		infra = "Yes"
	}
	return []string{
		r.ResourceName,
		r.ResourceType,
		r.CINumber,
		r.BusinessApplication,
		r.MeterCategory,
		r.AppCode,
		r.AppName,
		r.AppCostCenter,
		r.Segment,
		r.SubSegment,
		r.ResourceID,
		r.ServiceName,
		r.ServiceCINumber,
		r.ServiceClass,
		r.ProcessState,
		r.NewRelicAccount,
		infra,
	}
}

// ServiceRow is one services-report row.
type ServiceRow struct {
	ResourceName   string
	ResourceType   string
	CINumber       string
	AppCode        string
	Environment    string
	ParentCINumber string
	ProcessState   string
}

// Record renders the row in ServiceHeader order.
func (r ServiceRow) Record() []string {
	return []string{
		r.ResourceName,
		r.ResourceType,
		r.CINumber,
		r.AppCode,
		r.Environment,
		r.ParentCINumber,
		r.ProcessState,
	}
}
