// Package types holds the boundary records kartta joins and reports on.
//
// The upstream mapping service returns loosely shaped JSON: fields go
// missing, resource collections arrive as either lists or keyed maps,
// and process state can sit at any depth. Decoding localizes the
// "missing field means empty string" policy here so the rest of the
// pipeline works with plain structs.
package types

// Application is one application from the apps endpoint, with its
// contained services. Raw keeps the decoded subtree for deep field
// searches (process state has no fixed location).
type Application struct {
	Code     string // mfc_app_code
	APMID    string // apm_app_id
	Services []Service
	Raw      *Node
}

// Service is one app service. A service belongs to exactly one
// application and carries its own resource collection.
type Service struct {
	Name      string // app_service_name
	CINumber  string // app_service_ci_number
	SysClass  string // app_service_sys_class_name
	Env       string // mfc_env
	Resources []Resource
	Raw       *Node
}

// Resource is a service-scoped resource reference. Only the identifier
// matters; it exists to be joined against, not reported.
type Resource struct {
	ID string
}

// Mapping is one record from the mappings endpoint, the primary row
// source for the resources report.
type Mapping struct {
	ResourceID    string `json:"path_end_resource_id"`
	Name          string `json:"path_end_name"`
	SysClass      string `json:"path_end_sys_class"`
	CINumber      string `json:"path_end_ci_number"`
	AppCINumber   string `json:"app_ci_number"`
	AppCode       string `json:"app_code"`
	AppName       string `json:"app_name"`
	AppCostCenter string `json:"app_cost_center"`
	Segment       string `json:"segment"`
	SubSegment    string `json:"sub_segment"`
}

// RunMeta is the metadata pulled from the applications endpoint, used
// for naming the per-run output directory.
type RunMeta struct {
	AppCode string
	APMID   string
	AppName string
}

const processStateKey = "process_state"

// ProcessState resolves the application's process state by deep search.
// Empty when no process_state field exists anywhere in the record.
func (a Application) ProcessState() string {
	return processStateOf(a.Raw)
}

// ProcessState resolves the service's own process state. Callers fall
// back to the owning application's state when this is empty.
func (s Service) ProcessState() string {
	return processStateOf(s.Raw)
}

func processStateOf(n *Node) string {
	found, ok := FindFirst(n, processStateKey)
	if !ok {
		return ""
	}
	return found.String()
}

// ApplicationsFromNode decodes the apps payload into typed records.
// A single-object payload is treated as a one-element list.
func ApplicationsFromNode(root *Node) []Application {
	var apps []Application
	for _, n := range listOf(root) {
		if n == nil || n.Kind != ObjectNode {
			continue
		}
		apps = append(apps, Application{
			Code:     n.Str("mfc_app_code"),
			APMID:    n.Str("apm_app_id"),
			Services: servicesFromNode(n.Get("app_services")),
			Raw:      n,
		})
	}
	return apps
}

func servicesFromNode(n *Node) []Service {
	var services []Service
	for _, sn := range n.Elems() {
		if sn == nil || sn.Kind != ObjectNode {
			continue
		}
		services = append(services, Service{
			Name:      sn.Str("app_service_name"),
			CINumber:  sn.Str("app_service_ci_number"),
			SysClass:  sn.Str("app_service_sys_class_name"),
			Env:       sn.Str("mfc_env"),
			Resources: resourcesFromNode(sn.Get("resources")),
			Raw:       sn,
		})
	}
	return services
}

// resourcesFromNode accepts both shapes the service emits: a sequence
// of resource records or a map of id to record.
func resourcesFromNode(n *Node) []Resource {
	var resources []Resource
	for _, rn := range n.Elems() {
		if rn == nil || rn.Kind != ObjectNode {
			continue
		}
		id := rn.Str("resource_id")
		if id == "" {
			id = rn.Str("path_end_resource_id")
		}
		resources = append(resources, Resource{ID: id})
	}
	return resources
}

// MetaFromNode extracts run metadata from the applications payload by
// deep search, so the exact nesting of the endpoint does not matter.
func MetaFromNode(root *Node) RunMeta {
	return RunMeta{
		AppCode: firstString(root, "mfc_app_code"),
		APMID:   firstString(root, "apm_app_id"),
		AppName: firstString(root, "app_name"),
	}
}

func firstString(n *Node, key string) string {
	found, ok := FindFirst(n, key)
	if !ok {
		return ""
	}
	return found.String()
}

// listOf coerces a payload root to a list of records: arrays as-is,
// a lone object as a one-element list.
func listOf(root *Node) []*Node {
	if root == nil {
		return nil
	}
	if root.Kind == ArrayNode {
		return root.Items
	}
	return []*Node{root}
}
