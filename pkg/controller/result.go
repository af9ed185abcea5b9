package controller

// ScanResultResponse is the JSON shape returned by GET /jobs/{job_id}/results
// (spec.md §6 ScanResultResponse).
type ScanResultResponse struct {
	GitURL              string              `json:"git_url"`
	ScanType             string              `json:"scan_type"`
	Dependencies         map[string]bool     `json:"dependencies"`
	InfrastructureUsage  map[string]bool     `json:"infrastructure_usage"`
	TotalProjects        int                 `json:"total_projects,omitempty"`
	SuccessfulScans      int                 `json:"successful_scans,omitempty"`
	FailedScans          int                 `json:"failed_scans,omitempty"`
	ProjectResults       []ProjectScanResult `json:"project_results,omitempty"`
	FailedProjects       []FailedProject     `json:"failed_projects,omitempty"`
}

// ProjectScanResult is one entry in a group ScanResultResponse's
// project_results list.
type ProjectScanResult struct {
	ProjectName         string          `json:"project_name"`
	GitURL              string          `json:"git_url"`
	Dependencies        map[string]bool `json:"dependencies,omitempty"`
	InfrastructureUsage map[string]bool `json:"infrastructure_usage,omitempty"`
	Status              string          `json:"status"`
	Error               string          `json:"error,omitempty"`
}

// FailedProject is one entry in a group ScanResultResponse's failed_projects
// list.
type FailedProject struct {
	ProjectName string `json:"project_name"`
	GitURL      string `json:"git_url"`
	Error       string `json:"error"`
}
