package report

// ReportService is an optimized representation of a discovered service for
// report generation. Details and access links are precomputed so templates
// stay simple.
type ReportService struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service"`
	Details  string `json:"details"`
	URL      string `json:"url,omitempty"`
	SSH      string `json:"ssh,omitempty"`
}

// ReportHost is the per-device view rendered by the HTML template and the
// workbook sheets.
type ReportHost struct {
	IP       string          `json:"ip"`
	Hostname string          `json:"hostname"`
	MAC      string          `json:"mac"`
	Vendor   string          `json:"vendor"`
	OS       string          `json:"os,omitempty"`
	IsVM     bool            `json:"is_vm"`
	VMType   string          `json:"vm_type,omitempty"`
	Services []ReportService `json:"services"`
}

// Summary contains report statistics
type Summary struct {
	TotalDevices    int `json:"total_devices"`
	VirtualMachines int `json:"virtual_machines"`
	TotalServices   int `json:"total_services"`
}

// HTMLReportData contains structured data for the HTML template
type HTMLReportData struct {
	Title       string       `json:"title"`
	Summary     Summary      `json:"summary"`
	Hosts       []ReportHost `json:"hosts"`
	GeneratedAt string       `json:"generated_at"`
}
