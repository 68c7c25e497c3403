package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ncastellan/netrecon/pkg/scanner"
)

// processHosts converts parsed scan results into report views, sorted by IP
// in natural octet order so 192.168.1.2 comes before 192.168.1.10.
func processHosts(hosts []scanner.ParsedHost) []ReportHost {
	views := make([]ReportHost, 0, len(hosts))

	for _, host := range hosts {
		view := ReportHost{
			IP:       host.IP,
			Hostname: host.Hostname,
			MAC:      host.MAC,
			Vendor:   host.Vendor,
			OS:       host.OS,
			IsVM:     host.IsVM,
			VMType:   host.VMType,
			Services: make([]ReportService, 0, len(host.Ports)),
		}
		if view.Hostname == "" {
			view.Hostname = "Unknown"
		}
		if view.IsVM && view.VMType == "" {
			view.VMType = "VM"
		}

		for _, port := range host.Ports {
			view.Services = append(view.Services, ReportService{
				Port:     port.Port,
				Protocol: strings.ToUpper(port.Protocol),
				Service:  port.Service,
				Details:  serviceDetails(port),
				URL:      serviceURL(host.IP, port),
				SSH:      sshCommand(host.IP, port),
			})
		}

		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return ipLess(views[i].IP, views[j].IP)
	})

	return views
}

// generateSummary creates statistics about the scanned devices for the dashboard
func generateSummary(hosts []ReportHost) Summary {
	summary := Summary{TotalDevices: len(hosts)}
	for _, host := range hosts {
		if host.IsVM {
			summary.VirtualMachines++
		}
		summary.TotalServices += len(host.Services)
	}
	return summary
}

// serviceDetails joins product, version and extra info into a single column.
func serviceDetails(port scanner.ParsedPort) string {
	details := make([]string, 0, 3)
	if port.Product != "" {
		details = append(details, port.Product)
	}
	if port.Version != "" {
		details = append(details, port.Version)
	}
	if port.ExtraInfo != "" {
		details = append(details, port.ExtraInfo)
	}
	if len(details) == 0 {
		return "N/A"
	}
	return strings.Join(details, " ")
}

// serviceURL builds a clickable link for web services, empty otherwise.
func serviceURL(ip string, port scanner.ParsedPort) string {
	service := port.Service
	if service != "http" && service != "https" && !strings.Contains(service, "http") {
		return ""
	}
	scheme := "http"
	if strings.Contains(service, "ssl") || service == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, ip, port.Port)
}

func sshCommand(ip string, port scanner.ParsedPort) string {
	if port.Service != "ssh" {
		return ""
	}
	return fmt.Sprintf("ssh %s -p %d", ip, port.Port)
}

// ipLess compares dotted quads numerically, falling back to string order for
// anything that does not look like IPv4.
func ipLess(a, b string) bool {
	av, aok := ipKey(a)
	bv, bok := ipKey(b)
	if aok && bok {
		return av < bv
	}
	return a < b
}

func ipKey(ip string) (uint64, bool) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var key uint64
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return 0, false
		}
		key = key<<8 | n
	}
	return key, true
}
