package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/rs/zerolog/log"
)

var divider = strings.Repeat("=", 50)
var thinDivider = strings.Repeat("-", 50)

var validScanStatuses = map[db.ScanStatus]bool{
	db.ScanStatusPending:   true,
	db.ScanStatusRunning:   true,
	db.ScanStatusCompleted: true,
	db.ScanStatusFailed:    true,
	db.ScanStatusCancelled: true,
}

func (t *toolset) handleListScans(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	status := db.ScanStatus(strings.ToLower(stringArg(args, "status", "")))
	limit := intArg(args, "limit", 10)

	if status != "" && !validScanStatuses[status] {
		return newTextResult(fmt.Sprintf(
			"Invalid status: %s. Valid options: pending, running, completed, failed, cancelled", status)), nil
	}

	scans, err := t.store.SearchScans(status, limit)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(scans) == 0 {
		return newTextResult("No scans found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d scan(s):\n\n", len(scans))
	for _, scan := range scans {
		fmt.Fprintf(&b, "Scan ID: %d\n", scan.ID)
		fmt.Fprintf(&b, "  Network: %s\n", scan.NetworkRange)
		fmt.Fprintf(&b, "  Status: %s\n", scan.Status)
		fmt.Fprintf(&b, "  Created: %s\n", fmtTime(scan.CreatedAt))
		if scan.StartedAt != nil {
			fmt.Fprintf(&b, "  Started: %s\n", fmtTimePtr(scan.StartedAt))
		}
		if scan.CompletedAt != nil {
			fmt.Fprintf(&b, "  Completed: %s\n", fmtTimePtr(scan.CompletedAt))
			if scan.StartedAt != nil {
				fmt.Fprintf(&b, "  Duration: %.1fs\n", scan.CompletedAt.Sub(*scan.StartedAt).Seconds())
			}
		}
		if scan.ProgressMessage != "" {
			fmt.Fprintf(&b, "  Message: %s\n", scan.ProgressMessage)
		}
		fmt.Fprintf(&b, "  Hosts Found: %d\n\n", len(scan.Hosts))
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetScanDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	scanID := intArg(args, "scan_id", 0)
	if scanID <= 0 {
		return errResult("scan_id is required"), nil
	}

	scan, err := t.store.GetScanWithRelations(uint(scanID))
	if err != nil {
		return newTextResult(fmt.Sprintf("Scan %d not found", scanID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan Details (ID: %d)\n%s\n\n", scan.ID, divider)
	fmt.Fprintf(&b, "Network Range: %s\n", scan.NetworkRange)
	fmt.Fprintf(&b, "Status: %s\n", scan.Status)
	fmt.Fprintf(&b, "Created: %s\n", fmtTime(scan.CreatedAt))
	if scan.StartedAt != nil {
		fmt.Fprintf(&b, "Started: %s\n", fmtTimePtr(scan.StartedAt))
	}
	if scan.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", fmtTimePtr(scan.CompletedAt))
		if scan.StartedAt != nil {
			fmt.Fprintf(&b, "Duration: %.1f seconds\n", scan.CompletedAt.Sub(*scan.StartedAt).Seconds())
		}
	}
	if scan.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", scan.ErrorMessage)
	}

	fmt.Fprintf(&b, "\nHosts Discovered: %d\n%s\n\n", len(scan.Hosts), thinDivider)
	for _, host := range scan.Hosts {
		fmt.Fprintf(&b, "Host: %s\n", host.IPAddress)
		if host.Hostname != "" {
			fmt.Fprintf(&b, "  Hostname: %s\n", host.Hostname)
		}
		if host.MACAddress != "" {
			fmt.Fprintf(&b, "  MAC: %s\n", host.MACAddress)
		}
		if host.Vendor != "" {
			fmt.Fprintf(&b, "  Vendor: %s\n", host.Vendor)
		}
		if host.OSName != "" {
			fmt.Fprintf(&b, "  OS: %s\n", host.OSName)
		}
		if host.IsVM {
			fmt.Fprintf(&b, "  VM Type: %s\n", host.VMType)
		}
		if len(host.Ports) > 0 {
			fmt.Fprintf(&b, "  Open Ports: %d\n", len(host.Ports))
			for i, port := range host.Ports {
				if i == 5 {
					fmt.Fprintf(&b, "    ... and %d more\n", len(host.Ports)-5)
					break
				}
				service := port.Service
				if service == "" {
					service = "unknown"
				}
				fmt.Fprintf(&b, "    - %d/%s: %s\n", port.Port, port.Protocol, service)
			}
		}
		b.WriteString("\n")
	}

	if len(scan.Artifacts) > 0 {
		b.WriteString("\nAvailable Artifacts:\n")
		for _, artifact := range scan.Artifacts {
			fmt.Fprintf(&b, "  - %s: %s\n", artifact.Type, artifact.FilePath)
		}
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetScanProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	scanID := intArg(args, "scan_id", 0)
	if scanID <= 0 {
		return errResult("scan_id is required"), nil
	}

	scan, err := t.store.GetScanByID(uint(scanID))
	if err != nil {
		return newTextResult(fmt.Sprintf("Scan %d not found", scanID)), nil
	}
	hosts, err := t.store.GetHostsForScan(scan.ID)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan Progress (ID: %d)\n%s\n\n", scan.ID, divider)
	fmt.Fprintf(&b, "Status: %s\n", scan.Status)
	fmt.Fprintf(&b, "Progress: %d%%\n", scan.Progress)
	fmt.Fprintf(&b, "Message: %s\n\n", scan.ProgressMessage)

	if len(hosts) == 0 {
		b.WriteString("Total Hosts: 0\n")
		return newTextResult(b.String()), nil
	}

	var pending, scanning, completed, failed int
	for _, host := range hosts {
		switch host.ScanStatus {
		case db.HostScanStatusPending:
			pending++
		case db.HostScanStatusScanning:
			scanning++
		case db.HostScanStatusCompleted:
			completed++
		case db.HostScanStatusFailed:
			failed++
		}
	}

	b.WriteString("Host Status:\n")
	fmt.Fprintf(&b, "  Total: %d\n", len(hosts))
	fmt.Fprintf(&b, "  Completed: %d\n", completed)
	fmt.Fprintf(&b, "  Scanning: %d\n", scanning)
	fmt.Fprintf(&b, "  Pending: %d\n", pending)
	fmt.Fprintf(&b, "  Failed: %d\n\n", failed)

	if scanning > 0 {
		fmt.Fprintf(&b, "Currently Scanning:\n%s\n", thinDivider)
		for _, host := range hosts {
			if host.ScanStatus != db.HostScanStatusScanning {
				continue
			}
			fmt.Fprintf(&b, "  %s", host.IPAddress)
			if host.Hostname != "" {
				fmt.Fprintf(&b, " (%s)", host.Hostname)
			}
			if host.ScanStartedAt != nil {
				fmt.Fprintf(&b, " - %.0fs elapsed", time.Since(*host.ScanStartedAt).Seconds())
			}
			if host.PortsDiscovered > 0 {
				fmt.Fprintf(&b, " - %d ports found", host.PortsDiscovered)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if failed > 0 {
		fmt.Fprintf(&b, "Failed Hosts:\n%s\n", thinDivider)
		for _, host := range hosts {
			if host.ScanStatus != db.HostScanStatusFailed {
				continue
			}
			fmt.Fprintf(&b, "  %s", host.IPAddress)
			if host.ScanError != "" {
				fmt.Fprintf(&b, " - %s", host.ScanError)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleStartScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	networks := stringSliceArg(args, "networks")

	if len(networks) > 0 {
		if err := scanner.ValidateNetworks(networks); err != nil {
			return newTextResult(fmt.Sprintf("Invalid CIDR network: %v", err)), nil
		}
	} else {
		detected, err := scanner.DetectCurrentNetwork()
		if err != nil {
			return newTextResult("Error: Could not auto-detect network. " +
				"Please specify networks manually (e.g. [\"192.168.1.0/24\"])"), nil
		}
		networks = []string{detected}
	}

	if t.launcher == nil {
		return errResult("scan service unavailable"), nil
	}

	scan, err := t.store.CreateScan(&db.Scan{
		Name:            "MCP scan",
		NetworkRange:    strings.Join(networks, ", "),
		Status:          db.ScanStatusPending,
		ProgressMessage: "Scan queued",
	})
	if err != nil {
		return errResult(fmt.Sprintf("could not create scan: %v", err)), nil
	}

	go func(id uint, nets []string) {
		if err := t.launcher.ExecuteScan(context.Background(), id, nets); err != nil {
			log.Error().Err(err).Uint("scan", id).Msg("Background scan failed")
		}
	}(scan.ID, networks)

	var b strings.Builder
	b.WriteString("Scan started successfully!\n\n")
	fmt.Fprintf(&b, "Scan ID: %d\n", scan.ID)
	fmt.Fprintf(&b, "Networks: %s\n", scan.NetworkRange)
	fmt.Fprintf(&b, "Status: %s\n", scan.Status)
	fmt.Fprintf(&b, "Progress: %d%%\n", scan.Progress)
	fmt.Fprintf(&b, "Message: %s\n\n", scan.ProgressMessage)
	fmt.Fprintf(&b, "Use 'get_scan_details(%d)' to check progress.\n", scan.ID)
	fmt.Fprintf(&b, "Use 'get_scan_progress(%d)' for detailed progress information.", scan.ID)
	return newTextResult(b.String()), nil
}
