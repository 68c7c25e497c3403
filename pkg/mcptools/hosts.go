package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ncastellan/netrecon/db"
)

func (t *toolset) handleQueryHosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	filter := db.HostFilter{
		IPContains:       stringArg(args, "ip", ""),
		HostnameContains: stringArg(args, "hostname", ""),
		IsVM:             boolArg(args, "is_vm"),
		Limit:            intArg(args, "limit", 20),
	}

	hosts, err := t.store.FilterHosts(filter)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(hosts) == 0 {
		return newTextResult("No hosts found matching the criteria."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d host(s):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(&b, "Host ID: %d\n", host.ID)
		fmt.Fprintf(&b, "  IP: %s\n", host.IPAddress)
		if host.Hostname != "" {
			fmt.Fprintf(&b, "  Hostname: %s\n", host.Hostname)
		}
		if host.MACAddress != "" {
			vendor := host.Vendor
			if vendor == "" {
				vendor = "unknown vendor"
			}
			fmt.Fprintf(&b, "  MAC: %s (%s)\n", host.MACAddress, vendor)
		}
		if host.OSName != "" {
			fmt.Fprintf(&b, "  OS: %s\n", host.OSName)
		}
		if host.IsVM {
			fmt.Fprintf(&b, "  Type: Virtual Machine (%s)\n", host.VMType)
		}
		fmt.Fprintf(&b, "  Services: %d open port(s)\n", len(host.Ports))
		fmt.Fprintf(&b, "  Scan ID: %d\n\n", host.ScanID)
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetHostServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	hostID := intArg(args, "host_id", 0)
	if hostID <= 0 {
		return errResult("host_id is required"), nil
	}

	host, err := t.store.GetHostByID(uint(hostID))
	if err != nil {
		return newTextResult(fmt.Sprintf("Host %d not found", hostID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Services on %s", host.IPAddress)
	if host.Hostname != "" {
		fmt.Fprintf(&b, " (%s)", host.Hostname)
	}
	fmt.Fprintf(&b, "\n%s\n\n", divider)

	if len(host.Ports) == 0 {
		b.WriteString("No open ports detected.\n")
		return newTextResult(b.String()), nil
	}

	fmt.Fprintf(&b, "Total Open Ports: %d\n\n", len(host.Ports))
	for _, port := range host.Ports {
		service := port.Service
		if service == "" {
			service = "unknown"
		}
		fmt.Fprintf(&b, "Port %d/%s:\n", port.Port, port.Protocol)
		fmt.Fprintf(&b, "  Service: %s\n", service)
		if port.Product != "" {
			fmt.Fprintf(&b, "  Product: %s\n", port.Product)
		}
		if port.Version != "" {
			fmt.Fprintf(&b, "  Version: %s\n", port.Version)
		}
		if port.ExtraInfo != "" {
			fmt.Fprintf(&b, "  Info: %s\n", port.ExtraInfo)
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleListVMs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	isVM := true
	filter := db.HostFilter{
		IsVM:           &isVM,
		VMTypeContains: stringArg(args, "vm_type", ""),
		Limit:          intArg(args, "limit", 50),
	}

	vms, err := t.store.FilterHosts(filter)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(vms) == 0 {
		return newTextResult("No virtual machines or containers found."), nil
	}

	// Group by VM type, keeping first-appearance order.
	var typeOrder []string
	byType := make(map[string][]db.Host)
	for _, vm := range vms {
		key := vm.VMType
		if key == "" {
			key = "Unknown"
		}
		if _, seen := byType[key]; !seen {
			typeOrder = append(typeOrder, key)
		}
		byType[key] = append(byType[key], vm)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d virtual machine(s)/container(s):\n\n", len(vms))
	for _, key := range typeOrder {
		group := byType[key]
		fmt.Fprintf(&b, "%s (%d):\n", key, len(group))
		for _, vm := range group {
			fmt.Fprintf(&b, "  - %s", vm.IPAddress)
			if vm.Hostname != "" {
				fmt.Fprintf(&b, " (%s)", vm.Hostname)
			}
			fmt.Fprintf(&b, " - %d service(s)\n", len(vm.Ports))
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleSearchService(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	serviceName := stringArg(args, "service_name", "")
	if serviceName == "" {
		return errResult("service_name is required"), nil
	}
	port := intArg(args, "port", 0)

	hosts, err := t.store.FindHostsByService(serviceName, port)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(hosts) == 0 {
		return newTextResult(fmt.Sprintf("No hosts found running service '%s'", serviceName)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found '%s' on %d host(s):\n\n", serviceName, len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(&b, "Host: %s", host.IPAddress)
		if host.Hostname != "" {
			fmt.Fprintf(&b, " (%s)", host.Hostname)
		}
		b.WriteString("\n")
		for _, p := range host.Ports {
			fmt.Fprintf(&b, "  Port %d/%s: %s", p.Port, p.Protocol, p.Service)
			if p.Product != "" {
				fmt.Fprintf(&b, " - %s", p.Product)
			}
			if p.Version != "" {
				fmt.Fprintf(&b, " %s", p.Version)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetNetworkTopology(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	hostID := intArg(args, "host_id", 0)
	if hostID <= 0 {
		return errResult("host_id is required"), nil
	}

	host, err := t.store.GetHostByID(uint(hostID))
	if err != nil {
		return newTextResult(fmt.Sprintf("Host %d not found", hostID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Network Topology for %s", host.IPAddress)
	if host.Hostname != "" {
		fmt.Fprintf(&b, " (%s)", host.Hostname)
	}
	fmt.Fprintf(&b, "\n%s\n\n", divider)

	if host.Distance > 0 {
		fmt.Fprintf(&b, "Network Distance: %d hop(s)\n\n", host.Distance)
	}
	if host.UptimeSeconds > 0 {
		days := host.UptimeSeconds / 86400
		hours := (host.UptimeSeconds % 86400) / 3600
		fmt.Fprintf(&b, "Uptime: %d days, %d hours\n", days, hours)
		if host.LastBoot != "" {
			fmt.Fprintf(&b, "Last Boot: %s\n", host.LastBoot)
		}
		b.WriteString("\n")
	}

	hops, err := t.store.GetTracerouteForHost(host.ID)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(hops) == 0 {
		b.WriteString("No traceroute data available.\n")
		return newTextResult(b.String()), nil
	}

	fmt.Fprintf(&b, "Traceroute Path:\n%s\n", thinDivider)
	for _, hop := range hops {
		fmt.Fprintf(&b, "Hop %d: %s", hop.HopNumber, hop.IPAddress)
		if hop.Hostname != "" {
			fmt.Fprintf(&b, " (%s)", hop.Hostname)
		}
		if hop.RTTMs > 0 {
			fmt.Fprintf(&b, " - %.2fms", hop.RTTMs)
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

// scriptFinding is one NSE script hit joined with its host and port context.
type scriptFinding struct {
	host   db.Host
	port   db.Port
	script string
	output string
}

func (t *toolset) handleFindVulnerabilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	scriptName := stringArg(args, "script_name", "")

	ports, err := t.store.ListPortsWithScriptOutput()
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	hostIDs := make([]uint, 0, len(ports))
	seen := make(map[uint]bool)
	for _, port := range ports {
		if !seen[port.HostID] {
			seen[port.HostID] = true
			hostIDs = append(hostIDs, port.HostID)
		}
	}
	hosts, err := t.store.GetHostsByIDs(hostIDs)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	hostByID := make(map[uint]db.Host, len(hosts))
	for _, host := range hosts {
		hostByID[host.ID] = host
	}

	var findings []scriptFinding
	for _, port := range ports {
		var scripts map[string]string
		if err := json.Unmarshal(port.ScriptOutput, &scripts); err != nil {
			continue
		}
		host, ok := hostByID[port.HostID]
		if !ok {
			continue
		}
		if scriptName != "" {
			if output, ok := scripts[scriptName]; ok {
				findings = append(findings, scriptFinding{host: host, port: port, script: scriptName, output: output})
			}
			continue
		}
		ids := make([]string, 0, len(scripts))
		for id := range scripts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			findings = append(findings, scriptFinding{host: host, port: port, script: id, output: scripts[id]})
		}
	}

	if len(findings) == 0 {
		msg := "No script results found"
		if scriptName != "" {
			msg += fmt.Sprintf(" for '%s'", scriptName)
		}
		return newTextResult(msg), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d script result(s)", len(findings))
	if scriptName != "" {
		fmt.Fprintf(&b, " for '%s'", scriptName)
	}
	b.WriteString(":\n\n")

	shown := findings
	if len(shown) > 20 {
		shown = shown[:20]
	}
	for _, item := range shown {
		fmt.Fprintf(&b, "Host: %s", item.host.IPAddress)
		if item.host.Hostname != "" {
			fmt.Fprintf(&b, " (%s)", item.host.Hostname)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Port: %d/%s (%s)\n", item.port.Port, item.port.Protocol, item.port.Service)
		fmt.Fprintf(&b, "Script: %s\n", item.script)
		preview := item.output
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Fprintf(&b, "Output: %s\n\n", preview)
	}
	if len(findings) > 20 {
		fmt.Fprintf(&b, "... and %d more results\n", len(findings)-20)
	}
	return newTextResult(b.String()), nil
}
