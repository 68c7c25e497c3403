// Package mcptools exposes the scan database to AI assistants through the
// Model Context Protocol. Every tool returns a formatted text block so the
// output reads well inside a conversation.
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ncastellan/netrecon/db"
	"github.com/spf13/viper"
)

// ScanLauncher runs a pending scan through the whole pipeline. Satisfied by
// orchestrator.Orchestrator; tests plug in stubs.
type ScanLauncher interface {
	ExecuteScan(ctx context.Context, scanID uint, networks []string) error
}

// toolset carries the shared dependencies of every tool handler.
type toolset struct {
	store    *db.DatabaseConnection
	launcher ScanLauncher
}

// New builds the MCP server with all tools registered. The launcher may be
// nil, in which case start_scan reports the service as unavailable.
func New(store *db.DatabaseConnection, launcher ScanLauncher) *server.MCPServer {
	t := &toolset{store: store, launcher: launcher}

	s := server.NewMCPServer(
		viper.GetString("app.name"),
		viper.GetString("app.version"),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_scans",
		mcp.WithDescription("List all network scans with optional filtering by status."),
		mcp.WithString("status",
			mcp.Description("Filter by scan status (pending, running, completed, failed, cancelled)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of scans to return (default: 10)")),
	), t.handleListScans)

	s.AddTool(mcp.NewTool("get_scan_details",
		mcp.WithDescription("Get detailed information about a specific scan including all discovered hosts."),
		mcp.WithNumber("scan_id", mcp.Required(),
			mcp.Description("The ID of the scan to retrieve")),
	), t.handleGetScanDetails)

	s.AddTool(mcp.NewTool("query_hosts",
		mcp.WithDescription("Search for hosts by IP address, hostname, or other properties."),
		mcp.WithString("ip",
			mcp.Description("Filter by IP address (partial match supported)")),
		mcp.WithString("hostname",
			mcp.Description("Filter by hostname (partial match supported)")),
		mcp.WithBoolean("is_vm",
			mcp.Description("Filter for VMs/containers only (true/false)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of hosts to return (default: 20)")),
	), t.handleQueryHosts)

	s.AddTool(mcp.NewTool("get_host_services",
		mcp.WithDescription("Get all services (open ports) for a specific host."),
		mcp.WithNumber("host_id", mcp.Required(),
			mcp.Description("The ID of the host")),
	), t.handleGetHostServices)

	s.AddTool(mcp.NewTool("get_network_stats",
		mcp.WithDescription("Get overall network statistics including total hosts, VMs, scans, etc."),
	), t.handleGetNetworkStats)

	s.AddTool(mcp.NewTool("list_vms",
		mcp.WithDescription("List all detected virtual machines and containers."),
		mcp.WithString("vm_type",
			mcp.Description("Filter by VM type (e.g. VMware, Docker, LXC, VirtualBox)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of VMs to return (default: 50)")),
	), t.handleListVMs)

	s.AddTool(mcp.NewTool("search_service",
		mcp.WithDescription("Find all hosts running a specific service."),
		mcp.WithString("service_name", mcp.Required(),
			mcp.Description("Service name to search for (e.g. ssh, http, https, mysql)")),
		mcp.WithNumber("port",
			mcp.Description("Optional port number to filter by")),
	), t.handleSearchService)

	s.AddTool(mcp.NewTool("get_network_topology",
		mcp.WithDescription("Get network topology and traceroute information for a host."),
		mcp.WithNumber("host_id", mcp.Required(),
			mcp.Description("The ID of the host to get traceroute for")),
	), t.handleGetNetworkTopology)

	s.AddTool(mcp.NewTool("start_scan",
		mcp.WithDescription("Start a new network scan. Auto-detects the current network when no networks are given."),
		mcp.WithArray("networks",
			mcp.Description("Networks to scan in CIDR format, e.g. [\"192.168.1.0/24\"]"),
			mcp.Items(map[string]interface{}{"type": "string"})),
	), t.handleStartScan)

	s.AddTool(mcp.NewTool("find_vulnerabilities",
		mcp.WithDescription("Search for hosts with specific script results or vulnerabilities detected by NSE scripts."),
		mcp.WithString("script_name",
			mcp.Description("NSE script name to search for (e.g. ssl-cert, http-title, banner)")),
	), t.handleFindVulnerabilities)

	s.AddTool(mcp.NewTool("get_scan_progress",
		mcp.WithDescription("Get detailed progress information for an in-progress scan, including per-host scan status."),
		mcp.WithNumber("scan_id", mcp.Required(),
			mcp.Description("The ID of the scan to check progress for")),
	), t.handleGetScanProgress)

	s.AddTool(mcp.NewTool("list_schedules",
		mcp.WithDescription("List all scheduled scans with next run times."),
		mcp.WithBoolean("enabled_only",
			mcp.Description("Only show enabled schedules (default: false)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of schedules to return (default: 20)")),
	), t.handleListSchedules)

	s.AddTool(mcp.NewTool("get_schedule_details",
		mcp.WithDescription("Get details about a specific scan schedule."),
		mcp.WithNumber("schedule_id", mcp.Required(),
			mcp.Description("The ID of the schedule to retrieve")),
	), t.handleGetScheduleDetails)

	s.AddTool(mcp.NewTool("list_users",
		mcp.WithDescription("List all users (usernames and roles only, no sensitive data)."),
	), t.handleListUsers)

	s.AddTool(mcp.NewTool("get_system_health",
		mcp.WithDescription("Get system health including stuck scans, scheduler status, and resource usage."),
	), t.handleGetSystemHealth)

	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout. This is the
// transport Claude Desktop and most local MCP clients speak.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ServeSSE blocks serving the MCP protocol over HTTP server-sent events on
// the given listen address.
func ServeSSE(s *server.MCPServer, addr string) error {
	return server.NewSSEServer(s).Start(addr)
}
