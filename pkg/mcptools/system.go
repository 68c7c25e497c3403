package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/watchdog"
)

func (t *toolset) handleGetNetworkStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.GetNetworkStats()
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	completed, err := t.store.CountScansByStatus(db.ScanStatusCompleted)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	running, err := t.store.CountScansByStatus(db.ScanStatusRunning)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	topServices, err := t.store.TopServices(10)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Network Statistics\n%s\n\n", divider)
	fmt.Fprintf(&b, "Total Scans: %d\n", stats.TotalScans)
	fmt.Fprintf(&b, "  - Completed: %d\n", completed)
	fmt.Fprintf(&b, "  - Failed: %d\n", stats.FailedScans)
	fmt.Fprintf(&b, "  - Running: %d\n", running)
	fmt.Fprintf(&b, "  - Recent (24h): %d\n\n", stats.RecentScans)

	fmt.Fprintf(&b, "Total Hosts Discovered: %d\n", stats.TotalHosts)
	if stats.TotalHosts > 0 {
		vmPercent := float64(stats.TotalVMs) / float64(stats.TotalHosts) * 100
		fmt.Fprintf(&b, "  - Virtual Machines: %d (%.1f%%)\n", stats.TotalVMs, vmPercent)
		fmt.Fprintf(&b, "  - Physical Devices: %d\n\n", stats.TotalHosts-stats.TotalVMs)
	} else {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total Services: %d\n\n", stats.TotalServices)

	if len(topServices) > 0 {
		b.WriteString("Most Common Services:\n")
		for _, svc := range topServices {
			fmt.Fprintf(&b, "  - %s: %d instance(s)\n", svc.Service, svc.Count)
		}
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleListSchedules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	enabledArg := boolArg(args, "enabled_only")
	enabledOnly := enabledArg != nil && *enabledArg
	limit := intArg(args, "limit", 20)

	schedules, err := t.store.ListSchedules()
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if enabledOnly {
		kept := schedules[:0]
		for _, s := range schedules {
			if s.Enabled {
				kept = append(kept, s)
			}
		}
		schedules = kept
	}
	if limit > 0 && len(schedules) > limit {
		schedules = schedules[:limit]
	}
	if len(schedules) == 0 {
		return newTextResult("No schedules found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d schedule(s):\n\n", len(schedules))
	for _, schedule := range schedules {
		fmt.Fprintf(&b, "Schedule ID: %d\n", schedule.ID)
		fmt.Fprintf(&b, "  Name: %s\n", schedule.Name)
		fmt.Fprintf(&b, "  Network Range: %s\n", schedule.NetworkRange)
		fmt.Fprintf(&b, "  Cron Expression: %s\n", schedule.CronExpression)
		fmt.Fprintf(&b, "  Enabled: %s\n", yesNo(schedule.Enabled))
		if schedule.NextRunAt != nil {
			fmt.Fprintf(&b, "  Next Run: %s\n", fmtTimePtr(schedule.NextRunAt))
		}
		if schedule.LastRunAt != nil {
			fmt.Fprintf(&b, "  Last Run: %s\n", fmtTimePtr(schedule.LastRunAt))
		}
		fmt.Fprintf(&b, "  Created: %s\n\n", fmtTime(schedule.CreatedAt))
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetScheduleDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	scheduleID := intArg(args, "schedule_id", 0)
	if scheduleID <= 0 {
		return errResult("schedule_id is required"), nil
	}

	schedule, err := t.store.GetScheduleByID(uint(scheduleID))
	if err != nil {
		return newTextResult(fmt.Sprintf("Schedule %d not found", scheduleID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schedule Details (ID: %d)\n%s\n\n", schedule.ID, divider)
	fmt.Fprintf(&b, "Name: %s\n", schedule.Name)
	fmt.Fprintf(&b, "Network Range: %s\n", schedule.NetworkRange)
	fmt.Fprintf(&b, "Cron Expression: %s\n", schedule.CronExpression)
	fmt.Fprintf(&b, "Enabled: %s\n\n", yesNo(schedule.Enabled))

	b.WriteString("Timing:\n")
	fmt.Fprintf(&b, "  Created: %s\n", fmtTime(schedule.CreatedAt))
	if schedule.NextRunAt != nil {
		fmt.Fprintf(&b, "  Next Run: %s\n", fmtTimePtr(schedule.NextRunAt))
	}
	if schedule.LastRunAt != nil {
		fmt.Fprintf(&b, "  Last Run: %s\n", fmtTimePtr(schedule.LastRunAt))
	}
	b.WriteString("\n")

	recent, err := t.store.GetScansForSchedule(schedule.ID, 5)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(recent) == 0 {
		b.WriteString("No scans have run yet for this schedule.\n")
		return newTextResult(b.String()), nil
	}

	fmt.Fprintf(&b, "Recent Scans (%d):\n%s\n", len(recent), thinDivider)
	for _, scan := range recent {
		fmt.Fprintf(&b, "  Scan %d: %s", scan.ID, scan.Status)
		if scan.StartedAt != nil {
			fmt.Fprintf(&b, " - %s", fmtTimePtr(scan.StartedAt))
		}
		if scan.ErrorMessage != "" {
			msg := scan.ErrorMessage
			if len(msg) > 50 {
				msg = msg[:50]
			}
			fmt.Fprintf(&b, " - Error: %s", msg)
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleListUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, _, err := t.store.ListUsers(0, 500)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(users) == 0 {
		return newTextResult("No users found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d user(s):\n\n", len(users))
	for _, user := range users {
		fmt.Fprintf(&b, "User ID: %d\n", user.ID)
		fmt.Fprintf(&b, "  Username: %s\n", user.Username)
		fmt.Fprintf(&b, "  Role: %s\n", user.Role)
		fmt.Fprintf(&b, "  Active: %s\n", yesNo(user.IsActive))
		if user.Email != "" {
			fmt.Fprintf(&b, "  Email: %s\n", user.Email)
		}
		if user.FullName != "" {
			fmt.Fprintf(&b, "  Full Name: %s\n", user.FullName)
		}
		fmt.Fprintf(&b, "  Created: %s\n", fmtTime(user.CreatedAt))
		if user.LastLoginAt != nil {
			fmt.Fprintf(&b, "  Last Login: %s\n", fmtTimePtr(user.LastLoginAt))
		}
		if user.MustChangePassword {
			b.WriteString("  Status: Must change password\n")
		}
		b.WriteString("\n")
	}
	return newTextResult(b.String()), nil
}

func (t *toolset) handleGetSystemHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now()

	running, err := t.store.GetScansByStatus(db.ScanStatusRunning)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	pending, err := t.store.GetScansByStatus(db.ScanStatusPending)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	var stuck []db.Scan
	for _, scan := range append(running, pending...) {
		if now.Sub(scan.CreatedAt) > watchdog.MaxScanRuntime {
			stuck = append(stuck, scan)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "System Health Report\n%s\n\n", divider)

	if len(stuck) > 0 {
		fmt.Fprintf(&b, "⚠ WARNING: %d potentially stuck scan(s):\n", len(stuck))
		for _, scan := range stuck {
			ageHours := now.Sub(scan.CreatedAt).Hours()
			fmt.Fprintf(&b, "  Scan %d: %s for %.1f hours\n", scan.ID, scan.Status, ageHours)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("✓ No stuck scans detected\n\n")
	}

	recent, err := t.store.GetScansSince(now.Add(-24 * time.Hour))
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(recent) > 0 {
		var completed, failed, runningCount int
		for _, scan := range recent {
			switch scan.Status {
			case db.ScanStatusCompleted:
				completed++
			case db.ScanStatusFailed:
				failed++
			case db.ScanStatusRunning:
				runningCount++
			}
		}
		b.WriteString("Last 24 Hours:\n")
		fmt.Fprintf(&b, "  Total Scans: %d\n", len(recent))
		fmt.Fprintf(&b, "  Completed: %d\n", completed)
		fmt.Fprintf(&b, "  Failed: %d\n", failed)
		fmt.Fprintf(&b, "  Running: %d\n\n", runningCount)
	}

	totalSchedules, enabledSchedules, err := t.store.CountSchedules()
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	b.WriteString("Schedules:\n")
	fmt.Fprintf(&b, "  Total: %d\n", totalSchedules)
	fmt.Fprintf(&b, "  Enabled: %d\n", enabledSchedules)
	fmt.Fprintf(&b, "  Disabled: %d\n\n", totalSchedules-enabledSchedules)

	stats, err := t.store.GetNetworkStats()
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	b.WriteString("Database Statistics:\n")
	fmt.Fprintf(&b, "  Total Scans: %d\n", stats.TotalScans)
	fmt.Fprintf(&b, "  Total Hosts: %d\n", stats.TotalHosts)
	fmt.Fprintf(&b, "  Total VMs: %d\n", stats.TotalVMs)

	b.WriteString("\n")
	if len(stuck) > 0 {
		b.WriteString("Overall Status: WARNING - Stuck scans detected\n")
	} else {
		b.WriteString("Overall Status: HEALTHY\n")
	}
	return newTextResult(b.String()), nil
}
