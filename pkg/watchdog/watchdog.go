package watchdog

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ncastellan/netrecon/db"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// MaxScanRuntime is the wall clock budget for a whole scan.
	MaxScanRuntime = 6 * time.Hour
	// MaxStallTime is how long a scan may go without any row update before
	// it counts as stalled.
	MaxStallTime = 30 * time.Minute
	// MaxPendingAge is how long a scan may sit in pending before its worker
	// is presumed dead.
	MaxPendingAge = time.Hour

	// stuckHostThreshold flags hosts scanning far beyond the subprocess cap.
	stuckHostThreshold = 10 * time.Minute
	// killGrace is how long terminate gets before the hard kill.
	killGrace = 5 * time.Second

	scannerProcessName = "nmap"
)

// StuckHost describes one host sitting in scanning state for too long.
type StuckHost struct {
	IP              string  `json:"ip"`
	DurationMinutes float64 `json:"duration_minutes"`
	StartedAt       string  `json:"started_at"`
}

// ProcessInfo describes an external scanner process belonging to a scan.
type ProcessInfo struct {
	PID            int32   `json:"pid"`
	Cmdline        string  `json:"cmdline"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
}

// Diagnostics explains why a scan looks stuck.
type Diagnostics struct {
	ScanID             uint          `json:"scan_id"`
	Status             db.ScanStatus `json:"status"`
	Progress           int           `json:"progress_percent"`
	ProgressMessage    string        `json:"progress_message"`
	TotalHosts         int           `json:"total_hosts"`
	PendingHosts       int64         `json:"pending_hosts"`
	ScanningHosts      int64         `json:"scanning_hosts"`
	FailedHosts        int64         `json:"failed_hosts"`
	CompletedHosts     int64         `json:"completed_hosts"`
	StuckScanningHosts []StuckHost   `json:"stuck_scanning_hosts,omitempty"`
	Processes          []ProcessInfo `json:"nmap_processes,omitempty"`
	RuntimeHours       float64       `json:"runtime_hours,omitempty"`
	Issues             []string      `json:"issues"`
}

// Watchdog detects scans that stopped making progress, kills their external
// processes and marks them failed with a diagnostic summary. It never touches
// scans in a terminal state.
type Watchdog struct {
	store *db.DatabaseConnection
}

// New builds a watchdog over the given store.
func New(store *db.DatabaseConnection) *Watchdog {
	return &Watchdog{store: store}
}

// Sweep examines every pending and running scan and fixes the stuck ones.
// Returns how many scans were marked failed.
func (w *Watchdog) Sweep() (int, error) {
	running, err := w.store.GetScansByStatus(db.ScanStatusRunning)
	if err != nil {
		return 0, err
	}
	pending, err := w.store.GetScansByStatus(db.ScanStatusPending)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	fixed := 0
	for _, scan := range append(running, pending...) {
		reason := stuckReason(&scan, now)
		if reason == "" {
			continue
		}

		diag := w.Diagnose(&scan)
		log.Warn().Uint("scan", scan.ID).Str("reason", reason).
			Strs("issues", diag.Issues).Msg("Detected stuck scan")

		if killed := w.KillExternal(scan.ID); killed > 0 {
			log.Info().Int("killed", killed).Uint("scan", scan.ID).Msg("Killed scanner process(es) for stuck scan")
		}

		message := fmt.Sprintf("Scan timeout: %s. Issues: %s", reason, strings.Join(diag.Issues, ", "))
		ok, err := w.store.FailScan(scan.ID, message)
		if err != nil {
			log.Error().Err(err).Uint("scan", scan.ID).Msg("Could not mark stuck scan failed")
			continue
		}
		if ok {
			fixed++
		}
	}

	if fixed > 0 {
		log.Info().Int("count", fixed).Msg("Marked stuck scan(s) as failed")
	}
	return fixed, nil
}

// stuckReason returns why the scan counts as stuck, or empty when healthy.
// Checks run in order: hard runtime cap, then the update heartbeat, then
// pending scans whose worker never picked them up.
func stuckReason(scan *db.Scan, now time.Time) string {
	if scan.StartedAt != nil {
		if runtime := now.Sub(*scan.StartedAt); runtime > MaxScanRuntime {
			return fmt.Sprintf("Scan exceeded maximum runtime (%.1f hours)", runtime.Hours())
		}
	}
	if !scan.UpdatedAt.IsZero() {
		if stall := now.Sub(scan.UpdatedAt); stall > MaxStallTime {
			return fmt.Sprintf("No progress for %.1f minutes", stall.Minutes())
		}
	}
	if scan.Status == db.ScanStatusPending && !scan.CreatedAt.IsZero() {
		if now.Sub(scan.CreatedAt) > MaxPendingAge {
			return "Scan stuck in pending state for over 1 hour"
		}
	}
	return ""
}

// Diagnose assembles the stuck report for a scan: host status counts, hosts
// scanning for too long, external processes still alive and total runtime.
func (w *Watchdog) Diagnose(scan *db.Scan) Diagnostics {
	diag := Diagnostics{
		ScanID:          scan.ID,
		Status:          scan.Status,
		Progress:        scan.Progress,
		ProgressMessage: scan.ProgressMessage,
	}

	counts, err := w.store.CountHostStatuses(scan.ID)
	if err != nil {
		log.Warn().Err(err).Uint("scan", scan.ID).Msg("Could not count host statuses")
	} else {
		diag.PendingHosts = counts[db.HostScanStatusPending]
		diag.ScanningHosts = counts[db.HostScanStatusScanning]
		diag.FailedHosts = counts[db.HostScanStatusFailed]
		diag.CompletedHosts = counts[db.HostScanStatusCompleted]
		diag.TotalHosts = int(diag.PendingHosts + diag.ScanningHosts + diag.FailedHosts + diag.CompletedHosts)
	}

	now := time.Now()
	if diag.ScanningHosts > 0 {
		hosts, err := w.store.GetHostsForScan(scan.ID)
		if err != nil {
			log.Warn().Err(err).Uint("scan", scan.ID).Msg("Could not load hosts for diagnostics")
		} else {
			for _, host := range hosts {
				if host.ScanStatus != db.HostScanStatusScanning || host.ScanStartedAt == nil {
					continue
				}
				elapsed := now.Sub(*host.ScanStartedAt)
				if elapsed <= stuckHostThreshold {
					continue
				}
				diag.StuckScanningHosts = append(diag.StuckScanningHosts, StuckHost{
					IP:              host.IPAddress,
					DurationMinutes: math.Round(elapsed.Minutes()*10) / 10,
					StartedAt:       host.ScanStartedAt.UTC().Format(time.RFC3339),
				})
			}
			if len(diag.StuckScanningHosts) > 0 {
				diag.Issues = append(diag.Issues,
					fmt.Sprintf("%d host(s) stuck in SCANNING state for >10 minutes", len(diag.StuckScanningHosts)))
			}
		}
	}

	if procs := findScanProcesses(scan.ID); len(procs) > 0 {
		diag.Processes = procs
		diag.Issues = append(diag.Issues, fmt.Sprintf("%d nmap process(es) still running", len(procs)))
	}

	if scan.StartedAt != nil {
		runtime := now.Sub(*scan.StartedAt)
		diag.RuntimeHours = math.Round(runtime.Hours()*100) / 100
		if runtime > MaxScanRuntime {
			diag.Issues = append(diag.Issues,
				fmt.Sprintf("Total runtime %.1fh exceeds max %dh", runtime.Hours(), int(MaxScanRuntime.Hours())))
		}
	}

	return diag
}

// KillExternal terminates every external scanner process belonging to the
// scan: first the PIDs recorded on host rows, then anything found by command
// line match. Each gets terminate, a grace period, then kill. Returns the
// number of processes brought down.
func (w *Watchdog) KillExternal(scanID uint) int {
	pids := make(map[int32]struct{})

	hosts, err := w.store.GetHostsForScan(scanID)
	if err != nil {
		log.Warn().Err(err).Uint("scan", scanID).Msg("Could not load hosts for process kill")
	} else {
		for _, host := range hosts {
			if host.ScanPID > 0 && host.ScanStatus == db.HostScanStatusScanning {
				pids[int32(host.ScanPID)] = struct{}{}
			}
		}
	}
	for _, info := range findScanProcesses(scanID) {
		pids[info.PID] = struct{}{}
	}

	killed := 0
	for pid := range pids {
		proc, err := process.NewProcess(pid)
		if err != nil {
			continue // already gone
		}
		// Recorded PIDs may have been recycled by the OS, so never kill
		// anything that does not look like ours.
		if !processBelongsToScan(proc, scanID) {
			continue
		}
		if terminateProcess(proc) {
			log.Info().Int32("pid", pid).Uint("scan", scanID).Msg("Killed scanner process")
			killed++
		}
	}
	return killed
}

// findScanProcesses lists live scanner processes whose command line names
// this scan's output files. Matching is on the scan_{id}. and scan_{id}_
// prefixes so scan 12 never matches the processes of scan 123.
func findScanProcesses(scanID uint) []ProcessInfo {
	procs, err := process.Processes()
	if err != nil {
		log.Warn().Err(err).Msg("Could not list processes")
		return nil
	}

	var found []ProcessInfo
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil || name != scannerProcessName {
			continue
		}
		cmdline, err := proc.Cmdline()
		if err != nil || !cmdlineMatchesScan(cmdline, scanID) {
			continue
		}
		info := ProcessInfo{PID: proc.Pid, Cmdline: cmdline}
		if created, err := proc.CreateTime(); err == nil {
			info.RuntimeSeconds = math.Round(time.Since(time.UnixMilli(created)).Seconds()*10) / 10
		}
		found = append(found, info)
	}
	return found
}

func processBelongsToScan(proc *process.Process, scanID uint) bool {
	name, err := proc.Name()
	if err != nil || name != scannerProcessName {
		return false
	}
	cmdline, err := proc.Cmdline()
	if err != nil {
		return false
	}
	return cmdlineMatchesScan(cmdline, scanID)
}

func cmdlineMatchesScan(cmdline string, scanID uint) bool {
	return strings.Contains(cmdline, fmt.Sprintf("scan_%d_", scanID)) ||
		strings.Contains(cmdline, fmt.Sprintf("scan_%d.", scanID))
}

// terminateProcess asks nicely, waits up to killGrace, then forces.
func terminateProcess(proc *process.Process) bool {
	if err := proc.Terminate(); err != nil {
		log.Warn().Err(err).Int32("pid", proc.Pid).Msg("Could not terminate process")
		return false
	}
	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		running, err := proc.IsRunning()
		if err != nil || !running {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := proc.Kill(); err != nil {
		log.Warn().Err(err).Int32("pid", proc.Pid).Msg("Could not kill process")
		return false
	}
	return true
}
