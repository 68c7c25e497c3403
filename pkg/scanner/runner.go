package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Runner supervises the external nmap process. It owns the output file
// layout: every file it writes embeds scan_{id} so concurrent scans never
// collide and cleanup can target a whole scan by prefix.
type Runner struct {
	OutputDir   string
	NmapPath    string
	HostTimeout time.Duration
}

// NewRunner builds a runner from configuration.
func NewRunner() *Runner {
	timeout := viper.GetInt("scan.host_timeout")
	if timeout <= 0 {
		timeout = 300
	}
	r := &Runner{
		OutputDir:   viper.GetString("scan.output_dir"),
		NmapPath:    viper.GetString("scan.nmap_path"),
		HostTimeout: time.Duration(timeout) * time.Second,
	}
	if r.OutputDir == "" {
		r.OutputDir = "scan_results"
	}
	if r.NmapPath == "" {
		r.NmapPath = "nmap"
	}
	return r
}

// DiscoveryOutputPath returns the XML path for the index-th discovery pass
// of a scan. The first network keeps the plain _discovery name.
func (r *Runner) DiscoveryOutputPath(scanID uint, index int) string {
	name := fmt.Sprintf("scan_%d_discovery.xml", scanID)
	if index > 0 {
		name = fmt.Sprintf("scan_%d_discovery_%d.xml", scanID, index)
	}
	return filepath.Join(r.OutputDir, name)
}

// HostOutputPath returns the XML path for a single-host scan.
func (r *Runner) HostOutputPath(scanID uint, ip string) string {
	name := fmt.Sprintf("scan_%d_%s.xml", scanID, strings.ReplaceAll(ip, ".", "_"))
	return filepath.Join(r.OutputDir, name)
}

// Discover runs a fast port survey over one CIDR and reports which hosts are
// live. A host counts as live only when it is up and exposes at least one
// open port; ICMP-only responders are not interesting downstream.
func (r *Runner) Discover(ctx context.Context, cidr string, scanID uint, index int) (string, []string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create scan output directory: %w", err)
	}
	xmlPath := r.DiscoveryOutputPath(scanID, index)

	args := []string{
		"-F",
		"--max-retries", "1",
		"--host-timeout", "30s",
		"-T4",
		"-oX", xmlPath,
		cidr,
	}
	log.Info().Uint("scan", scanID).Str("cidr", cidr).Msg("Starting discovery scan")

	cmd := exec.CommandContext(ctx, r.NmapPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", nil, fmt.Errorf("discovery scan failed for %s: %s", cidr, commandError(err, &stderr))
	}

	parsed, err := ParseFile(xmlPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse discovery results for %s: %w", cidr, err)
	}
	var liveIPs []string
	for _, host := range parsed {
		if host.IP != "" && len(host.Ports) > 0 {
			liveIPs = append(liveIPs, host.IP)
		}
	}
	log.Info().Uint("scan", scanID).Str("cidr", cidr).Int("live_hosts", len(liveIPs)).Msg("Discovery scan finished")
	return xmlPath, liveIPs, nil
}

// ScanHost runs the detailed scan against a single IP: service versions, OS
// fingerprinting with aggressive guessing, forced reverse DNS and traceroute.
// The subprocess is capped at HostTimeout wall clock; on timeout the partial
// output file is removed. onStart, when non-nil, receives the spawned PID.
func (r *Runner) ScanHost(ctx context.Context, ip string, scanID uint, onStart func(pid int)) (string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scan output directory: %w", err)
	}
	xmlPath := r.HostOutputPath(scanID, ip)

	args := []string{
		"-sV",
		"-O",
		"-R",
		"--osscan-guess",
		"--traceroute",
		"-T4",
		"--version-intensity", "2",
		"--max-rtt-timeout", "200ms",
		"--max-retries", "1",
		"--min-rate", "100",
		"--max-os-tries", "1",
		"--host-timeout", "240s",
		"-oX", xmlPath,
		ip,
	}

	ctx, cancel := context.WithTimeout(ctx, r.HostTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.NmapPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("host scan failed for %s: %v", ip, err)
	}
	if onStart != nil && cmd.Process != nil {
		onStart(cmd.Process.Pid)
	}

	err := cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		// The partial file is useless and would poison reconciliation.
		os.Remove(xmlPath)
		return "", fmt.Errorf("host scan timeout for %s after %s", ip, r.HostTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("host scan failed for %s: %s", ip, commandError(err, &stderr))
	}
	if _, err := os.Stat(xmlPath); err != nil {
		return "", fmt.Errorf("scan output file not created: %s", xmlPath)
	}
	return xmlPath, nil
}

// Parse reads host records back out of an output file produced by this
// runner.
func (r *Runner) Parse(path string) ([]ParsedHost, error) {
	return ParseFile(path)
}

// RemoveScanFiles deletes every output file belonging to a scan. Matching is
// on the scan_{id}. and scan_{id}_ prefixes so scan 12 never claims the
// files of scan 123.
func RemoveScanFiles(outputDir string, scanID uint) error {
	patterns := []string{
		fmt.Sprintf("scan_%d.*", scanID),
		fmt.Sprintf("scan_%d_*", scanID),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(outputDir, pattern))
		if err != nil {
			return err
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", match).Msg("Failed to remove scan file")
			}
		}
	}
	return nil
}

func commandError(err error, stderr *bytes.Buffer) string {
	text := strings.TrimSpace(stderr.String())
	if text == "" {
		return err.Error()
	}
	return text
}
