package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/report"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

// Runner abstracts the external scan supervisor so the pipeline can be
// exercised with canned output in tests.
type Runner interface {
	Discover(ctx context.Context, cidr string, scanID uint, index int) (string, []string, error)
	ScanHost(ctx context.Context, ip string, scanID uint, onStart func(pid int)) (string, error)
	Parse(path string) ([]scanner.ParsedHost, error)
}

// ReportWriter produces the derived artifacts for a finished scan.
type ReportWriter interface {
	HTML(hosts []scanner.ParsedHost, scanID uint) (string, error)
	Workbook(hosts []scanner.ParsedHost, scanID uint) (string, error)
	Graph(hosts []scanner.ParsedHost, scanID uint) (string, string, string, error)
}

// Orchestrator drives a scan through its phases: discovery over every
// requested network, bounded-parallel per-host enumeration, reconciliation of
// all raw output, filtering, persistence and report generation.
type Orchestrator struct {
	store   *db.DatabaseConnection
	runner  Runner
	reports ReportWriter
}

// New builds an orchestrator around explicit collaborators.
func New(store *db.DatabaseConnection, runner Runner, reports ReportWriter) *Orchestrator {
	return &Orchestrator{store: store, runner: runner, reports: reports}
}

// NewDefault wires the production runner and report generator from
// configuration.
func NewDefault(store *db.DatabaseConnection) *Orchestrator {
	return New(store, scanner.NewRunner(), report.NewGenerator())
}

// ExecuteScan runs the whole pipeline for an existing pending scan. Any
// failure outside the per-host workers marks the scan failed and is returned.
// The scan must be in pending state; anything else is an error with no side
// effects.
func (o *Orchestrator) ExecuteScan(ctx context.Context, scanID uint, networks []string) error {
	started, err := o.store.StartScan(scanID)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("scan %d is not pending", scanID)
	}

	log.Info().Uint("scan", scanID).Strs("networks", networks).Msg("Starting scan")

	if err := o.run(ctx, scanID, networks); err != nil {
		log.Error().Err(err).Uint("scan", scanID).Msg("Scan failed")
		if _, failErr := o.store.FailScan(scanID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Uint("scan", scanID).Msg("Could not record scan failure")
		}
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, scanID uint, networks []string) error {
	if len(networks) == 0 {
		return fmt.Errorf("no networks to scan")
	}

	o.progress(scanID, 0, fmt.Sprintf("Discovering hosts in %d network(s)...", len(networks)))

	discoveryXMLs := make([]string, 0, len(networks))
	var liveIPs []string
	seen := make(map[string]struct{})

	for idx, network := range networks {
		o.progress(scanID, idx*15/len(networks), fmt.Sprintf("Discovering hosts in %s...", network))

		xmlPath, ips, err := o.runner.Discover(ctx, network, scanID, idx)
		if err != nil {
			return fmt.Errorf("discovery of %s failed: %w", network, err)
		}
		discoveryXMLs = append(discoveryXMLs, xmlPath)
		for _, ip := range ips {
			if _, dup := seen[ip]; dup {
				continue
			}
			seen[ip] = struct{}{}
			liveIPs = append(liveIPs, ip)
		}
	}

	if len(liveIPs) == 0 {
		_, err := o.store.CompleteScan(scanID, "No live hosts discovered")
		return err
	}

	o.progress(scanID, 18, fmt.Sprintf("Creating host records for %d discovered host(s)...", len(liveIPs)))
	for _, ip := range liveIPs {
		host := &db.Host{ScanID: scanID, IPAddress: ip, ScanStatus: db.HostScanStatusPending}
		if _, err := o.store.CreateHost(host); err != nil {
			return fmt.Errorf("creating host record for %s: %w", ip, err)
		}
	}

	o.progress(scanID, 20, fmt.Sprintf("Starting detailed scans on %d host(s)...", len(liveIPs)))
	hostXMLs := o.scanHosts(ctx, scanID, liveIPs)

	o.progress(scanID, 50, "Parsing scan results...")
	var parsed []scanner.ParsedHost
	for _, path := range discoveryXMLs {
		parsed = append(parsed, o.parseQuietly(path)...)
	}
	for _, path := range hostXMLs {
		parsed = append(parsed, o.parseQuietly(path)...)
	}

	hosts := dedupeByIP(parsed)
	for i := range hosts {
		scanner.Classify(&hosts[i])
	}

	final := make([]scanner.ParsedHost, 0, len(hosts))
	keepIPs := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if len(host.Ports) > 0 || host.OS != "" || host.MAC != "" {
			final = append(final, host)
			keepIPs = append(keepIPs, host.IP)
		}
	}

	removed, err := o.store.DeleteHostsNotIn(scanID, keepIPs)
	if err != nil {
		return fmt.Errorf("removing empty host records: %w", err)
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Uint("scan", scanID).Msg("Dropped host records with no meaningful data")
	}

	o.progress(scanID, 60, "Saving to database...")
	for i := range final {
		if err := o.saveHost(scanID, &final[i]); err != nil {
			return fmt.Errorf("saving host %s: %w", final[i].IP, err)
		}
	}

	o.progress(scanID, 70, "Generating reports...")

	htmlPath, err := o.reports.HTML(final, scanID)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := o.saveArtifact(scanID, db.ArtifactTypeHTML, htmlPath); err != nil {
		return err
	}

	xlsxPath, err := o.reports.Workbook(final, scanID)
	if err != nil {
		return fmt.Errorf("spreadsheet report: %w", err)
	}
	if err := o.saveArtifact(scanID, db.ArtifactTypeXLSX, xlsxPath); err != nil {
		return err
	}

	dotPath, pngPath, svgPath, err := o.reports.Graph(final, scanID)
	if err != nil {
		return fmt.Errorf("topology graph: %w", err)
	}
	if err := o.saveArtifact(scanID, db.ArtifactTypeDOT, dotPath); err != nil {
		return err
	}
	if pngPath != "" {
		if err := o.saveArtifact(scanID, db.ArtifactTypePNG, pngPath); err != nil {
			return err
		}
	}
	if svgPath != "" {
		if err := o.saveArtifact(scanID, db.ArtifactTypeSVG, svgPath); err != nil {
			return err
		}
	}
	for _, xmlPath := range discoveryXMLs {
		if err := o.saveArtifact(scanID, db.ArtifactTypeXML, xmlPath); err != nil {
			return err
		}
	}

	if _, err := o.store.CompleteScan(scanID, "Scan completed successfully"); err != nil {
		return err
	}
	log.Info().Uint("scan", scanID).Int("hosts", len(final)).Msg("Scan completed")
	return nil
}

// scanHosts fans the live IPs out over a bounded worker pool. Worker failures
// are isolated: a failed host is marked failed and the pool keeps going.
func (o *Orchestrator) scanHosts(ctx context.Context, scanID uint, ips []string) []string {
	workers := o.store.GetIntSetting(db.SettingScanParallelism, viper.GetInt("scan.parallelism"), 1, 32)
	total := len(ips)

	var mu sync.Mutex
	xmls := make([]string, 0, total)
	completed := 0

	p := pool.New().WithMaxGoroutines(workers)
	for _, ip := range ips {
		p.Go(func() {
			xmlPath := o.scanSingleHost(ctx, scanID, ip)

			mu.Lock()
			if xmlPath != "" {
				xmls = append(xmls, xmlPath)
			}
			completed++
			done := completed
			mu.Unlock()

			o.progress(scanID, 20+done*70/total, fmt.Sprintf("Completed %d/%d hosts", done, total))
		})
	}
	p.Wait()

	return xmls
}

// scanSingleHost runs the detailed scan for one IP and keeps its Host row in
// step. Only a runner failure marks the host failed; parse or database
// trouble after a successful subprocess still counts as completed since the
// reconciliation pass rereads the output file anyway.
func (o *Orchestrator) scanSingleHost(ctx context.Context, scanID uint, ip string) string {
	host, err := o.store.GetHostByScanAndIP(scanID, ip)
	if err != nil {
		log.Error().Err(err).Uint("scan", scanID).Str("ip", ip).Msg("Host record missing before detailed scan")
		return ""
	}
	if err := o.store.SetHostScanning(host.ID); err != nil {
		log.Error().Err(err).Str("ip", ip).Msg("Could not mark host scanning")
	}

	xmlPath, err := o.runner.ScanHost(ctx, ip, scanID, func(pid int) {
		if err := o.store.SetHostScanPID(host.ID, pid); err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("Could not record scanner pid")
		}
	})
	if err != nil {
		log.Error().Err(err).Uint("scan", scanID).Str("ip", ip).Msg("Host scan failed")
		if failErr := o.store.FailHost(host.ID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("ip", ip).Msg("Could not mark host failed")
		}
		return ""
	}

	portsDiscovered := 0
	if results, parseErr := o.runner.Parse(xmlPath); parseErr != nil {
		log.Warn().Err(parseErr).Str("ip", ip).Msg("Could not parse host scan output")
	} else if len(results) > 0 {
		result := results[0]
		scanner.Classify(&result)
		if strings.TrimSpace(result.Hostname) == "" {
			result.Hostname = reverseLookup(ip)
		}

		// Re-read the row so the update does not clobber concurrent state.
		if host, err = o.store.GetHostByScanAndIP(scanID, ip); err == nil {
			host.Hostname = result.Hostname
			host.MACAddress = result.MAC
			host.Vendor = result.Vendor
			host.OSName = result.OS
			host.OSAccuracy = result.OSAccuracy
			host.IsVM = result.IsVM
			host.VMType = result.VMType
			portsDiscovered = len(result.Ports)
			host.PortsDiscovered = portsDiscovered
			if err := o.store.UpdateHost(host); err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Could not update host details")
			}
		}
	}

	if err := o.store.CompleteHost(host.ID, portsDiscovered); err != nil {
		log.Error().Err(err).Str("ip", ip).Msg("Could not mark host completed")
	}
	return xmlPath
}

// parseQuietly reads one output file, logging instead of failing: a corrupt
// per-host file must not take down the scan when the rest parsed fine.
func (o *Orchestrator) parseQuietly(path string) []scanner.ParsedHost {
	hosts, err := o.runner.Parse(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Skipping unparseable scan output")
		return nil
	}
	return hosts
}

// saveHost upserts the Host row for a parsed record and replaces its ports
// and traceroute hops with the final results.
func (o *Orchestrator) saveHost(scanID uint, parsed *scanner.ParsedHost) error {
	host, err := o.store.GetHostByScanAndIP(scanID, parsed.IP)
	if err != nil {
		host, err = o.store.CreateHost(&db.Host{ScanID: scanID, IPAddress: parsed.IP})
		if err != nil {
			return err
		}
	}

	if parsed.Hostname != "" {
		host.Hostname = parsed.Hostname
	}
	host.MACAddress = parsed.MAC
	host.Vendor = parsed.Vendor
	host.OSName = parsed.OS
	host.OSAccuracy = parsed.OSAccuracy
	host.CPE = parsed.CPE
	host.UptimeSeconds = parsed.UptimeSeconds
	host.LastBoot = parsed.LastBoot
	host.Distance = parsed.Distance
	host.IsVM = parsed.IsVM
	host.VMType = parsed.VMType
	host.PortsDiscovered = len(parsed.Ports)

	ports := make([]db.Port, 0, len(parsed.Ports))
	for _, p := range parsed.Ports {
		port := db.Port{
			Port:      p.Port,
			Protocol:  p.Protocol,
			Service:   p.Service,
			Product:   p.Product,
			Version:   p.Version,
			ExtraInfo: p.ExtraInfo,
			CPE:       p.CPE,
		}
		if len(p.ScriptOutput) > 0 {
			if raw, err := json.Marshal(p.ScriptOutput); err == nil {
				port.ScriptOutput = datatypes.JSON(raw)
			}
		}
		ports = append(ports, port)
	}

	hops := make([]db.TracerouteHop, 0, len(parsed.Traceroute))
	for _, h := range parsed.Traceroute {
		hops = append(hops, db.TracerouteHop{
			HopNumber: h.TTL,
			IPAddress: h.IP,
			Hostname:  h.Hostname,
			RTTMs:     h.RTTMs,
		})
	}

	return o.store.ReplaceHostResults(host, ports, hops)
}

func (o *Orchestrator) saveArtifact(scanID uint, artifactType db.ArtifactType, path string) error {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	_, err := o.store.CreateArtifact(&db.Artifact{
		ScanID:   scanID,
		Type:     artifactType,
		FilePath: path,
		FileSize: size,
	})
	if err != nil {
		return fmt.Errorf("recording %s artifact: %w", artifactType, err)
	}
	return nil
}

func (o *Orchestrator) progress(scanID uint, percent int, message string) {
	if err := o.store.UpdateScanProgress(scanID, percent, message); err != nil {
		log.Error().Err(err).Uint("scan", scanID).Msg("Could not update scan progress")
	}
}

// dedupeByIP keeps one record per IP, preferring whichever saw the most
// ports. Ties keep the earlier record, so detailed results supersede the
// discovery summary without churn.
func dedupeByIP(hosts []scanner.ParsedHost) []scanner.ParsedHost {
	index := make(map[string]int, len(hosts))
	deduped := make([]scanner.ParsedHost, 0, len(hosts))
	for _, host := range hosts {
		if host.IP == "" {
			continue
		}
		if at, ok := index[host.IP]; ok {
			if len(host.Ports) > len(deduped[at].Ports) {
				deduped[at] = host
			}
			continue
		}
		index[host.IP] = len(deduped)
		deduped = append(deduped, host)
	}
	return deduped
}

// reverseLookup resolves an IP to its first PTR name. Lookup failures are
// silent, the hostname just stays empty.
func reverseLookup(ip string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}
