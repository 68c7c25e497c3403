package db

import (
	"fmt"
	"time"

	"github.com/ncastellan/netrecon/lib"
	"gorm.io/gorm"
)

// HostScanStatus tracks the per-host enumeration lifecycle inside a scan.
type HostScanStatus string

const (
	HostScanStatusPending   HostScanStatus = "pending"
	HostScanStatusScanning  HostScanStatus = "scanning"
	HostScanStatusCompleted HostScanStatus = "completed"
	HostScanStatusFailed    HostScanStatus = "failed"
)

// IsTerminal reports whether the host finished its detailed scan.
func (s HostScanStatus) IsTerminal() bool {
	return s == HostScanStatusCompleted || s == HostScanStatusFailed
}

// Host is one device discovered by a scan.
type Host struct {
	BaseModel
	ScanID          uint            `gorm:"index" json:"scan_id"`
	IPAddress       string          `gorm:"index" json:"ip_address"`
	Hostname        string          `json:"hostname"`
	MACAddress      string          `json:"mac_address"`
	Vendor          string          `json:"vendor"`
	OSName          string          `json:"os_name"`
	OSAccuracy      int             `json:"os_accuracy"`
	CPE             string          `json:"cpe"`
	UptimeSeconds   int64           `json:"uptime_seconds"`
	LastBoot        string          `json:"last_boot"`
	Distance        int             `json:"distance"`
	IsVM            bool            `json:"is_vm"`
	VMType          string          `json:"vm_type"`
	ScanStatus      HostScanStatus  `gorm:"index;default:pending" json:"scan_status"`
	ScanStartedAt   *time.Time      `json:"scan_started_at"`
	ScanCompletedAt *time.Time      `json:"scan_completed_at"`
	ScanProgress    int             `json:"scan_progress"`
	ScanError       string          `json:"scan_error"`
	ScanPID         int             `gorm:"column:scan_pid" json:"-"`
	PortsDiscovered int             `json:"ports_discovered"`
	Ports           []Port          `gorm:"constraint:OnDelete:CASCADE" json:"ports,omitempty"`
	TracerouteHops  []TracerouteHop `gorm:"constraint:OnDelete:CASCADE" json:"traceroute_hops,omitempty"`
}

// TableName overrides the default table name.
func (Host) TableName() string {
	return "hosts"
}

// vmLabel describes the virtualization column for CLI output.
func (h Host) vmLabel() string {
	if !h.IsVM {
		return "no"
	}
	if h.VMType == "" {
		return "yes"
	}
	return h.VMType
}

// TableHeaders returns table headers for CLI output
func (h Host) TableHeaders() []string {
	return []string{"ID", "IP Address", "Hostname", "OS", "VM", "Open Ports", "Status"}
}

// TableRow returns table row for CLI output
func (h Host) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", h.ID),
		h.IPAddress,
		h.Hostname,
		h.OSName,
		h.vmLabel(),
		fmt.Sprintf("%d", len(h.Ports)),
		string(h.ScanStatus),
	}
}

// String provides a basic textual representation
func (h Host) String() string {
	return fmt.Sprintf("ID: %d, IP: %s, Hostname: %s, OS: %s, Open Ports: %d",
		h.ID, h.IPAddress, h.Hostname, h.OSName, len(h.Ports))
}

// Pretty provides a formatted representation
func (h Host) Pretty() string {
	return fmt.Sprintf(
		"%sID:%s %d\n%sIP Address:%s %s\n%sHostname:%s %s\n%sMAC:%s %s (%s)\n%sOS:%s %s\n%sVM:%s %s\n%sOpen Ports:%s %d\n%sStatus:%s %s\n",
		lib.Blue, lib.ResetColor, h.ID,
		lib.Blue, lib.ResetColor, h.IPAddress,
		lib.Blue, lib.ResetColor, h.Hostname,
		lib.Blue, lib.ResetColor, h.MACAddress, h.Vendor,
		lib.Blue, lib.ResetColor, h.OSName,
		lib.Blue, lib.ResetColor, h.vmLabel(),
		lib.Blue, lib.ResetColor, len(h.Ports),
		lib.Blue, lib.ResetColor, h.ScanStatus,
	)
}

// CreateHost saves a new host record.
func (d *DatabaseConnection) CreateHost(host *Host) (*Host, error) {
	result := d.db.Create(host)
	return host, result.Error
}

// GetHostByID fetches a host with its ports and traceroute hops.
func (d *DatabaseConnection) GetHostByID(id uint) (*Host, error) {
	var host Host
	err := d.db.Preload("Ports").Preload("TracerouteHops").First(&host, id).Error
	if err != nil {
		return nil, err
	}
	return &host, nil
}

// GetHostByScanAndIP fetches the host row for an IP within one scan.
func (d *DatabaseConnection) GetHostByScanAndIP(scanID uint, ip string) (*Host, error) {
	var host Host
	err := d.db.Where("scan_id = ? AND ip_address = ?", scanID, ip).First(&host).Error
	if err != nil {
		return nil, err
	}
	return &host, nil
}

// GetHostsForScan returns every host row belonging to a scan.
func (d *DatabaseConnection) GetHostsForScan(scanID uint) ([]Host, error) {
	var hosts []Host
	err := d.db.Where("scan_id = ?", scanID).Order("id ASC").Find(&hosts).Error
	return hosts, err
}

// GetHostsForScanWithPorts returns a scan's hosts with ports preloaded.
func (d *DatabaseConnection) GetHostsForScanWithPorts(scanID uint) ([]Host, error) {
	var hosts []Host
	err := d.db.Preload("Ports").Where("scan_id = ?", scanID).Order("id ASC").Find(&hosts).Error
	return hosts, err
}

// HostFilter narrows host queries. Nil / zero fields are ignored.
type HostFilter struct {
	ScanID           *uint
	IsVM             *bool
	OSContains       string
	IPContains       string
	HostnameContains string
	VMTypeContains   string
	Limit            int
}

// FilterHosts returns hosts matching the filter, ports preloaded.
func (d *DatabaseConnection) FilterHosts(filter HostFilter) ([]Host, error) {
	query := d.db.Preload("Ports")
	if filter.ScanID != nil {
		query = query.Where("scan_id = ?", *filter.ScanID)
	}
	if filter.IsVM != nil {
		query = query.Where("is_vm = ?", *filter.IsVM)
	}
	if filter.OSContains != "" {
		query = query.Where("os_name LIKE ?", "%"+filter.OSContains+"%")
	}
	if filter.IPContains != "" {
		query = query.Where("ip_address LIKE ?", "%"+filter.IPContains+"%")
	}
	if filter.HostnameContains != "" {
		query = query.Where("hostname LIKE ?", "%"+filter.HostnameContains+"%")
	}
	if filter.VMTypeContains != "" {
		query = query.Where("vm_type LIKE ?", "%"+filter.VMTypeContains+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var hosts []Host
	err := query.Order("id ASC").Find(&hosts).Error
	return hosts, err
}

// FindHostsByService returns hosts exposing a service whose name contains
// the given fragment, optionally restricted to one port number. Only the
// matching ports are preloaded.
func (d *DatabaseConnection) FindHostsByService(service string, port int) ([]Host, error) {
	pattern := "%" + service + "%"
	query := d.db.Distinct("hosts.*").
		Joins("JOIN ports ON ports.host_id = hosts.id").
		Where("ports.service LIKE ?", pattern)
	if port > 0 {
		query = query.Where("ports.port = ?", port)
	}
	query = query.Preload("Ports", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("service LIKE ?", pattern)
		if port > 0 {
			tx = tx.Where("port = ?", port)
		}
		return tx.Order("port ASC")
	})
	var hosts []Host
	err := query.Order("hosts.id ASC").Find(&hosts).Error
	return hosts, err
}

// GetHostsByIDs fetches host rows for a set of IDs, no relations.
func (d *DatabaseConnection) GetHostsByIDs(ids []uint) ([]Host, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var hosts []Host
	err := d.db.Where("id IN ?", ids).Find(&hosts).Error
	return hosts, err
}

// SetHostScanning transitions a host to scanning and stamps the start time.
func (d *DatabaseConnection) SetHostScanning(id uint) error {
	now := time.Now()
	return d.db.Model(&Host{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"scan_status":     HostScanStatusScanning,
			"scan_started_at": &now,
			"scan_progress":   50,
		}).Error
}

// SetHostScanPID records the PID of the subprocess scanning this host so the
// watchdog can target it precisely instead of scraping the process table.
func (d *DatabaseConnection) SetHostScanPID(id uint, pid int) error {
	return d.db.Model(&Host{}).Where("id = ?", id).
		Update("scan_pid", pid).Error
}

// CompleteHost marks a host's detailed scan as finished.
func (d *DatabaseConnection) CompleteHost(id uint, portsDiscovered int) error {
	now := time.Now()
	return d.db.Model(&Host{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"scan_status":       HostScanStatusCompleted,
			"scan_completed_at": &now,
			"scan_progress":     100,
			"ports_discovered":  portsDiscovered,
		}).Error
}

// FailHost marks a host's detailed scan as failed with the error text.
func (d *DatabaseConnection) FailHost(id uint, scanError string) error {
	now := time.Now()
	return d.db.Model(&Host{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"scan_status":       HostScanStatusFailed,
			"scan_completed_at": &now,
			"scan_error":        scanError,
			"scan_progress":     0,
		}).Error
}

// UpdateHost persists all non-association fields of the host.
func (d *DatabaseConnection) UpdateHost(host *Host) error {
	return d.db.Omit("Ports", "TracerouteHops").Save(host).Error
}

// ReplaceHostResults overwrites a host's ports and traceroute hops with the
// final parsed records and refreshes the descriptive fields.
func (d *DatabaseConnection) ReplaceHostResults(host *Host, ports []Port, hops []TracerouteHop) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Ports", "TracerouteHops").Save(host).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id = ?", host.ID).Delete(&Port{}).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id = ?", host.ID).Delete(&TracerouteHop{}).Error; err != nil {
			return err
		}
		for i := range ports {
			ports[i].ID = 0
			ports[i].HostID = host.ID
		}
		if len(ports) > 0 {
			if err := tx.Create(&ports).Error; err != nil {
				return err
			}
		}
		for i := range hops {
			hops[i].ID = 0
			hops[i].HostID = host.ID
		}
		if len(hops) > 0 {
			if err := tx.Create(&hops).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteHostsNotIn removes a scan's host rows whose IP is absent from keep,
// together with their ports and hops. Used by the post-scan filter pass.
func (d *DatabaseConnection) DeleteHostsNotIn(scanID uint, keep []string) (int64, error) {
	var removed int64
	err := d.db.Transaction(func(tx *gorm.DB) error {
		doomed := tx.Model(&Host{}).Select("id").Where("scan_id = ?", scanID)
		if len(keep) > 0 {
			doomed = doomed.Where("ip_address NOT IN ?", keep)
		}
		if err := tx.Where("host_id IN (?)", doomed).Delete(&Port{}).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id IN (?)", doomed).Delete(&TracerouteHop{}).Error; err != nil {
			return err
		}
		del := tx.Where("scan_id = ?", scanID)
		if len(keep) > 0 {
			del = del.Where("ip_address NOT IN ?", keep)
		}
		result := del.Delete(&Host{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}

// CountHostStatuses returns how many of a scan's hosts sit in each status.
func (d *DatabaseConnection) CountHostStatuses(scanID uint) (map[HostScanStatus]int64, error) {
	type row struct {
		ScanStatus HostScanStatus
		Count      int64
	}
	var rows []row
	err := d.db.Model(&Host{}).
		Select("scan_status, COUNT(*) as count").
		Where("scan_id = ?", scanID).
		Group("scan_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[HostScanStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.ScanStatus] = r.Count
	}
	return counts, nil
}
