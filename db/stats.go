package db

import (
	"bytes"
	"net"
	"sort"
	"time"
)

// NetworkStats is the aggregate view served by /api/stats.
type NetworkStats struct {
	TotalScans      int64 `json:"total_scans"`
	TotalHosts      int64 `json:"total_hosts"`
	TotalVMs        int64 `json:"total_vms"`
	TotalServices   int64 `json:"total_services"`
	RecentScans     int64 `json:"recent_scans"`
	ActiveSchedules int64 `json:"active_schedules"`
	FailedScans     int64 `json:"failed_scans"`
}

// GetNetworkStats computes the headline counts across all scans. Hosts and
// VMs count distinct IPs; services count distinct (ip, port, protocol).
func (d *DatabaseConnection) GetNetworkStats() (*NetworkStats, error) {
	stats := &NetworkStats{}

	if err := d.db.Model(&Scan{}).Count(&stats.TotalScans).Error; err != nil {
		return nil, err
	}
	if err := d.db.Model(&Host{}).Distinct("ip_address").Count(&stats.TotalHosts).Error; err != nil {
		return nil, err
	}
	if err := d.db.Model(&Host{}).Where("is_vm = ?", true).Distinct("ip_address").Count(&stats.TotalVMs).Error; err != nil {
		return nil, err
	}
	err := d.db.Model(&Port{}).
		Joins("JOIN hosts ON hosts.id = ports.host_id").
		Select("COUNT(DISTINCT hosts.ip_address || ':' || ports.port || '/' || ports.protocol)").
		Scan(&stats.TotalServices).Error
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	if err := d.db.Model(&Scan{}).Where("created_at >= ?", cutoff).Count(&stats.RecentScans).Error; err != nil {
		return nil, err
	}
	if err := d.db.Model(&Schedule{}).Where("enabled = ?", true).Count(&stats.ActiveSchedules).Error; err != nil {
		return nil, err
	}
	if err := d.db.Model(&Scan{}).Where("status = ?", ScanStatusFailed).Count(&stats.FailedScans).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// GetUniqueHosts returns the latest host row per distinct IP with ports
// preloaded, ordered by natural IPv4 sort.
func (d *DatabaseConnection) GetUniqueHosts() ([]Host, error) {
	latest := d.db.Model(&Host{}).Select("MAX(id)").Group("ip_address")
	var hosts []Host
	err := d.db.Preload("Ports").Where("id IN (?)", latest).Find(&hosts).Error
	if err != nil {
		return nil, err
	}
	sortHostsByIP(hosts)
	return hosts, nil
}

// GetUniqueVMs returns the latest host row per distinct IP restricted to
// hosts classified as virtual machines or containers.
func (d *DatabaseConnection) GetUniqueVMs() ([]Host, error) {
	latest := d.db.Model(&Host{}).Select("MAX(id)").Where("is_vm = ?", true).Group("ip_address")
	var hosts []Host
	err := d.db.Preload("Ports").Where("id IN (?)", latest).Find(&hosts).Error
	if err != nil {
		return nil, err
	}
	sortHostsByIP(hosts)
	return hosts, nil
}

// sortHostsByIP orders hosts by numeric IPv4 value so 10.0.0.9 sorts before
// 10.0.0.10. Unparsable addresses fall back to string order at the end.
func sortHostsByIP(hosts []Host) {
	sort.SliceStable(hosts, func(i, j int) bool {
		a := net.ParseIP(hosts[i].IPAddress).To4()
		b := net.ParseIP(hosts[j].IPAddress).To4()
		if a == nil || b == nil {
			if a != nil {
				return true
			}
			if b != nil {
				return false
			}
			return hosts[i].IPAddress < hosts[j].IPAddress
		}
		return bytes.Compare(a, b) < 0
	})
}

// ServiceGroup is one (port, protocol, service, product, version) bucket
// with the distinct hosts exposing it.
type ServiceGroup struct {
	Port      int    `json:"port"`
	Protocol  string `json:"protocol"`
	Service   string `json:"service"`
	Product   string `json:"product"`
	Version   string `json:"version"`
	HostCount int64  `json:"host_count"`
	HostIPs   string `json:"host_ips"`
}

// ServiceCount is one service name with its occurrence count across all
// port rows.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int64  `json:"count"`
}

// TopServices returns the most frequently observed service names.
func (d *DatabaseConnection) TopServices(limit int) ([]ServiceCount, error) {
	var rows []ServiceCount
	err := d.db.Model(&Port{}).
		Select("service, COUNT(*) as count").
		Where("service != ''").
		Group("service").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// GetServiceGroups aggregates every observed service across all scans.
func (d *DatabaseConnection) GetServiceGroups() ([]ServiceGroup, error) {
	var groups []ServiceGroup
	err := d.db.Model(&Port{}).
		Joins("JOIN hosts ON hosts.id = ports.host_id").
		Select("ports.port AS port, ports.protocol AS protocol, ports.service AS service, " +
			"ports.product AS product, ports.version AS version, " +
			"COUNT(DISTINCT hosts.ip_address) AS host_count, " +
			"GROUP_CONCAT(DISTINCT hosts.ip_address) AS host_ips").
		Group("ports.port, ports.protocol, ports.service, ports.product, ports.version").
		Order("ports.port ASC").
		Scan(&groups).Error
	return groups, err
}
