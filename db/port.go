package db

import (
	"gorm.io/datatypes"
)

// Port is one open port observed on a host. Only open ports are persisted.
type Port struct {
	BaseModel
	HostID       uint           `gorm:"index" json:"host_id"`
	Port         int            `json:"port"`
	Protocol     string         `json:"protocol"`
	Service      string         `json:"service"`
	Product      string         `json:"product"`
	Version      string         `json:"version"`
	ExtraInfo    string         `json:"extrainfo"`
	CPE          string         `json:"cpe"`
	ScriptOutput datatypes.JSON `json:"script_output,omitempty"`
}

// TableName overrides the default table name.
func (Port) TableName() string {
	return "ports"
}

// GetPortsForHost returns the host's ports ordered by port number.
func (d *DatabaseConnection) GetPortsForHost(hostID uint) ([]Port, error) {
	var ports []Port
	err := d.db.Where("host_id = ?", hostID).Order("port ASC").Find(&ports).Error
	return ports, err
}

// CountPortsForHost returns the number of port rows attached to a host.
func (d *DatabaseConnection) CountPortsForHost(hostID uint) (int64, error) {
	var count int64
	err := d.db.Model(&Port{}).Where("host_id = ?", hostID).Count(&count).Error
	return count, err
}

// ListPortsWithScriptOutput returns every port that recorded NSE script
// results, ordered so results group naturally by host.
func (d *DatabaseConnection) ListPortsWithScriptOutput() ([]Port, error) {
	var ports []Port
	err := d.db.Where("script_output IS NOT NULL").
		Order("host_id ASC, port ASC").Find(&ports).Error
	return ports, err
}
