package db

// TracerouteHop is a single observation along the network path to a host.
type TracerouteHop struct {
	BaseModel
	HostID    uint    `gorm:"index" json:"host_id"`
	HopNumber int     `json:"hop_number"`
	IPAddress string  `json:"ip_address"`
	Hostname  string  `json:"hostname"`
	RTTMs     float64 `json:"rtt_ms"`
}

// TableName overrides the default table name.
func (TracerouteHop) TableName() string {
	return "traceroute_hops"
}

// GetTracerouteForHost returns the host's hops ordered by TTL.
func (d *DatabaseConnection) GetTracerouteForHost(hostID uint) ([]TracerouteHop, error) {
	var hops []TracerouteHop
	err := d.db.Where("host_id = ?", hostID).Order("hop_number ASC").Find(&hops).Error
	return hops, err
}
