package db

import (
	"fmt"
	"time"

	"github.com/ncastellan/netrecon/lib"
	"gorm.io/gorm"
)

// ScanStatus tracks a scan through its lifecycle.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// terminalScanStatuses is used in WHERE clauses guarding state transitions.
var terminalScanStatuses = []ScanStatus{ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled}

// IsTerminal reports whether the status is final. Terminal scans are never
// transitioned again, not even by the watchdog.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusCancelled
}

// IsActive reports whether the scan still owns running work.
func (s ScanStatus) IsActive() bool {
	return s == ScanStatusPending || s == ScanStatusRunning
}

// Scan is one network scan run, scheduled or ad hoc.
type Scan struct {
	BaseModel
	Name            string     `json:"name"`
	NetworkRange    string     `json:"network_range"`
	Status          ScanStatus `gorm:"index;default:pending" json:"status"`
	Progress        int        `json:"progress"`
	ProgressMessage string     `json:"progress_message"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	ErrorMessage    string     `json:"error_message"`
	ScheduleID      *uint      `gorm:"index" json:"schedule_id"`
	Hosts           []Host     `gorm:"constraint:OnDelete:CASCADE" json:"hosts,omitempty"`
	Artifacts       []Artifact `gorm:"constraint:OnDelete:CASCADE" json:"artifacts,omitempty"`
}

// TableName overrides the default table name.
func (Scan) TableName() string {
	return "scans"
}

// Duration returns the elapsed scan time, zero until the scan has started.
// Running scans measure against the current time.
func (s Scan) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}

// TableHeaders returns table headers for CLI output
func (s Scan) TableHeaders() []string {
	return []string{"ID", "Name", "Networks", "Status", "Progress", "Hosts", "Created At"}
}

// TableRow returns table row for CLI output
func (s Scan) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", s.ID),
		s.Name,
		s.NetworkRange,
		string(s.Status),
		fmt.Sprintf("%d%%", s.Progress),
		fmt.Sprintf("%d", len(s.Hosts)),
		s.CreatedAt.Format(time.RFC3339),
	}
}

// String provides a basic textual representation
func (s Scan) String() string {
	return fmt.Sprintf("ID: %d, Name: %s, Networks: %s, Status: %s, Progress: %d%%",
		s.ID, s.Name, s.NetworkRange, s.Status, s.Progress)
}

// Pretty provides a formatted representation
func (s Scan) Pretty() string {
	duration := "-"
	if s.StartedAt != nil {
		duration = s.Duration().Round(time.Second).String()
	}
	return fmt.Sprintf(
		"%sID:%s %d\n%sName:%s %s\n%sNetworks:%s %s\n%sStatus:%s %s\n%sProgress:%s %d%% (%s)\n%sHosts:%s %d\n%sDuration:%s %s\n%sCreated:%s %s\n",
		lib.Blue, lib.ResetColor, s.ID,
		lib.Blue, lib.ResetColor, s.Name,
		lib.Blue, lib.ResetColor, s.NetworkRange,
		lib.Blue, lib.ResetColor, s.Status,
		lib.Blue, lib.ResetColor, s.Progress, s.ProgressMessage,
		lib.Blue, lib.ResetColor, len(s.Hosts),
		lib.Blue, lib.ResetColor, duration,
		lib.Blue, lib.ResetColor, s.CreatedAt.Format(time.RFC3339),
	)
}

// CreateScan saves a new scan record.
func (d *DatabaseConnection) CreateScan(scan *Scan) (*Scan, error) {
	result := d.db.Create(scan)
	return scan, result.Error
}

// GetScanByID fetches a scan without its relations.
func (d *DatabaseConnection) GetScanByID(id uint) (*Scan, error) {
	var scan Scan
	if err := d.db.First(&scan, id).Error; err != nil {
		return nil, err
	}
	return &scan, nil
}

// GetScanWithRelations fetches a scan with hosts, their ports and traceroute
// hops, and generated artifacts.
func (d *DatabaseConnection) GetScanWithRelations(id uint) (*Scan, error) {
	var scan Scan
	err := d.db.
		Preload("Hosts.Ports").
		Preload("Hosts.TracerouteHops").
		Preload("Artifacts").
		First(&scan, id).Error
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

// ListScans returns scans newest first along with the total row count.
func (d *DatabaseConnection) ListScans(skip, limit int) ([]Scan, int64, error) {
	var scans []Scan
	var count int64
	if err := d.db.Model(&Scan{}).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	err := d.db.Scopes(Paginate(skip, limit)).Order("created_at DESC").Find(&scans).Error
	return scans, count, err
}

// GetScansByStatus returns all scans currently in the given status.
func (d *DatabaseConnection) GetScansByStatus(status ScanStatus) ([]Scan, error) {
	var scans []Scan
	err := d.db.Where("status = ?", status).Find(&scans).Error
	return scans, err
}

// SearchScans returns the newest scans, optionally filtered by status, with
// hosts preloaded so callers can summarize discovery counts.
func (d *DatabaseConnection) SearchScans(status ScanStatus, limit int) ([]Scan, error) {
	query := d.db.Preload("Hosts").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var scans []Scan
	err := query.Find(&scans).Error
	return scans, err
}

// GetScansSince returns scans created at or after t, newest first.
func (d *DatabaseConnection) GetScansSince(t time.Time) ([]Scan, error) {
	var scans []Scan
	err := d.db.Where("created_at >= ?", t).Order("created_at DESC").Find(&scans).Error
	return scans, err
}

// GetScansForSchedule returns the most recent scans spawned by a schedule.
func (d *DatabaseConnection) GetScansForSchedule(scheduleID uint, limit int) ([]Scan, error) {
	var scans []Scan
	err := d.db.Where("schedule_id = ?", scheduleID).
		Order("created_at DESC").Limit(limit).Find(&scans).Error
	return scans, err
}

// GetScansCreatedBefore returns scans older than the cutoff with artifacts
// preloaded so callers can remove files from disk before deleting rows.
func (d *DatabaseConnection) GetScansCreatedBefore(cutoff time.Time) ([]Scan, error) {
	var scans []Scan
	err := d.db.Preload("Artifacts").Where("created_at < ?", cutoff).Find(&scans).Error
	return scans, err
}

// DeleteScan removes a scan and everything hanging off it. Ports and hops
// are removed through the host join so the cascade holds even when sqlite
// foreign key enforcement is off.
func (d *DatabaseConnection) DeleteScan(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		hostIDs := tx.Model(&Host{}).Select("id").Where("scan_id = ?", id)
		if err := tx.Where("host_id IN (?)", hostIDs).Delete(&Port{}).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id IN (?)", hostIDs).Delete(&TracerouteHop{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&Host{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&Artifact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Scan{}, id).Error
	})
}

// UpdateScanProgress bumps progress and message. Progress never moves
// backwards so concurrent host workers cannot regress the bar.
func (d *DatabaseConnection) UpdateScanProgress(id uint, progress int, message string) error {
	return d.db.Model(&Scan{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":         gorm.Expr("CASE WHEN progress > ? THEN progress ELSE ? END", progress, progress),
			"progress_message": message,
		}).Error
}

// StartScan transitions pending to running. Returns false when the scan was
// not pending, which means another worker already picked it up.
func (d *DatabaseConnection) StartScan(id uint) (bool, error) {
	now := time.Now()
	result := d.db.Model(&Scan{}).
		Where("id = ? AND status = ?", id, ScanStatusPending).
		Updates(map[string]interface{}{
			"status":           ScanStatusRunning,
			"started_at":       &now,
			"progress":         0,
			"progress_message": "Starting scan...",
			"error_message":    "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteScan marks a running scan as finished with the given final message.
func (d *DatabaseConnection) CompleteScan(id uint, message string) (bool, error) {
	now := time.Now()
	result := d.db.Model(&Scan{}).
		Where("id = ? AND status NOT IN ?", id, terminalScanStatuses).
		Updates(map[string]interface{}{
			"status":           ScanStatusCompleted,
			"progress":         100,
			"progress_message": message,
			"completed_at":     &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailScan marks a scan as failed with the given error. Scans already in a
// terminal state are left untouched and false is returned.
func (d *DatabaseConnection) FailScan(id uint, errorMessage string) (bool, error) {
	now := time.Now()
	result := d.db.Model(&Scan{}).
		Where("id = ? AND status NOT IN ?", id, terminalScanStatuses).
		Updates(map[string]interface{}{
			"status":           ScanStatusFailed,
			"error_message":    errorMessage,
			"progress_message": "Scan failed: " + errorMessage,
			"completed_at":     &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountScans returns the total number of scans.
func (d *DatabaseConnection) CountScans() (int64, error) {
	var count int64
	err := d.db.Model(&Scan{}).Count(&count).Error
	return count, err
}

// CountScansByStatus returns the number of scans in the given status.
func (d *DatabaseConnection) CountScansByStatus(status ScanStatus) (int64, error) {
	var count int64
	err := d.db.Model(&Scan{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountScansSince returns the number of scans created at or after t.
func (d *DatabaseConnection) CountScansSince(t time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&Scan{}).Where("created_at >= ?", t).Count(&count).Error
	return count, err
}
