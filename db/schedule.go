package db

import (
	"fmt"
	"time"

	"github.com/ncastellan/netrecon/lib"
	"gorm.io/gorm"
)

// Schedule binds a cron expression to a stored set of network ranges.
type Schedule struct {
	BaseModel
	Name           string     `json:"name"`
	CronExpression string     `json:"cron_expression"`
	NetworkRange   string     `json:"network_range"`
	Enabled        bool       `gorm:"default:true" json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at"`
	NextRunAt      *time.Time `json:"next_run_at"`
	CreatedBy      string     `json:"created_by"`
}

// TableName overrides the default table name.
func (Schedule) TableName() string {
	return "schedules"
}

// timeOrDash renders an optional timestamp for CLI output.
func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// TableHeaders returns table headers for CLI output
func (s Schedule) TableHeaders() []string {
	return []string{"ID", "Name", "Cron", "Networks", "Enabled", "Last Run", "Next Run"}
}

// TableRow returns table row for CLI output
func (s Schedule) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", s.ID),
		s.Name,
		s.CronExpression,
		s.NetworkRange,
		fmt.Sprintf("%t", s.Enabled),
		timeOrDash(s.LastRunAt),
		timeOrDash(s.NextRunAt),
	}
}

// String provides a basic textual representation
func (s Schedule) String() string {
	return fmt.Sprintf("ID: %d, Name: %s, Cron: %s, Networks: %s, Enabled: %t",
		s.ID, s.Name, s.CronExpression, s.NetworkRange, s.Enabled)
}

// Pretty provides a formatted representation
func (s Schedule) Pretty() string {
	return fmt.Sprintf(
		"%sID:%s %d\n%sName:%s %s\n%sCron:%s %s\n%sNetworks:%s %s\n%sEnabled:%s %t\n%sLast Run:%s %s\n%sNext Run:%s %s\n",
		lib.Blue, lib.ResetColor, s.ID,
		lib.Blue, lib.ResetColor, s.Name,
		lib.Blue, lib.ResetColor, s.CronExpression,
		lib.Blue, lib.ResetColor, s.NetworkRange,
		lib.Blue, lib.ResetColor, s.Enabled,
		lib.Blue, lib.ResetColor, timeOrDash(s.LastRunAt),
		lib.Blue, lib.ResetColor, timeOrDash(s.NextRunAt),
	)
}

// CreateSchedule saves a new schedule record.
func (d *DatabaseConnection) CreateSchedule(schedule *Schedule) (*Schedule, error) {
	result := d.db.Create(schedule)
	return schedule, result.Error
}

// GetScheduleByID fetches a schedule.
func (d *DatabaseConnection) GetScheduleByID(id uint) (*Schedule, error) {
	var schedule Schedule
	if err := d.db.First(&schedule, id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListSchedules returns every schedule, soonest next run first.
func (d *DatabaseConnection) ListSchedules() ([]Schedule, error) {
	var schedules []Schedule
	err := d.db.Order("next_run_at ASC").Find(&schedules).Error
	return schedules, err
}

// GetEnabledSchedules returns all enabled schedules.
func (d *DatabaseConnection) GetEnabledSchedules() ([]Schedule, error) {
	var schedules []Schedule
	err := d.db.Where("enabled = ?", true).Find(&schedules).Error
	return schedules, err
}

// UpdateSchedule persists all fields of the schedule.
func (d *DatabaseConnection) UpdateSchedule(schedule *Schedule) error {
	return d.db.Save(schedule).Error
}

// SetScheduleRunTimes stamps the fire time and the next computed run.
func (d *DatabaseConnection) SetScheduleRunTimes(id uint, lastRun time.Time, nextRun *time.Time) error {
	return d.db.Model(&Schedule{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at": &lastRun,
			"next_run_at": nextRun,
		}).Error
}

// SetScheduleNextRun updates only the next computed run time.
func (d *DatabaseConnection) SetScheduleNextRun(id uint, nextRun *time.Time) error {
	return d.db.Model(&Schedule{}).Where("id = ?", id).
		Update("next_run_at", nextRun).Error
}

// DeleteSchedule removes a schedule. Scans spawned by it are kept with the
// schedule link cleared.
func (d *DatabaseConnection) DeleteSchedule(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Scan{}).Where("schedule_id = ?", id).
			Update("schedule_id", nil).Error
		if err != nil {
			return err
		}
		return tx.Delete(&Schedule{}, id).Error
	})
}

// CountSchedules returns total and enabled schedule counts.
func (d *DatabaseConnection) CountSchedules() (total int64, enabled int64, err error) {
	if err = d.db.Model(&Schedule{}).Count(&total).Error; err != nil {
		return
	}
	err = d.db.Model(&Schedule{}).Where("enabled = ?", true).Count(&enabled).Error
	return
}
