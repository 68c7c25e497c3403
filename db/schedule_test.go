package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreateAndGetSchedule(t *testing.T) {
	schedule, err := Connection.CreateSchedule(&Schedule{
		Name:           "nightly",
		CronExpression: "0 2 * * *",
		NetworkRange:   "192.168.1.0/24",
		Enabled:        true,
		CreatedBy:      "admin",
	})
	assert.Nil(t, err)
	assert.NotZero(t, schedule.ID)

	fetched, err := Connection.GetScheduleByID(schedule.ID)
	assert.Nil(t, err)
	assert.Equal(t, "nightly", fetched.Name)
	assert.True(t, fetched.Enabled)

	_, err = Connection.GetScheduleByID(99999)
	assert.NotNil(t, err)
}

func TestSetScheduleRunTimes(t *testing.T) {
	schedule, err := Connection.CreateSchedule(&Schedule{
		Name:           "runtimes",
		CronExpression: "*/5 * * * *",
		NetworkRange:   "10.0.0.0/24",
		Enabled:        true,
	})
	assert.Nil(t, err)

	lastRun := time.Now().UTC()
	nextRun := lastRun.Add(5 * time.Minute)
	err = Connection.SetScheduleRunTimes(schedule.ID, lastRun, &nextRun)
	assert.Nil(t, err)

	fetched, err := Connection.GetScheduleByID(schedule.ID)
	assert.Nil(t, err)
	assert.NotNil(t, fetched.LastRunAt)
	assert.NotNil(t, fetched.NextRunAt)
	assert.WithinDuration(t, nextRun, *fetched.NextRunAt, time.Second)
}

func TestDeleteSchedulePreservesScans(t *testing.T) {
	schedule, err := Connection.CreateSchedule(&Schedule{
		Name:           "to-delete",
		CronExpression: "0 3 * * *",
		NetworkRange:   "10.1.0.0/24",
		Enabled:        true,
	})
	assert.Nil(t, err)

	scan, err := Connection.CreateScan(&Scan{
		Name:         "spawned",
		NetworkRange: schedule.NetworkRange,
		Status:       ScanStatusCompleted,
		ScheduleID:   &schedule.ID,
	})
	assert.Nil(t, err)

	err = Connection.DeleteSchedule(schedule.ID)
	assert.Nil(t, err)

	_, err = Connection.GetScheduleByID(schedule.ID)
	assert.NotNil(t, err)

	// The scan survives with its schedule link cleared.
	fetched, err := Connection.GetScanByID(scan.ID)
	assert.Nil(t, err)
	assert.Nil(t, fetched.ScheduleID)
}

func TestGetEnabledSchedules(t *testing.T) {
	enabled, err := Connection.CreateSchedule(&Schedule{
		Name:           "enabled-one",
		CronExpression: "0 4 * * *",
		NetworkRange:   "10.2.0.0/24",
		Enabled:        true,
	})
	assert.Nil(t, err)

	disabled, err := Connection.CreateSchedule(&Schedule{
		Name:           "disabled-one",
		CronExpression: "0 5 * * *",
		NetworkRange:   "10.3.0.0/24",
	})
	assert.Nil(t, err)
	Connection.DB().Model(disabled).Update("enabled", false)

	schedules, err := Connection.GetEnabledSchedules()
	assert.Nil(t, err)

	var sawEnabled, sawDisabled bool
	for _, s := range schedules {
		if s.ID == enabled.ID {
			sawEnabled = true
		}
		if s.ID == disabled.ID {
			sawDisabled = true
		}
	}
	assert.True(t, sawEnabled)
	assert.False(t, sawDisabled)
}
