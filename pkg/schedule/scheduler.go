package schedule

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	// retentionSpec fires the data cleanup daily at 02:00 UTC.
	retentionSpec = "0 2 * * *"
	// watchdogSpec fires the stuck scan sweep every 10 minutes.
	watchdogSpec = "*/10 * * * *"

	// DefaultRetentionDays applies when the setting is missing or unusable.
	DefaultRetentionDays = 90
	MinRetentionDays     = 1
	MaxRetentionDays     = 365
)

// cronParser accepts standard 5-field expressions plus an optional leading
// seconds field. All schedules run in UTC.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ExecFunc runs one scan to completion. The scheduler launches it on a
// detached goroutine, so implementations must do their own error recording.
type ExecFunc func(scanID uint, networks []string)

// Sweeper is the stuck-scan watchdog hook invoked on the fixed 10 minute job.
type Sweeper interface {
	Sweep() (int, error)
}

// Scheduler mirrors the enabled schedule rows into a running cron engine.
// The database stays the durable truth: Add/Update/Remove re-read the row and
// adjust the in-memory entry set accordingly.
type Scheduler struct {
	store   *db.DatabaseConnection
	cron    *cron.Cron
	execute ExecFunc
	sweeper Sweeper

	mu      sync.Mutex
	entries map[uint]cron.EntryID
	started bool
}

// New builds a scheduler. execute is called for every fired schedule;
// sweeper may be nil to disable the watchdog job (tests).
func New(store *db.DatabaseConnection, execute ExecFunc, sweeper Sweeper) *Scheduler {
	return &Scheduler{
		store: store,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		execute: execute,
		sweeper: sweeper,
		entries: make(map[uint]cron.EntryID),
	}
}

// ValidateCron reports whether expr parses in the supported dialect.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the first firing time of expr strictly after from, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	parsed, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return parsed.Next(from.UTC()), nil
}

// Start launches the cron engine, registers the fixed maintenance jobs and
// loads every enabled schedule from the store.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		log.Warn().Msg("Scheduler already running")
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(retentionSpec, s.cleanupOldData); err != nil {
		return fmt.Errorf("registering retention job: %w", err)
	}
	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(watchdogSpec, s.runWatchdog); err != nil {
			return fmt.Errorf("registering watchdog job: %w", err)
		}
	}

	s.cron.Start()
	loaded := s.loadAll()
	log.Info().Int("schedules", loaded).Msg("Scheduler started")
	return nil
}

// Stop halts the engine and blocks until running jobs drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// loadAll registers every enabled schedule, returning how many were added.
func (s *Scheduler) loadAll() int {
	schedules, err := s.store.GetEnabledSchedules()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load schedules")
		return 0
	}
	loaded := 0
	for _, sched := range schedules {
		if err := s.Add(sched.ID); err != nil {
			log.Error().Err(err).Uint("schedule", sched.ID).Msg("Failed to load schedule")
			continue
		}
		loaded++
	}
	return loaded
}

// Add registers a schedule with the cron engine and recomputes its next run.
// Disabled or missing schedules are skipped without error so callers can
// mirror any store change through Add. Re-adding replaces the old entry.
func (s *Scheduler) Add(scheduleID uint) error {
	sched, err := s.store.GetScheduleByID(scheduleID)
	if err != nil {
		log.Warn().Err(err).Uint("schedule", scheduleID).Msg("Schedule not found, nothing to add")
		return nil
	}
	if !sched.Enabled {
		log.Debug().Uint("schedule", scheduleID).Msg("Schedule disabled, not adding to scheduler")
		return nil
	}

	entryID, err := s.cron.AddFunc(sched.CronExpression, func() {
		s.fire(scheduleID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sched.CronExpression, err)
	}

	s.mu.Lock()
	if old, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(old)
	}
	s.entries[scheduleID] = entryID
	s.mu.Unlock()

	next := s.cron.Entry(entryID).Next
	if next.IsZero() {
		if computed, err := NextRun(sched.CronExpression, time.Now()); err == nil {
			next = computed
		}
	}
	if !next.IsZero() {
		if err := s.store.SetScheduleNextRun(scheduleID, &next); err != nil {
			log.Warn().Err(err).Uint("schedule", scheduleID).Msg("Could not store next run time")
		}
	}
	log.Info().Uint("schedule", scheduleID).Str("cron", sched.CronExpression).
		Time("next_run", next).Msg("Schedule registered")
	return nil
}

// Remove drops a schedule from the engine. Unknown ids are a no-op.
func (s *Scheduler) Remove(scheduleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entries[scheduleID]
	if !ok {
		return
	}
	s.cron.Remove(entryID)
	delete(s.entries, scheduleID)
	log.Info().Uint("schedule", scheduleID).Msg("Schedule removed from scheduler")
}

// Update re-registers a schedule after its row changed.
func (s *Scheduler) Update(scheduleID uint) error {
	s.Remove(scheduleID)
	return s.Add(scheduleID)
}

// Trigger fires a schedule immediately, independent of its cron expression.
func (s *Scheduler) Trigger(scheduleID uint) {
	log.Info().Uint("schedule", scheduleID).Msg("Manually triggering schedule")
	s.fire(scheduleID)
}

// Entries returns the schedule ids currently registered with the engine.
func (s *Scheduler) Entries() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// fire creates a pending scan for the schedule, stamps the run times and
// hands execution to a detached worker. Errors are swallowed into logs so a
// misbehaving schedule never crashes the engine.
func (s *Scheduler) fire(scheduleID uint) {
	sched, err := s.store.GetScheduleByID(scheduleID)
	if err != nil {
		log.Error().Err(err).Uint("schedule", scheduleID).Msg("Fired schedule no longer exists")
		return
	}
	if !sched.Enabled {
		log.Info().Uint("schedule", scheduleID).Msg("Schedule disabled, skipping execution")
		return
	}

	networks := scanner.SplitNetworks(sched.NetworkRange)
	if len(networks) == 0 {
		log.Error().Uint("schedule", scheduleID).Msg("Schedule has no networks configured")
		return
	}

	scan, err := s.store.CreateScan(&db.Scan{
		Name:            sched.Name,
		NetworkRange:    sched.NetworkRange,
		Status:          db.ScanStatusPending,
		ProgressMessage: fmt.Sprintf("Scheduled scan: %s", sched.Name),
		ScheduleID:      &sched.ID,
	})
	if err != nil {
		log.Error().Err(err).Uint("schedule", scheduleID).Msg("Could not create scan for schedule")
		return
	}

	now := time.Now().UTC()
	nextRun := s.nextRunFor(scheduleID, sched.CronExpression, now)
	if err := s.store.SetScheduleRunTimes(scheduleID, now, nextRun); err != nil {
		log.Warn().Err(err).Uint("schedule", scheduleID).Msg("Could not stamp schedule run times")
	}

	log.Info().Uint("schedule", scheduleID).Uint("scan", scan.ID).
		Strs("networks", networks).Msg("Created scan for schedule")

	if s.execute != nil {
		go s.execute(scan.ID, networks)
	}
}

// nextRunFor prefers the live cron entry's own next activation and falls back
// to computing it from the expression.
func (s *Scheduler) nextRunFor(scheduleID uint, expr string, from time.Time) *time.Time {
	s.mu.Lock()
	entryID, ok := s.entries[scheduleID]
	s.mu.Unlock()
	if ok {
		if next := s.cron.Entry(entryID).Next; !next.IsZero() {
			return &next
		}
	}
	next, err := NextRun(expr, from)
	if err != nil {
		log.Error().Err(err).Uint("schedule", scheduleID).Msg("Could not compute next run")
		return nil
	}
	return &next
}

// cleanupOldData deletes scans older than the retention window, removing
// artifact and raw output files from disk before dropping the rows.
func (s *Scheduler) cleanupOldData() {
	retentionDays := s.store.GetIntSetting(
		db.SettingDataRetentionDays, DefaultRetentionDays, MinRetentionDays, MaxRetentionDays)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	log.Info().Int("retention_days", retentionDays).Time("cutoff", cutoff).
		Msg("Starting data cleanup")

	scans, err := s.store.GetScansCreatedBefore(cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Data cleanup could not list old scans")
		return
	}
	if len(scans) == 0 {
		log.Info().Msg("No old scans to clean up")
		return
	}

	outputDir := viper.GetString("scan.output_dir")
	deleted := 0
	for _, scan := range scans {
		for _, artifact := range scan.Artifacts {
			if err := os.Remove(artifact.FilePath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", artifact.FilePath).Msg("Could not delete artifact file")
			}
		}
		// Raw per-host output files are not tracked as artifacts, catch
		// them by prefix.
		if err := scanner.RemoveScanFiles(outputDir, scan.ID); err != nil {
			log.Warn().Err(err).Uint("scan", scan.ID).Msg("Could not remove scan output files")
		}
		if err := s.store.DeleteScan(scan.ID); err != nil {
			log.Error().Err(err).Uint("scan", scan.ID).Msg("Could not delete old scan")
			continue
		}
		deleted++
	}
	log.Info().Int("deleted", deleted).Msg("Data cleanup finished")
}

// runWatchdog delegates to the stuck scan sweeper.
func (s *Scheduler) runWatchdog() {
	fixed, err := s.sweeper.Sweep()
	if err != nil {
		log.Error().Err(err).Msg("Stuck scan sweep failed")
		return
	}
	if fixed > 0 {
		log.Warn().Int("fixed", fixed).Msg("Stuck scan sweep fixed scan(s)")
	}
}
