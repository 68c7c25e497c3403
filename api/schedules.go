package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/ncastellan/netrecon/pkg/schedule"
	"github.com/rs/zerolog/log"
)

// ScheduleManager mirrors schedule mutations into the running cron engine.
// Satisfied by schedule.Scheduler; tests plug in stubs.
type ScheduleManager interface {
	Add(scheduleID uint) error
	Remove(scheduleID uint)
	Update(scheduleID uint) error
	Trigger(scheduleID uint)
}

// scheduleManager holds the singleton ScheduleManager instance.
// It's initialized by SetScheduleManager during server startup.
var scheduleManager ScheduleManager

// SetScheduleManager sets the global schedule manager instance.
// Called during API server initialization.
func SetScheduleManager(m ScheduleManager) {
	scheduleManager = m
}

// ScheduleCreateInput defines the acceptable input for creating a schedule.
type ScheduleCreateInput struct {
	Name           string `json:"name" validate:"required,lte=255"`
	CronExpression string `json:"cron_expression" validate:"required"`
	NetworkRange   string `json:"network_range" validate:"required"`
	Enabled        *bool  `json:"enabled"`
}

// ScheduleUpdateInput carries the updatable schedule fields. Nil pointers
// leave the stored value untouched.
type ScheduleUpdateInput struct {
	Name           *string `json:"name"`
	CronExpression *string `json:"cron_expression"`
	NetworkRange   *string `json:"network_range"`
	Enabled        *bool   `json:"enabled"`
}

// CreateScheduleHandler saves a new schedule and registers it with the cron
// engine when enabled.
// @Summary Create schedule
// @Description Creates a recurring scan schedule from a cron expression
// @Tags Schedules
// @Accept json
// @Produce json
// @Param input body ScheduleCreateInput true "Schedule to create"
// @Success 201 {object} db.Schedule
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/schedules [post]
func CreateScheduleHandler(c *fiber.Ctx) error {
	input := new(ScheduleCreateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	if input.Name == "" || input.CronExpression == "" || input.NetworkRange == "" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("name, cron_expression and network_range are required"))
	}
	if err := schedule.ValidateCron(input.CronExpression); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid cron expression", err.Error()))
	}
	if err := scanner.ValidateNetworks(scanner.SplitNetworks(input.NetworkRange)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid network", err.Error()))
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	createdBy := ""
	if claims, err := auth.ExtractTokenMetadata(c); err == nil {
		createdBy = claims.Username
	}

	sched, err := db.Connection.CreateSchedule(&db.Schedule{
		Name:           input.Name,
		CronExpression: input.CronExpression,
		NetworkRange:   input.NetworkRange,
		Enabled:        enabled,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not create schedule", err.Error()))
	}

	if sched.Enabled && scheduleManager != nil {
		if err := scheduleManager.Add(sched.ID); err != nil {
			log.Error().Err(err).Uint("schedule", sched.ID).Msg("Could not register schedule with cron engine")
		}
		// Re-read so the response carries the computed next_run_at.
		if fresh, err := db.Connection.GetScheduleByID(sched.ID); err == nil {
			sched = fresh
		}
	}

	return c.Status(fiber.StatusCreated).JSON(sched)
}

// ListSchedulesHandler lists every schedule.
// @Summary List schedules
// @Description Lists all schedules, soonest next run first
// @Tags Schedules
// @Produce json
// @Success 200 {object} fiber.Map
// @Router /api/schedules [get]
func ListSchedulesHandler(c *fiber.Ctx) error {
	schedules, err := db.Connection.ListSchedules()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list schedules", err.Error()))
	}
	return c.JSON(fiber.Map{"data": schedules, "count": len(schedules)})
}

// GetScheduleHandler returns one schedule.
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path int true "Schedule ID"
// @Success 200 {object} db.Schedule
// @Failure 404 {object} ErrorResponse
// @Router /api/schedules/{id} [get]
func GetScheduleHandler(c *fiber.Ctx) error {
	scheduleID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid schedule ID", err.Error()))
	}
	sched, err := db.Connection.GetScheduleByID(scheduleID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Schedule not found"))
	}
	return c.JSON(sched)
}

// UpdateScheduleHandler updates schedule fields and keeps the cron engine in
// sync: enabled schedules are re-registered, disabled ones removed.
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path int true "Schedule ID"
// @Param input body ScheduleUpdateInput true "Fields to update"
// @Success 200 {object} db.Schedule
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/schedules/{id} [put]
func UpdateScheduleHandler(c *fiber.Ctx) error {
	scheduleID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid schedule ID", err.Error()))
	}
	sched, err := db.Connection.GetScheduleByID(scheduleID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Schedule not found"))
	}

	input := new(ScheduleUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	if input.CronExpression != nil {
		if err := schedule.ValidateCron(*input.CronExpression); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid cron expression", err.Error()))
		}
		sched.CronExpression = *input.CronExpression
	}
	if input.NetworkRange != nil {
		if err := scanner.ValidateNetworks(scanner.SplitNetworks(*input.NetworkRange)); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid network", err.Error()))
		}
		sched.NetworkRange = *input.NetworkRange
	}
	if input.Name != nil {
		sched.Name = *input.Name
	}
	if input.Enabled != nil {
		sched.Enabled = *input.Enabled
	}

	if err := db.Connection.UpdateSchedule(sched); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not update schedule", err.Error()))
	}

	if scheduleManager != nil {
		if sched.Enabled {
			if err := scheduleManager.Update(sched.ID); err != nil {
				log.Error().Err(err).Uint("schedule", sched.ID).Msg("Could not re-register schedule with cron engine")
			}
		} else {
			scheduleManager.Remove(sched.ID)
		}
		if fresh, err := db.Connection.GetScheduleByID(sched.ID); err == nil {
			sched = fresh
		}
	}

	return c.JSON(sched)
}

// DeleteScheduleHandler removes a schedule. Scans it spawned are kept.
// @Summary Delete schedule
// @Tags Schedules
// @Param id path int true "Schedule ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/schedules/{id} [delete]
func DeleteScheduleHandler(c *fiber.Ctx) error {
	scheduleID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid schedule ID", err.Error()))
	}
	if _, err := db.Connection.GetScheduleByID(scheduleID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Schedule not found"))
	}

	if scheduleManager != nil {
		scheduleManager.Remove(scheduleID)
	}
	if err := db.Connection.DeleteSchedule(scheduleID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not delete schedule", err.Error()))
	}
	log.Info().Uint("schedule", scheduleID).Msg("Schedule deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerScheduleHandler fires a schedule immediately and returns the scan
// it queued.
// @Summary Trigger schedule
// @Description Runs the scheduled scan now, outside its cron cadence
// @Tags Schedules
// @Produce json
// @Param id path int true "Schedule ID"
// @Success 200 {object} db.Scan
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/schedules/{id}/trigger [post]
func TriggerScheduleHandler(c *fiber.Ctx) error {
	scheduleID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid schedule ID", err.Error()))
	}
	if _, err := db.Connection.GetScheduleByID(scheduleID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Schedule not found"))
	}
	if scheduleManager == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(NewErrorResponse("Scheduler unavailable"))
	}

	scheduleManager.Trigger(scheduleID)

	scans, err := db.Connection.GetScansForSchedule(scheduleID, 1)
	if err != nil || len(scans) == 0 {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to trigger schedule"))
	}
	return c.JSON(scans[0])
}
