package api

import (
	"context"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/scanner"
	"github.com/rs/zerolog/log"
)

// ScanLauncher runs a pending scan through the whole pipeline. Satisfied by
// orchestrator.Orchestrator; tests plug in stubs.
type ScanLauncher interface {
	ExecuteScan(ctx context.Context, scanID uint, networks []string) error
}

// launcher holds the singleton ScanLauncher instance.
// It's initialized by SetScanLauncher during server startup.
var launcher ScanLauncher

// SetScanLauncher sets the global scan launcher instance.
// Called during API server initialization.
func SetScanLauncher(l ScanLauncher) {
	launcher = l
}

// ScanCreateInput defines the acceptable input for starting a scan.
type ScanCreateInput struct {
	Name     string   `json:"name"`
	Networks []string `json:"networks"`
}

// CreateScanHandler queues a new scan and runs it in the background.
// @Summary Start a scan
// @Description Creates a pending scan; empty networks trigger auto-detection
// @Tags Scans
// @Accept json
// @Produce json
// @Param input body ScanCreateInput true "Networks to scan (CIDR)"
// @Success 201 {object} db.Scan
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/scans [post]
func CreateScanHandler(c *fiber.Ctx) error {
	input := new(ScanCreateInput)
	if err := c.BodyParser(input); err != nil && err != fiber.ErrUnprocessableEntity {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}

	networks := input.Networks
	if len(networks) == 0 {
		detected, err := scanner.DetectCurrentNetwork()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(
				"Could not auto-detect network. Please specify networks manually.", err.Error()))
		}
		networks = []string{detected}
	}
	if err := scanner.ValidateNetworks(networks); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid network", err.Error()))
	}

	if launcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(NewErrorResponse("Scan service unavailable"))
	}

	name := input.Name
	if name == "" {
		name = "Manual scan"
	}
	scan, err := db.Connection.CreateScan(&db.Scan{
		Name:            name,
		NetworkRange:    strings.Join(networks, ", "),
		Status:          db.ScanStatusPending,
		ProgressMessage: "Scan queued",
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not create scan", err.Error()))
	}

	go func(id uint, nets []string) {
		if err := launcher.ExecuteScan(context.Background(), id, nets); err != nil {
			log.Error().Err(err).Uint("scan", id).Msg("Background scan failed")
		}
	}(scan.ID, networks)

	log.Info().Uint("scan", scan.ID).Strs("networks", networks).Msg("Scan queued")
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// ListScansHandler lists scans, newest first.
// @Summary List scans
// @Description Lists scans with skip/limit pagination, most recent first
// @Tags Scans
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {object} fiber.Map
// @Router /api/scans [get]
func ListScansHandler(c *fiber.Ctx) error {
	skip, limit := parsePagination(c)
	if limit == 0 {
		limit = 50
	}
	scans, count, err := db.Connection.ListScans(skip, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list scans", err.Error()))
	}
	return c.JSON(fiber.Map{"data": scans, "count": count})
}

// GetScanHandler returns one scan with hosts, ports and artifacts.
// @Summary Get scan detail
// @Description Returns the scan with its hosts (including ports) and artifacts
// @Tags Scans
// @Produce json
// @Param id path int true "Scan ID"
// @Success 200 {object} db.Scan
// @Failure 404 {object} ErrorResponse
// @Router /api/scans/{id} [get]
func GetScanHandler(c *fiber.Ctx) error {
	scanID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid scan ID", err.Error()))
	}
	scan, err := db.Connection.GetScanWithRelations(scanID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Scan not found"))
	}
	return c.JSON(scan)
}

// DeleteScanHandler removes a scan, its database records and artifact files.
// @Summary Delete scan
// @Description Deletes the scan with all hosts, artifacts and files on disk
// @Tags Scans
// @Produce json
// @Param id path int true "Scan ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/scans/{id} [delete]
func DeleteScanHandler(c *fiber.Ctx) error {
	scanID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid scan ID", err.Error()))
	}
	if _, err := db.Connection.GetScanByID(scanID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Scan not found"))
	}

	artifacts, err := db.Connection.GetArtifactsForScan(scanID)
	if err == nil {
		for _, artifact := range artifacts {
			if err := os.Remove(artifact.FilePath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", artifact.FilePath).Msg("Failed to delete artifact file")
			}
		}
	}

	if err := db.Connection.DeleteScan(scanID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not delete scan", err.Error()))
	}
	log.Info().Uint("scan", scanID).Msg("Scan deleted")
	return c.SendStatus(fiber.StatusNoContent)
}
