package api

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
)

var artifactMediaTypes = map[db.ArtifactType]string{
	db.ArtifactTypeHTML: "text/html",
	db.ArtifactTypePNG:  "image/png",
	db.ArtifactTypeSVG:  "image/svg+xml",
	db.ArtifactTypeXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	db.ArtifactTypeXML:  "application/xml",
	db.ArtifactTypeDOT:  "text/plain",
}

// GetArtifactHandler serves a scan artifact file.
// @Summary Download artifact
// @Description Streams the artifact file of the given type for a scan
// @Tags Artifacts
// @Produce octet-stream
// @Param scan_id path int true "Scan ID"
// @Param type path string true "Artifact type (html, png, svg, xlsx, xml, dot)"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/artifacts/{scan_id}/{type} [get]
func GetArtifactHandler(c *fiber.Ctx) error {
	scanID, err := parseIDParam(c, "scan_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid scan ID", err.Error()))
	}

	artifactType := strings.ToLower(c.Params("type"))
	if !db.ValidArtifactType(artifactType) {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid artifact type: " + artifactType))
	}

	artifact, err := db.Connection.GetArtifactByScanAndType(scanID, db.ArtifactType(artifactType))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Artifact not found"))
	}
	if _, err := os.Stat(artifact.FilePath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Artifact not found"))
	}

	c.Set(fiber.HeaderContentType, artifactMediaTypes[artifact.Type])
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filepath.Base(artifact.FilePath)+`"`)
	return c.SendFile(artifact.FilePath)
}
