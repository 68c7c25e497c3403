package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	id64, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id64), nil
}

// parsePagination reads skip/limit query parameters. Zero values let the
// store apply its own defaults and caps.
func parsePagination(c *fiber.Ctx) (skip, limit int) {
	skip, _ = strconv.Atoi(c.Query("skip", "0"))
	limit, _ = strconv.Atoi(c.Query("limit", "0"))
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	return skip, limit
}
