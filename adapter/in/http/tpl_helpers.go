package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Pagination Helpers
// =============================================================================

const maxPageLimit = 100

// PaginationParams holds common pagination parameters
type PaginationParams struct {
	Page  int
	Limit int
}

// GetPaginationParams extracts page and limit from query
func GetPaginationParams(c *fiber.Ctx, defaultLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	return PaginationParams{Page: page, Limit: limit}
}

// =============================================================================
// Query Parameter Helpers
// =============================================================================

// QueryBool parses a boolean query parameter (returns nil if not present or unparsable)
func QueryBool(c *fiber.Ctx, key string) *bool {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &b
}

// QueryString returns pointer to string query param (nil if empty)
func QueryString(c *fiber.Ctx, key string) *string {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	return &val
}
