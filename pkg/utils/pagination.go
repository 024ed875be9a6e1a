package utils

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads ?page and ?limit, falling back to the defaults on
// missing or unparseable values and capping the page size.
func ParsePagination(c *fiber.Ctx) PaginationParams {
	page := c.QueryInt("page", defaultPage)
	limit := c.QueryInt("limit", defaultLimit)

	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func ApplyPagination(db *gorm.DB, p PaginationParams) *gorm.DB {
	return db.Offset(p.Offset).Limit(p.Limit)
}
