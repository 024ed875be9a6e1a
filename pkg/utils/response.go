package utils

import "github.com/gofiber/fiber/v2"

// All API responses share the {success, data|error} envelope; list endpoints
// add a pagination block.

type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination *pageMeta   `json:"pagination,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type pageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(successEnvelope{
		Success: true,
		Data:    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(errorEnvelope{
		Success: false,
		Error:   message,
	})
}

func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.Status(fiber.StatusOK).JSON(successEnvelope{
		Success: true,
		Data:    data,
		Pagination: &pageMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}
