package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func parsePaginationFor(t *testing.T, target string) PaginationParams {
	t.Helper()

	app := fiber.New()
	var parsed PaginationParams
	app.Get("/", func(c *fiber.Ctx) error {
		parsed = ParsePagination(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	return parsed
}

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := parsePaginationFor(t, "/")
		if p.Page != 1 || p.Limit != 20 || p.Offset != 0 {
			t.Fatalf("unexpected defaults: %+v", p)
		}
	})

	t.Run("explicit page and limit", func(t *testing.T) {
		p := parsePaginationFor(t, "/?page=3&limit=10")
		if p.Page != 3 || p.Limit != 10 || p.Offset != 20 {
			t.Fatalf("unexpected params: %+v", p)
		}
	})

	t.Run("caps limit at 100", func(t *testing.T) {
		p := parsePaginationFor(t, "/?limit=500")
		if p.Limit != 100 {
			t.Fatalf("expected limit 100, got %d", p.Limit)
		}
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		p := parsePaginationFor(t, "/?page=abc&limit=-5")
		if p.Page != 1 || p.Limit != 20 {
			t.Fatalf("unexpected fallback params: %+v", p)
		}
	})
}
