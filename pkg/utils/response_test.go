package utils

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func responseBody(t *testing.T, handler fiber.Handler) (int, map[string]any) {
	t.Helper()

	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading body: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding body %q: %v", string(raw), err)
	}

	return resp.StatusCode, payload
}

func TestSuccessEnvelope(t *testing.T) {
	status, body := responseBody(t, func(c *fiber.Ctx) error {
		return Success(c, fiber.StatusCreated, fiber.Map{"name": "demo"})
	})

	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if body["success"] != true {
		t.Fatalf("expected success=true, got %+v", body)
	}
	data := body["data"].(map[string]any)
	if data["name"] != "demo" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if _, ok := body["pagination"]; ok {
		t.Fatalf("expected no pagination block on plain success, got %+v", body)
	}
}

func TestErrorEnvelope(t *testing.T) {
	status, body := responseBody(t, func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusForbidden, "access denied")
	})

	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if body["error"] != "access denied" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestPaginatedEnvelope(t *testing.T) {
	status, body := responseBody(t, func(c *fiber.Ctx) error {
		return Paginated(c, []string{"a", "b"}, 2, 10, 35)
	})

	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["page"].(float64) != 2 || pagination["limit"].(float64) != 10 {
		t.Fatalf("unexpected pagination: %+v", pagination)
	}
	if pagination["total"].(float64) != 35 || pagination["totalPages"].(float64) != 4 {
		t.Fatalf("unexpected totals: %+v", pagination)
	}
}
