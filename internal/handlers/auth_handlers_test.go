package handlers

import (
	"net/http"
	"testing"

	"github.com/taskito/backend/internal/models"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("POST /api/auth/register creates user and returns token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "register@test.com",
			"password":  "password123",
			"firstName": "Reg",
			"lastName":  "Ister",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := body["data"].(map[string]any)
		if data["token"] == "" {
			t.Fatalf("expected token in response")
		}
		user := data["user"].(map[string]any)
		if user["email"] != "register@test.com" {
			t.Fatalf("unexpected email %v", user["email"])
		}
		if _, exposed := user["passwordHash"]; exposed {
			t.Fatalf("password hash must not be serialized")
		}
	})

	t.Run("POST /api/auth/register duplicate email conflicts", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "register@test.com",
			"password":  "password123",
			"firstName": "Reg",
			"lastName":  "Ister",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})

	t.Run("POST /api/auth/register short password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "short@test.com",
			"password":  "short",
			"firstName": "Sh",
			"lastName":  "Ort",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "password must be at least 8 characters")
	})

	t.Run("POST /api/auth/login succeeds with valid credentials", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "register@test.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusOK)
	})

	t.Run("POST /api/auth/login wrong password unauthorized", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "register@test.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("GET /api/auth/me requires token", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("GET /api/auth/me returns current user", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "me@test.com", "password123", models.UserRoleUser)
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)
		if data["email"] != "me@test.com" {
			t.Fatalf("unexpected email %v", data["email"])
		}
	})

	t.Run("PUT /api/auth/me updates profile", func(t *testing.T) {
		user, token := createTestUser(t, env.db, "update-me@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"firstName": "Renamed",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		var reloaded models.User
		if err := env.db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
			t.Fatalf("failed reloading user: %v", err)
		}
		if reloaded.FirstName != "Renamed" {
			t.Fatalf("expected first name Renamed, got %s", reloaded.FirstName)
		}
	})

	t.Run("PUT /api/auth/password rotates password", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "rotate@test.com", "password123", models.UserRoleUser)

		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"oldPassword": "password123",
			"newPassword": "new-password-456",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "rotate@test.com",
			"password": "new-password-456",
		}, nil)
		assertStatus(t, resp, http.StatusOK)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "rotate@test.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("PUT /api/auth/password wrong current password", func(t *testing.T) {
		_, token := createTestUser(t, env.db, "rotate-wrong@test.com", "password123", models.UserRoleUser)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"oldPassword": "not-the-password",
			"newPassword": "new-password-456",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "current password is incorrect")
	})
}
