package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/taskito/backend/internal/models"
)

func TestDashboardSummary(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "dash-owner@test.com", "password123", models.UserRoleUser)
	_, outsiderToken := createTestUser(t, env.db, "dash-outsider@test.com", "password123", models.UserRoleUser)

	workspace := createTestWorkspace(t, env.db, owner, "Dashboard Workspace")
	workspaceID := workspace.ID.String()

	now := time.Now().UTC()
	past := now.Add(-48 * time.Hour)
	soon := now.Add(48 * time.Hour)

	seed := []models.Task{
		{WorkspaceID: workspace.ID, Title: "Overdue", Status: models.TaskStatusTodo, Priority: models.TaskPriorityHigh, DueDate: &past, CreatorID: owner.ID, AssigneeID: &owner.ID},
		{WorkspaceID: workspace.ID, Title: "Due soon", Status: models.TaskStatusInProgress, Priority: models.TaskPriorityMedium, DueDate: &soon, CreatorID: owner.ID, AssigneeID: &owner.ID},
		{WorkspaceID: workspace.ID, Title: "Done", Status: models.TaskStatusDone, Priority: models.TaskPriorityLow, CreatorID: owner.ID},
	}
	for i := range seed {
		if err := env.db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("failed seeding task: %v", err)
		}
	}

	t.Run("outsider forbidden", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/workspaces/"+workspaceID+"/dashboard", nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("aggregates counts", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/workspaces/"+workspaceID+"/dashboard", nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)

		byStatus := data["byStatus"].(map[string]any)
		if byStatus["todo"].(float64) != 1 || byStatus["in_progress"].(float64) != 1 || byStatus["done"].(float64) != 1 {
			t.Fatalf("unexpected status counts: %+v", byStatus)
		}

		byPriority := data["byPriority"].(map[string]any)
		if byPriority["high"].(float64) != 1 {
			t.Fatalf("unexpected priority counts: %+v", byPriority)
		}

		if data["overdue"].(float64) != 1 {
			t.Fatalf("expected 1 overdue task, got %v", data["overdue"])
		}
		if data["dueThisWeek"].(float64) != 1 {
			t.Fatalf("expected 1 task due this week, got %v", data["dueThisWeek"])
		}
		if data["assignedToMe"].(float64) != 2 {
			t.Fatalf("expected 2 open tasks assigned to owner, got %v", data["assignedToMe"])
		}

		recent := data["recentTasks"].([]any)
		if len(recent) != 3 {
			t.Fatalf("expected 3 recent tasks, got %d", len(recent))
		}
	})
}
