package server

import (
	"net/http"
	"strings"

	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	source  Source
	metrics *monitoring.Metrics
}

type projectSummary struct {
	ID          string `json:"id"`
	Tabs        int    `json:"tabs"`
	ActiveTabID string `json:"activeTabId"`
}

type tabsResponse struct {
	ProjectID   string         `json:"projectId"`
	ActiveTabID string         `json:"activeTabId"`
	Tabs        []terminal.Tab `json:"tabs"`
}

func (h *handlers) health(c *gin.Context) {
	projects := h.source.Projects()
	sessions := 0
	for _, p := range projects {
		sessions += len(h.source.ListSessions(p))
	}

	body := gin.H{
		"status":   "ok",
		"projects": len(projects),
		"sessions": sessions,
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) projects(c *gin.Context) {
	projects := h.source.Projects()
	out := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectSummary{
			ID:          p,
			Tabs:        len(h.source.ListSessions(p)),
			ActiveTabID: h.source.ActiveTabID(p),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *handlers) tabs(c *gin.Context) {
	project := strings.TrimSpace(c.Param("id"))
	if project == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project id is required"})
		return
	}
	c.JSON(http.StatusOK, tabsResponse{
		ProjectID:   project,
		ActiveTabID: h.source.ActiveTabID(project),
		Tabs:        h.source.ListSessions(project),
	})
}

func (h *handlers) counts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"counts": h.source.TerminalCounts()})
}
