package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/averros/semquery/internal/errors"
	"github.com/averros/semquery/internal/ontology"
)

// initAuditRoutes registers the audit query routes
func (c *Controller) initAuditRoutes() {
	c.Group.GET("/audit", c.HandleGetAuditLog)
	c.Group.GET("/audit/stats", c.HandleGetAuditStats)
}

// auditLogResponse wraps one page of audit entries.
type auditLogResponse struct {
	Entries []ontology.AuditEntry `json:"entries"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// HandleGetAuditLog returns audit entries most-recent-first. Filters are
// conjunctive when present.
func (c *Controller) HandleGetAuditLog(ctx echo.Context) error {
	filter := ontology.AuditFilter{
		ConceptID: ctx.QueryParam("concept_id"),
		Action:    ctx.QueryParam("action"),
	}
	filter.Limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(ctx.QueryParam("offset"))

	entries, err := c.Store.Audit().Query(ctx.Request().Context(), filter)
	if err != nil {
		if errors.Is(err, ontology.ErrAuditUnavailable) {
			return c.HandleError(ctx, err, "Audit log requires the relational storage backend", http.StatusConflict)
		}
		return c.HandleError(ctx, err, "Failed to query audit log", http.StatusInternalServerError)
	}

	if entries == nil {
		entries = []ontology.AuditEntry{}
	}
	return ctx.JSON(http.StatusOK, auditLogResponse{
		Entries: entries,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// HandleGetAuditStats returns aggregate audit trail statistics.
func (c *Controller) HandleGetAuditStats(ctx echo.Context) error {
	stats, err := c.Store.Audit().Stats(ctx.Request().Context())
	if err != nil {
		if errors.Is(err, ontology.ErrAuditUnavailable) {
			return c.HandleError(ctx, err, "Audit log requires the relational storage backend", http.StatusConflict)
		}
		return c.HandleError(ctx, err, "Failed to compute audit statistics", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}
