package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/averros/semquery/internal/errors"
	"github.com/averros/semquery/internal/search"
)

// initSearchRoutes registers the search-related routes
func (c *Controller) initSearchRoutes() {
	c.Group.POST("/search", c.HandleSearch)
}

// HandleSearch processes semantic search requests.
func (c *Controller) HandleSearch(ctx echo.Context) error {
	var req search.Request
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	// Traced requests bypass the cache; the trace must reflect a real run.
	cacheKey := fmt.Sprintf("%s|%s|%d|%v", req.Query, req.Model, req.Limit, req.Threshold)
	if c.searchCache != nil && !req.Trace {
		if cached, found := c.searchCache.Get(cacheKey); found {
			return ctx.JSON(http.StatusOK, cached)
		}
	}

	resp, err := c.Engine.Search(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			return c.HandleError(ctx, err, "Search query must not be empty", http.StatusBadRequest)
		}
		// All expansion terms failed: the backend is effectively down.
		// A partial trace, when gathered, still reaches the caller.
		if resp != nil && resp.Trace != nil {
			c.apiLogger.Error("search failed with partial trace",
				"trace_id", resp.Trace.ID,
				"error", err)
			return ctx.JSON(http.StatusBadGateway, resp)
		}
		return c.HandleError(ctx, err, "Search failed", http.StatusBadGateway)
	}

	if c.searchCache != nil && !req.Trace {
		c.searchCache.SetDefault(cacheKey, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}
