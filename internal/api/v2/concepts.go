package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/averros/semquery/internal/ontology"
)

// initConceptRoutes registers the concept CRUD and lookup routes
func (c *Controller) initConceptRoutes() {
	c.Group.GET("/concepts", c.HandleGetConcepts)
	c.Group.POST("/concepts", c.HandleAddConcept)
	c.Group.GET("/concepts/find", c.HandleFindConcept)
	c.Group.GET("/concepts/:id", c.HandleGetConcept)
	c.Group.PUT("/concepts/:id", c.HandleUpdateConcept)
	c.Group.DELETE("/concepts/:id", c.HandleDeleteConcept)
	c.Group.GET("/concepts/:id/related", c.HandleGetRelated)
	c.Group.GET("/concepts/:id/verses", c.HandleGetVerses)
}

// conceptListResponse wraps the full concept listing.
type conceptListResponse struct {
	Concepts []ontology.Concept `json:"concepts"`
	Total    int                `json:"total"`
}

// HandleGetConcepts returns the full concept set.
func (c *Controller) HandleGetConcepts(ctx echo.Context) error {
	concepts := c.Store.All()
	return ctx.JSON(http.StatusOK, conceptListResponse{
		Concepts: concepts,
		Total:    len(concepts),
	})
}

// HandleFindConcept resolves a keyword against ids, labels and synonyms.
func (c *Controller) HandleFindConcept(ctx echo.Context) error {
	keyword := ctx.QueryParam("q")
	if keyword == "" {
		return c.HandleError(ctx, nil, "Query parameter 'q' is required", http.StatusBadRequest)
	}

	concept, found := c.Store.Find(keyword)
	if !found {
		return c.HandleError(ctx, nil, "No concept matches the keyword", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, concept)
}

// HandleGetConcept returns one concept by id.
func (c *Controller) HandleGetConcept(ctx echo.Context) error {
	concept, found := c.Store.Find(ctx.Param("id"))
	if !found {
		return c.HandleError(ctx, nil, "Concept not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, concept)
}

// HandleAddConcept creates a new concept, attributed to the caller.
func (c *Controller) HandleAddConcept(ctx echo.Context) error {
	var concept ontology.Concept
	if err := ctx.Bind(&concept); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	err := c.Store.Add(ctx.Request().Context(), concept, actorFromRequest(ctx))
	if err != nil {
		c.ontologyMetrics().RecordOperation("add", "error")
		return c.HandleError(ctx, err, "Failed to add concept", conceptErrorCode(err))
	}

	c.ontologyMetrics().RecordOperation("add", "ok")
	c.ontologyMetrics().SetConceptCount(c.Store.Count())
	c.invalidateSearchCache()
	return ctx.JSON(http.StatusCreated, concept)
}

// HandleUpdateConcept fully replaces a concept record.
func (c *Controller) HandleUpdateConcept(ctx echo.Context) error {
	var concept ontology.Concept
	if err := ctx.Bind(&concept); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	id := ctx.Param("id")
	err := c.Store.Update(ctx.Request().Context(), id, concept, actorFromRequest(ctx))
	if err != nil {
		c.ontologyMetrics().RecordOperation("update", "error")
		return c.HandleError(ctx, err, "Failed to update concept", conceptErrorCode(err))
	}

	c.ontologyMetrics().RecordOperation("update", "ok")
	c.invalidateSearchCache()
	updated, _ := c.Store.Find(id)
	return ctx.JSON(http.StatusOK, updated)
}

// HandleDeleteConcept removes a concept.
func (c *Controller) HandleDeleteConcept(ctx echo.Context) error {
	id := ctx.Param("id")
	err := c.Store.Delete(ctx.Request().Context(), id, actorFromRequest(ctx))
	if err != nil {
		c.ontologyMetrics().RecordOperation("delete", "error")
		return c.HandleError(ctx, err, "Failed to delete concept", conceptErrorCode(err))
	}

	c.ontologyMetrics().RecordOperation("delete", "ok")
	c.ontologyMetrics().SetConceptCount(c.Store.Count())
	c.invalidateSearchCache()
	return ctx.NoContent(http.StatusNoContent)
}

// HandleGetRelated returns the concept neighborhood of an id.
func (c *Controller) HandleGetRelated(ctx echo.Context) error {
	related, found := c.Store.Related(ctx.Param("id"))
	if !found {
		return c.HandleError(ctx, nil, "Concept not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"related": related,
		"total":   len(related),
	})
}

// HandleGetVerses returns the verse references of a concept. An absent
// concept yields an empty list, not an error.
func (c *Controller) HandleGetVerses(ctx echo.Context) error {
	verses := c.Store.Verses(ctx.Param("id"))
	return ctx.JSON(http.StatusOK, map[string]any{
		"verses": verses,
		"total":  len(verses),
	})
}
