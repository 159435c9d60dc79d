package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initStorageRoutes registers the storage management routes
func (c *Controller) initStorageRoutes() {
	c.Group.GET("/storage", c.HandleGetStorageInfo)
	c.Group.POST("/storage/switch", c.HandleSwitchStorage)
	c.Group.POST("/storage/sync", c.HandleSyncToRelational)
	c.Group.POST("/storage/export", c.HandleExportToFlatFile)
}

// switchStorageRequest names the target storage mode.
type switchStorageRequest struct {
	Mode string `json:"mode"`
}

// HandleGetStorageInfo reports the active backend and concept count.
func (c *Controller) HandleGetStorageInfo(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Store.Info())
}

// HandleSwitchStorage migrates the in-memory concept set to the requested
// backend and makes it active. Audit history is not migrated.
func (c *Controller) HandleSwitchStorage(ctx echo.Context) error {
	var req switchStorageRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	if err := c.Store.SwitchStorage(req.Mode); err != nil {
		c.ontologyMetrics().RecordOperation("switch", "error")
		return c.HandleError(ctx, err, "Failed to switch storage backend", conceptErrorCode(err))
	}

	c.ontologyMetrics().RecordOperation("switch", "ok")
	return ctx.JSON(http.StatusOK, c.Store.Info())
}

// HandleSyncToRelational copies the concept set into the relational
// backend without changing the active mode.
func (c *Controller) HandleSyncToRelational(ctx echo.Context) error {
	if err := c.Store.SyncToRelational(); err != nil {
		c.ontologyMetrics().RecordOperation("sync", "error")
		return c.HandleError(ctx, err, "Failed to sync concepts to database", http.StatusInternalServerError)
	}
	c.ontologyMetrics().RecordOperation("sync", "ok")
	return ctx.JSON(http.StatusOK, c.Store.Info())
}

// HandleExportToFlatFile copies the concept set into the flat-file
// document without changing the active mode.
func (c *Controller) HandleExportToFlatFile(ctx echo.Context) error {
	if err := c.Store.ExportToFlatFile(); err != nil {
		c.ontologyMetrics().RecordOperation("export", "error")
		return c.HandleError(ctx, err, "Failed to export concepts to flat file", http.StatusInternalServerError)
	}
	c.ontologyMetrics().RecordOperation("export", "ok")
	return ctx.JSON(http.StatusOK, c.Store.Info())
}
