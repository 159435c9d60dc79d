// internal/api/v2/api.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
	"github.com/averros/semquery/internal/logging"
	"github.com/averros/semquery/internal/observability"
	"github.com/averros/semquery/internal/ontology"
	"github.com/averros/semquery/internal/search"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Store    *ontology.Store
	Engine   *search.Engine
	Settings *conf.Settings
	Metrics  *observability.Metrics

	apiLogger   *slog.Logger
	searchCache *cache.Cache
}

// New creates a new API controller and registers all routes under /api/v2.
func New(e *echo.Echo, store *ontology.Store, engine *search.Engine, settings *conf.Settings, metrics *observability.Metrics) *Controller {
	apiLogger := logging.ForService("api")
	if apiLogger == nil {
		apiLogger = slog.Default().With("service", "api")
	}

	cacheTTL := time.Duration(settings.Search.CacheTTLSecs) * time.Second
	var searchCache *cache.Cache
	if cacheTTL > 0 {
		searchCache = cache.New(cacheTTL, 2*cacheTTL)
	}

	c := &Controller{
		Echo:        e,
		Store:       store,
		Engine:      engine,
		Settings:    settings,
		Metrics:     metrics,
		apiLogger:   apiLogger,
		searchCache: searchCache,
	}

	e.Use(middleware.Recover())
	c.Group = e.Group("/api/v2")

	c.initSearchRoutes()
	c.initConceptRoutes()
	c.initStorageRoutes()
	c.initAuditRoutes()

	e.GET("/api/v2/health", c.HandleHealth)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return c
}

// ErrorResponse is the JSON error body returned by every failing handler.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlationId"`
}

// NewErrorResponse builds an error body with a fresh correlation id.
// Structural and validation errors surface their message verbatim;
// unexpected internal errors surface only the generic message while the
// full detail goes to the logs.
func NewErrorResponse(err error, message string, code int) ErrorResponse {
	resp := ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil && code < http.StatusInternalServerError {
		resp.Error = err.Error()
	}
	return resp
}

// HandleError logs the error and writes the JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	c.apiLogger.Error("API error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, errorResp)
}

// conceptErrorCode maps store errors to response codes so structural
// failures are distinguishable from persistence failures.
func conceptErrorCode(err error) int {
	switch {
	case errors.Is(err, ontology.ErrConceptNotFound):
		return http.StatusNotFound
	case errors.Is(err, ontology.ErrDuplicateConcept):
		return http.StatusConflict
	default:
		var enhanced *errors.EnhancedError
		if errors.As(err, &enhanced) && enhanced.Category == errors.CategoryValidation {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// actorFromRequest builds the audit attribution record from request
// metadata. Identity headers are optional.
func actorFromRequest(ctx echo.Context) *ontology.ActorInfo {
	return &ontology.ActorInfo{
		UserID:    ctx.Request().Header.Get("X-User-Id"),
		Username:  ctx.Request().Header.Get("X-Username"),
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}
}

// HandleHealth reports service liveness and the active storage backend.
func (c *Controller) HandleHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"storage": c.Store.StorageMode(),
	})
}

// ontologyMetrics returns the store metric collectors, nil-safe for tests
// constructed without a metrics registry.
func (c *Controller) ontologyMetrics() *observability.OntologyMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.Ontology
}

// invalidateSearchCache drops cached search responses after a concept
// mutation; the expansion sets they were built from may have changed.
func (c *Controller) invalidateSearchCache() {
	if c.searchCache != nil {
		c.searchCache.Flush()
	}
}
