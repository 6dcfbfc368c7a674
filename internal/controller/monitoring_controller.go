package controller

import (
	"context"
	"errors"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/pkg/logger"
	"parcel-constraints-be/internal/pkg/serverutils"
	"parcel-constraints-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

type IMonitoringController interface {
	RegisterRoutes(app fiber.Router, api fiber.Router)
	Health(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
	ClearCache(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
}

type monitoringController struct {
	service   service.IConstraintService
	logger    logger.ILogger
	dbCheck   HealthChecker
	jwtSecret string
}

func NewMonitoringController(
	service service.IConstraintService,
	log logger.ILogger,
	dbCheck HealthChecker,
	jwtSecret string,
) IMonitoringController {
	return &monitoringController{
		service:   service,
		logger:    log,
		dbCheck:   dbCheck,
		jwtSecret: jwtSecret,
	}
}

// RegisterRoutes mounts /health and /metrics on the root and the cache and
// log endpoints under api.
func (c *monitoringController) RegisterRoutes(app fiber.Router, api fiber.Router) {
	app.Get("/health", c.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := api.Group("/monitoring/v1")
	h.Get("/cache", c.CacheStats)
	h.Delete("/cache", serverutils.JwtMiddleware(c.jwtSecret), c.ClearCache)
	h.Get("/logs", serverutils.JwtMiddleware(c.jwtSecret), c.Logs)
}

func (c *monitoringController) Health(ctx *fiber.Ctx) error {
	res := dto.HealthResponse{Status: "ok", Database: "disabled"}
	if c.dbCheck != nil {
		res.Database = "up"
		if err := c.dbCheck(ctx.UserContext()); err != nil {
			res.Status = "degraded"
			res.Database = "down"
			body := serverutils.ErrorResponse(fiber.StatusServiceUnavailable, "Database unreachable", err.Error())
			body.Data = res
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Service healthy", res))
}

func (c *monitoringController) CacheStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get cache stats", c.service.CacheStats()))
}

func (c *monitoringController) ClearCache(ctx *fiber.Ctx) error {
	c.service.ClearCache(ctx.UserContext())
	c.logger.Info("monitoring", "Cache cleared by operator", map[string]interface{}{
		"subject": ctx.Locals("subject"),
	})
	return ctx.JSON(serverutils.SuccessResponse("Success clear cache", c.service.CacheStats()))
}

func (c *monitoringController) Logs(ctx *fiber.Ctx) error {
	var req dto.LogsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	if id := ctx.Query("id"); id != "" {
		entry, err := c.logger.GetLogById(id)
		if errors.Is(err, logger.ErrLogNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Log not found")
		}
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success get log", entry))
	}

	entries, err := c.logger.GetLogs(req.Level, req.Limit, req.Offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get logs", entries))
}
