package controller

import (
	"net/url"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/pkg/serverutils"
	"parcel-constraints-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IIngestController interface {
	RegisterRoutes(r fiber.Router)
	IngestRegulation(ctx *fiber.Ctx) error
	Coverage(ctx *fiber.Ctx) error
	Chunks(ctx *fiber.Ctx) error
}

type ingestController struct {
	service service.IIngestService
}

func NewIngestController(service service.IIngestService) IIngestController {
	return &ingestController{service: service}
}

func (c *ingestController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ingest/v1")
	h.Post("/regulations", c.IngestRegulation)
	h.Get("/regulations", c.Coverage)
	h.Get("/regulations/:municipality/chunks", c.Chunks)
}

// IngestRegulation only queues the text; the response is 202.
func (c *ingestController) IngestRegulation(ctx *fiber.Ctx) error {
	var req dto.IngestRegulationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Enqueue(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	body := serverutils.SuccessResponse("Regulation queued for ingestion", res)
	body.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(body)
}

func (c *ingestController) Coverage(ctx *fiber.Ctx) error {
	var req dto.RegulationCoverageRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Coverage(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get regulation coverage", res))
}

func (c *ingestController) Chunks(ctx *fiber.Ctx) error {
	var req dto.RegulationChunksRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	municipality, err := url.PathUnescape(ctx.Params("municipality"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid municipality")
	}

	res, err := c.service.Chunks(ctx.UserContext(), municipality, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get regulation chunks", res))
}
