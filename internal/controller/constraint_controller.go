package controller

import (
	"errors"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/pkg/serverutils"
	"parcel-constraints-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IConstraintController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	Locate(ctx *fiber.Ctx) error
	Retrieve(ctx *fiber.Ctx) error
	RecentAnalyses(ctx *fiber.Ctx) error
	GetAnalysis(ctx *fiber.Ctx) error
	DeleteAnalysis(ctx *fiber.Ctx) error
}

type constraintController struct {
	service   service.IConstraintService
	jwtSecret string
}

func NewConstraintController(service service.IConstraintService, jwtSecret string) IConstraintController {
	return &constraintController{service: service, jwtSecret: jwtSecret}
}

func (c *constraintController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/constraints/v1")
	h.Post("/analyze", c.Analyze)
	h.Post("/locate", c.Locate)
	h.Post("/retrieve", c.Retrieve)
	h.Get("/analyses/recent", c.RecentAnalyses)
	h.Get("/analyses/:id", c.GetAnalysis)
	h.Delete("/analyses/:id", serverutils.JwtMiddleware(c.jwtSecret), c.DeleteAnalysis)
}

func (c *constraintController) Analyze(ctx *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Analyze(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success analyze parcel", res))
}

func (c *constraintController) Locate(ctx *fiber.Ctx) error {
	var req dto.LocateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Locate(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success locate zone", res))
}

func (c *constraintController) Retrieve(ctx *fiber.Ctx) error {
	var req dto.RetrieveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Retrieve(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retrieve passages", res))
}

func (c *constraintController) RecentAnalyses(ctx *fiber.Ctx) error {
	var req dto.RecentAnalysesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RecentAnalyses(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get recent analyses", res))
}

func (c *constraintController) GetAnalysis(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid analysis id")
	}

	res, err := c.service.GetAnalysis(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get analysis", res))
}

func (c *constraintController) DeleteAnalysis(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid analysis id")
	}

	if err := c.service.DeleteAnalysis(ctx.UserContext(), id); err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete analysis", nil))
}
