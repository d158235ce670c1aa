package cai

import (
	"restopos-backend/internal/auth"
	"restopos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CAIResponse struct {
	models.CAI
	Remaining int64 `json:"remaining"`
}

// GET /api/cai
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]CAIResponse, 0, len(list))
		for _, item := range list {
			res = append(res, CAIResponse{CAI: item, Remaining: item.Remaining()})
		}
		return c.JSON(res)
	}
}

// POST /api/cai
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		var in CreateInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		created, err := svc.Create(c.UserContext(), in, actor)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(CAIResponse{CAI: *created, Remaining: created.Remaining()})
	}
}

// PATCH /api/cai/:id/activar
func ActivateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "ID de CAI inválido")
		}

		activated, err := svc.Activate(c.UserContext(), uint(id), actor)
		if err != nil {
			return err
		}
		return c.JSON(CAIResponse{CAI: *activated, Remaining: activated.Remaining()})
	}
}
