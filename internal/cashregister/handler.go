package cashregister

import (
	"restopos-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type openRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount"`
}

type closeRequest struct {
	SessionID     *uint           `json:"session_id"`
	ClosingAmount decimal.Decimal `json:"closing_amount"`
	Breakdown     *Breakdown      `json:"breakdown"`
}

// POST /api/caja/abrir
func OpenHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		var body openRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		session, err := svc.Open(c.UserContext(), actor, body.OpeningAmount)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	}
}

// POST /api/caja/cerrar
func CloseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		var body closeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		session, err := svc.Close(c.UserContext(), CloseInput{
			SessionID:     body.SessionID,
			Actor:         actor,
			ClosingAmount: body.ClosingAmount,
			Breakdown:     body.Breakdown,
		})
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// GET /api/caja/sesion-activa
func ActiveHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		session, err := svc.Active(c.UserContext(), actor.ID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"session": session})
	}
}
