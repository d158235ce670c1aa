package invoicing

import (
	"restopos-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func invoiceID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "ID de factura inválido")
	}
	return uint(id), nil
}

// POST /api/pos/cobrar
func IssueHandler(issuer *Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		var in IssueInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}
		in.Actor = actor

		res, err := issuer.Issue(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/facturas/:id
func GetHandler(issuer *Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := invoiceID(c)
		if err != nil {
			return err
		}
		invoice, err := issuer.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(invoice)
	}
}

// POST /api/facturas/:id/reimprimir
func ReprintHandler(issuer *Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		id, err := invoiceID(c)
		if err != nil {
			return err
		}
		invoice, err := issuer.Reprint(c.UserContext(), id, actor)
		if err != nil {
			return err
		}
		return c.JSON(invoice)
	}
}
