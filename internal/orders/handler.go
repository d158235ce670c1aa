package orders

import (
	"restopos-backend/internal/auth"
	"restopos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type addItemsRequest struct {
	Items []ItemInput `json:"items"`
}

type changeStatusRequest struct {
	Status  models.OrderStatus `json:"status"`
	Comment string             `json:"comment"`
}

type deliverRequest struct {
	Comment string `json:"comment"`
}

func orderID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "ID de orden inválido")
	}
	return uint(id), nil
}

// POST /api/ordenes
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var in CreateOrderInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}
		in.CreatedBy = actor.ID

		order, err := svc.CreateOrder(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// POST /api/ordenes/:id/items
func AddItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body addItemsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		order, err := svc.AddItems(c.UserContext(), id, actor, body.Items)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// PATCH /api/ordenes/:id/estado
func ChangeStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body changeStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		order, err := svc.ChangeStatus(c.UserContext(), id, actor, body.Status, body.Comment)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// PATCH /api/ordenes/:id/entregar
func DeliverHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body deliverRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
			}
		}

		order, err := svc.Deliver(c.UserContext(), id, actor, body.Comment)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// GET /api/ordenes/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}
		order, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// GET /api/ordenes?fecha=2026-10-17&estado=ready&tipo=delivery
func ListOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), ListFilter{
			BusinessDate: c.Query("fecha"),
			Status:       models.OrderStatus(c.Query("estado")),
			Kind:         models.OrderKind(c.Query("tipo")),
			Limit:        c.QueryInt("limit", 200),
		})
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}
