package catalog

import (
	"github.com/gofiber/fiber/v2"
)

// GET /api/productos?categoria=ID
func ListProductsHandler(repo *Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		categoryID := c.QueryInt("categoria", 0)
		if categoryID < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Categoría inválida")
		}

		products, err := repo.ListActive(c.UserContext(), uint(categoryID))
		if err != nil {
			return err
		}
		return c.JSON(products)
	}
}
