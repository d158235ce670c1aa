package orders

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/auth"
	"restopos-backend/internal/models"
	"restopos-backend/internal/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(svc *Service, userID uint, role models.UserRole) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(zap.NewNop())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, userID)
		c.Locals(auth.CtxUserRoleKey, role)
		return c.Next()
	})
	app.Post("/ordenes", CreateOrderHandler(svc))
	app.Post("/ordenes/:id/items", AddItemsHandler(svc))
	app.Patch("/ordenes/:id/estado", ChangeStatusHandler(svc))
	app.Patch("/ordenes/:id/entregar", DeliverHandler(svc))
	app.Get("/ordenes", ListOrdersHandler(svc))
	app.Get("/ordenes/:id", GetOrderHandler(svc))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestOrderHandlers(t *testing.T) {
	db := storetest.Open(t)
	svc, _ := newService(t, db)
	cashier := storetest.User(t, db, models.RoleCashier)
	fries := storetest.Product(t, db, storetest.ProductSpec{Name: "Papas", Price: "45.00", RequiresKitchen: true})
	app := newTestApp(svc, cashier.ID, models.RoleCashier)

	status, body := do(t, app, "POST", "/ordenes", fmt.Sprintf(
		`{"kind":"takeout","customer_name":"Rosa","discount":"0","tax":6.75,"items":[{"product_id":%d,"quantity":1}]}`, fries.ID))
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "ORD-20261017-0001", body["code"])
	assert.Equal(t, "new", body["status"])
	assert.Equal(t, "51.75", body["total"])
	id := uint(body["id"].(float64))

	status, body = do(t, app, "POST", "/ordenes", `{"kind":"dine_in","items":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "order_table_required", errorCode(body))

	status, body = do(t, app, "PATCH", fmt.Sprintf("/ordenes/%d/estado", id), `{"status":"ready"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "order_transition_not_allowed", errorCode(body))

	status, body = do(t, app, "PATCH", fmt.Sprintf("/ordenes/%d/estado", id), `{"status":"in_preparation"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "in_preparation", body["status"])

	status, body = do(t, app, "PATCH", fmt.Sprintf("/ordenes/%d/entregar", id), "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "order_not_delivery", errorCode(body))

	status, body = do(t, app, "POST", fmt.Sprintf("/ordenes/%d/items", id), fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":2}]}`, fries.ID))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "141.75", body["total"])

	status, body = do(t, app, "GET", fmt.Sprintf("/ordenes/%d", id), "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["items"], 2)

	status, _ = do(t, app, "GET", "/ordenes/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(t, app, "GET", "/ordenes/999", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "order_not_found", errorCode(body))

	req := httptest.NewRequest("GET", "/ordenes?estado=in_preparation", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var list []models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}
