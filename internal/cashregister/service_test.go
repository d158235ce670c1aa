package cashregister

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/auth"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/models"
	"restopos-backend/internal/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newService(db *gorm.DB) *Service {
	return NewService(db, clock.NewFake(testNow), time.UTC, nil, nil, zap.NewNop())
}

func actorOf(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

func TestOpenCreatesSession(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	session, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("500.005"))
	require.NoError(t, err)
	assert.Equal(t, models.CashSessionOpen, session.Status)
	assert.Equal(t, "2026-10-17", session.BusinessDate)
	assert.Equal(t, "500.01", session.OpeningAmount.StringFixed(2))

	active, err := svc.Active(context.Background(), cashier.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.ID, active.ID)

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ? AND action = ?", "cash_session", models.AuditActionOpen).Count(&logs).Error)
	assert.Equal(t, int64(1), logs)
}

func TestOpenRejectsSecondSession(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	first, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("100"))
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), actorOf(cashier), storetest.Dec("100"))
	require.ErrorIs(t, err, ErrSessionAlreadyOpen)
	assert.EqualValues(t, first.ID, apperr.From(err).Details["session_id"])
}

func TestOpenTreatsBlankStatusAsOpen(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	legacy := models.CashSession{
		OperatorID:    cashier.ID,
		BusinessDate:  "2026-10-16",
		OpeningAmount: storetest.Dec("0"),
		OpenedAt:      testNow.Add(-24 * time.Hour),
	}
	require.NoError(t, db.Create(&legacy).Error)

	_, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("0"))
	require.ErrorIs(t, err, ErrSessionAlreadyOpen)
}

func TestOpenValidation(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	_, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("-1"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Open(context.Background(), models.Actor{ID: 999}, storetest.Dec("0"))
	require.ErrorIs(t, err, ErrUnknownOperator)
}

func TestConcurrentOpensYieldOneSession(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("50"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSessionAlreadyOpen):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, rejected)

	var count int64
	require.NoError(t, db.Model(&models.CashSession{}).Where("operator_id = ?", cashier.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCloseOwnSession(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)
	opened := storetest.OpenSession(t, db, cashier.ID, "2026-10-17")

	closed, err := svc.Close(context.Background(), CloseInput{
		Actor:         actorOf(cashier),
		ClosingAmount: storetest.Dec("1234.50"),
		Breakdown: &Breakdown{
			Denominations: []Denomination{{Value: storetest.Dec("500"), Count: 2}, {Value: storetest.Dec("234.50"), Count: 1}},
			ByMethod:      map[models.PaymentMethod]decimal.Decimal{models.PaymentMethodCash: storetest.Dec("1234.50")},
			Notes:         "  sin novedad ",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, opened.ID, closed.ID)
	assert.Equal(t, models.CashSessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, cashier.ID, *closed.ClosedBy)

	var stored models.CashSession
	require.NoError(t, db.First(&stored, opened.ID).Error)
	assert.Equal(t, models.CashSessionClosed, stored.Status)
	require.NotNil(t, stored.ClosedAt)
	require.NotNil(t, stored.ClosingAmount)
	assert.Equal(t, "1234.50", stored.ClosingAmount.StringFixed(2))

	var breakdown Breakdown
	require.NoError(t, json.Unmarshal(stored.ClosingBreakdown, &breakdown))
	assert.Len(t, breakdown.Denominations, 2)
	assert.Equal(t, "sin novedad", breakdown.Notes)

	active, err := svc.Active(context.Background(), cashier.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = svc.Close(context.Background(), CloseInput{Actor: actorOf(cashier)})
	require.ErrorIs(t, err, ErrSessionNotOpen)

	_, err = svc.Close(context.Background(), CloseInput{SessionID: &opened.ID, Actor: actorOf(cashier)})
	require.ErrorIs(t, err, ErrSessionNotOpen)
}

func TestCloseOtherOperatorsSession(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	owner := storetest.User(t, db, models.RoleCashier)
	colleague := storetest.User(t, db, models.RoleCashier)
	supervisor := storetest.User(t, db, models.RoleSupervisor)
	session := storetest.OpenSession(t, db, owner.ID, "2026-10-17")

	_, err := svc.Close(context.Background(), CloseInput{SessionID: &session.ID, Actor: actorOf(colleague)})
	require.ErrorIs(t, err, ErrNotOwner)

	closed, err := svc.Close(context.Background(), CloseInput{SessionID: &session.ID, Actor: actorOf(supervisor)})
	require.NoError(t, err)
	assert.Equal(t, supervisor.ID, *closed.ClosedBy)
	assert.Equal(t, owner.ID, closed.OperatorID)

	missing := uint(4242)
	_, err = svc.Close(context.Background(), CloseInput{SessionID: &missing, Actor: actorOf(supervisor)})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCloseRejectsBadBreakdown(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)
	storetest.OpenSession(t, db, cashier.ID, "2026-10-17")

	_, err := svc.Close(context.Background(), CloseInput{
		Actor:     actorOf(cashier),
		Breakdown: &Breakdown{Denominations: []Denomination{{Value: storetest.Dec("0"), Count: 1}}},
	})
	require.ErrorIs(t, err, ErrInvalidBreakdown)

	_, err = svc.Close(context.Background(), CloseInput{Actor: actorOf(cashier), ClosingAmount: storetest.Dec("-5")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	active, err := svc.Active(context.Background(), cashier.ID)
	require.NoError(t, err)
	assert.NotNil(t, active)
}

func TestCashHandlers(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(db)
	cashier := storetest.User(t, db, models.RoleCashier)

	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(zap.NewNop())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, cashier.ID)
		c.Locals(auth.CtxUserRoleKey, cashier.Role)
		return c.Next()
	})
	app.Post("/caja/abrir", OpenHandler(svc))
	app.Post("/caja/cerrar", CloseHandler(svc))
	app.Get("/caja/sesion-activa", ActiveHandler(svc))

	call := func(method, path, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		out := map[string]any{}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	status, body := call("GET", "/caja/sesion-activa", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["session"])

	status, _ = call("POST", "/caja/abrir", `{"opening_amount":"300.00"}`)
	assert.Equal(t, fiber.StatusCreated, status)

	status, body = call("POST", "/caja/abrir", `{"opening_amount":"300.00"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	errBody, _ := body["error"].(map[string]any)
	assert.Equal(t, "cash_session_already_open", errBody["code"])

	status, body = call("GET", "/caja/sesion-activa", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["session"])

	status, body = call("POST", "/caja/cerrar", `{"closing_amount":"310.00","breakdown":{"notes":"ok"}}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "closed", body["status"])
}

func TestNewServiceDefaults(t *testing.T) {
	db := storetest.Open(t)
	svc := NewService(db, nil, nil, nil, nil, nil)
	cashier := storetest.User(t, db, models.RoleCashier)

	session, err := svc.Open(context.Background(), actorOf(cashier), storetest.Dec("100"))
	require.NoError(t, err)

	active, err := svc.Active(context.Background(), cashier.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.ID, active.ID)
}
