package audit

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"restopos-backend/internal/models"
	"restopos-backend/internal/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteLogRollsBackWithTransaction(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	actor := models.Actor{ID: 3, Name: "Marta", Role: models.RoleCashier}

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, WriteLog(ctx, tx, LogOptions{
			Actor:      actor,
			EntityType: EntityInvoice,
			EntityID:   1,
			Action:     models.AuditActionIssue,
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListFilters(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	actor := models.Actor{ID: 3, Name: "Marta", Role: models.RoleCashier}

	require.NoError(t, WriteLog(ctx, db, LogOptions{
		Actor:       actor,
		EntityType:  EntityInvoice,
		EntityID:    10,
		Action:      models.AuditActionIssue,
		Description: "Factura 001-001-01-00000001",
		Data:        map[string]any{"total": "215.00"},
	}))
	require.NoError(t, WriteLog(ctx, db, LogOptions{
		Actor:      models.Actor{ID: 4, Name: "Jefe"},
		EntityType: EntityCashSession,
		EntityID:   2,
		Action:     models.AuditActionClose,
	}))

	logs, err := List(ctx, db, Filter{EntityType: EntityInvoice})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Marta", logs[0].UserName)
	assert.JSONEq(t, `{"total":"215.00"}`, string(logs[0].Data))

	logs, err = List(ctx, db, Filter{UserID: 4})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `null`, string(logs[0].Data))

	app := fiber.New()
	app.Get("/auditoria", ListAuditLogsHandler(db))
	resp, err := app.Test(httptest.NewRequest("GET", "/auditoria?entity_id=10", nil))
	require.NoError(t, err)
	var body []AuditLogResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, models.AuditActionIssue, body[0].Action)
}
