package orders

import (
	"context"
	"testing"

	"restopos-backend/internal/models"
	"restopos-backend/internal/notify"
	"restopos-backend/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderStatusNew,
		models.OrderStatusInPreparation,
		models.OrderStatusReady,
		models.OrderStatusDelivered,
		models.OrderStatusVoided,
	}
	allowed := map[models.OrderStatus]map[models.OrderStatus]bool{
		models.OrderStatusNew:           {models.OrderStatusInPreparation: true, models.OrderStatusVoided: true},
		models.OrderStatusInPreparation: {models.OrderStatusReady: true, models.OrderStatusVoided: true},
		models.OrderStatusReady:         {models.OrderStatusDelivered: true, models.OrderStatusVoided: true},
		models.OrderStatusDelivered:     {models.OrderStatusVoided: true},
		models.OrderStatusVoided:        {},
	}

	for _, from := range all {
		for _, to := range all {
			err := checkTransition(from, to)
			switch {
			case allowed[from][to]:
				assert.NoError(t, err, "%s -> %s", from, to)
			case from == models.OrderStatusVoided:
				assert.ErrorIs(t, err, ErrVoided, "%s -> %s", from, to)
			default:
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
			}
		}
	}

	assert.ErrorIs(t, checkTransition(models.OrderStatusNew, "cooking"), ErrInvalidStatus)
}

func TestChangeStatusAssignsKitchenUserOnce(t *testing.T) {
	db := storetest.Open(t)
	svc, events := newService(t, db)
	cook := storetest.User(t, db, models.RoleKitchen)
	other := storetest.User(t, db, models.RoleKitchen)
	order := storetest.Order(t, db, models.OrderKindTakeout, models.OrderStatusNew, "80.00")
	ctx := context.Background()

	got, err := svc.ChangeStatus(ctx, order.ID, models.Actor{ID: cook.ID, Role: models.RoleKitchen}, models.OrderStatusInPreparation, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInPreparation, got.Status)
	require.NotNil(t, got.KitchenUserID)
	assert.Equal(t, cook.ID, *got.KitchenUserID)

	got, err = svc.ChangeStatus(ctx, order.ID, models.Actor{ID: other.ID, Role: models.RoleKitchen}, models.OrderStatusReady, "listo")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, got.Status)
	assert.Equal(t, cook.ID, *got.KitchenUserID)

	require.Len(t, got.History, 2)
	assert.Equal(t, models.OrderStatusInPreparation, *got.History[1].FromStatus)
	assert.Equal(t, models.OrderStatusReady, got.History[1].ToStatus)
	assert.Equal(t, "listo", got.History[1].Comment)
	assert.Equal(t, other.ID, got.History[1].ActorID)

	_, err = svc.ChangeStatus(ctx, order.ID, models.Actor{ID: cook.ID}, models.OrderStatusNew, "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	assert.Equal(t, []notify.EventType{notify.OrderStatusChanged, notify.OrderStatusChanged}, events.types())
}

func TestVoidedOrderIsImmutable(t *testing.T) {
	db := storetest.Open(t)
	svc, _ := newService(t, db)
	supervisor := models.Actor{ID: 9, Name: "Supervisor", Role: models.RoleSupervisor}
	order := storetest.Order(t, db, models.OrderKindDelivery, models.OrderStatusInPreparation, "120.00")
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, order.ID, supervisor, models.OrderStatusVoided, "cliente canceló")
	require.NoError(t, err)

	for _, to := range []models.OrderStatus{
		models.OrderStatusNew,
		models.OrderStatusInPreparation,
		models.OrderStatusReady,
		models.OrderStatusDelivered,
		models.OrderStatusVoided,
	} {
		_, err := svc.ChangeStatus(ctx, order.ID, supervisor, to, "")
		assert.ErrorIs(t, err, ErrVoided, "to %s", to)
	}
	_, err = svc.Deliver(ctx, order.ID, supervisor, "")
	assert.ErrorIs(t, err, ErrVoided)

	var logs []models.AuditLog
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", "order", order.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionVoid, logs[0].Action)
	assert.Equal(t, "Supervisor", logs[0].UserName)

	var history int64
	require.NoError(t, db.Model(&models.OrderStatusHistory{}).Where("order_id = ?", order.ID).Count(&history).Error)
	assert.Equal(t, int64(1), history)
}

func TestDeliverRequiresInvoiceAndDeliveryKind(t *testing.T) {
	db := storetest.Open(t)
	svc, _ := newService(t, db)
	cashier := models.Actor{ID: 2, Role: models.RoleCashier}
	ctx := context.Background()

	delivery := storetest.Order(t, db, models.OrderKindDelivery, models.OrderStatusReady, "150.00")
	_, err := svc.Deliver(ctx, delivery.ID, cashier, "")
	require.ErrorIs(t, err, ErrNotInvoiced)

	invoiceFor(t, db, delivery)
	got, err := svc.Deliver(ctx, delivery.ID, cashier, "entregado en puerta")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)

	takeout := storetest.Order(t, db, models.OrderKindTakeout, models.OrderStatusReady, "40.00")
	invoiceFor(t, db, takeout)
	_, err = svc.Deliver(ctx, takeout.ID, cashier, "")
	require.ErrorIs(t, err, ErrNotDelivery)

	// The generic transition only needs the invoice.
	got, err = svc.ChangeStatus(ctx, takeout.ID, cashier, models.OrderStatusDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)

	_, err = svc.Deliver(ctx, 777, cashier, "")
	require.ErrorIs(t, err, ErrNotFound)
}
