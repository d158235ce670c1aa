package orders

import (
	"context"
	"fmt"
	"strings"

	"restopos-backend/internal/audit"
	"restopos-backend/internal/models"
	"restopos-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// checkTransition enforces new → in_preparation → ready → delivered, with voided
// reachable from every other state and nothing leaving voided.
func checkTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return ErrInvalidStatus.WithDetails(map[string]any{"status": to})
	}
	if from == models.OrderStatusVoided {
		return ErrVoided
	}
	if to == models.OrderStatusVoided {
		return nil
	}

	var next models.OrderStatus
	switch from {
	case models.OrderStatusNew:
		next = models.OrderStatusInPreparation
	case models.OrderStatusInPreparation:
		next = models.OrderStatusReady
	case models.OrderStatusReady:
		next = models.OrderStatusDelivered
	case models.OrderStatusDelivered, models.OrderStatusVoided:
		// no forward move
	}
	if next == "" || to != next {
		return ErrIllegalTransition.WithDetails(map[string]any{"from": from, "to": to})
	}
	return nil
}

// ChangeStatus applies one transition with its history record.
func (s *Service) ChangeStatus(ctx context.Context, orderID uint, actor models.Actor, to models.OrderStatus, comment string) (*models.Order, error) {
	return s.transition(ctx, orderID, actor, to, comment, false)
}

// Deliver confirms the hand-off of an invoiced delivery order.
func (s *Service) Deliver(ctx context.Context, orderID uint, actor models.Actor, comment string) (*models.Order, error) {
	return s.transition(ctx, orderID, actor, models.OrderStatusDelivered, comment, true)
}

func (s *Service) transition(ctx context.Context, orderID uint, actor models.Actor, to models.OrderStatus, comment string, deliveryOnly bool) (*models.Order, error) {
	op := "change_status"
	if deliveryOnly {
		op = "deliver"
	}
	if !to.Valid() {
		err := ErrInvalidStatus.WithDetails(map[string]any{"status": to})
		s.metrics.Rejected(op, err)
		return nil, err
	}
	comment = strings.TrimSpace(comment)

	var from models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if deliveryOnly && order.Kind != models.OrderKindDelivery && from != models.OrderStatusVoided {
			return ErrNotDelivery.WithDetails(map[string]any{"kind": order.Kind})
		}
		if err := checkTransition(from, to); err != nil {
			return err
		}
		if to == models.OrderStatusDelivered {
			invoiced, err := hasInvoice(tx, order.ID)
			if err != nil {
				return err
			}
			if !invoiced {
				return ErrNotInvoiced
			}
		}

		updates := map[string]any{"status": to}
		if to == models.OrderStatusInPreparation && order.KitchenUserID == nil {
			updates["kitchen_user_id"] = actor.ID
		}
		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		history := models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: &from,
			ToStatus:   to,
			ActorID:    actor.ID,
			Comment:    comment,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("insert order history: %w", err)
		}

		if to == models.OrderStatusVoided {
			return audit.WriteLog(ctx, tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityOrder,
				EntityID:    order.ID,
				Action:      models.AuditActionVoid,
				Description: fmt.Sprintf("Orden %s anulada", order.Code),
				Data:        map[string]any{"from": from, "comment": comment},
			})
		}
		return nil
	})
	if err != nil {
		err = translateTxError(err, ErrConcurrentUpdate)
		s.metrics.Rejected(op, err)
		return nil, err
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint("actor_id", actor.ID),
	)
	payload := orderPayload(order)
	payload["from"] = from
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.OrderStatusChanged, payload,
		notify.GroupKitchen, notify.GroupCashier))
	return order, nil
}
