// Package orders builds orders from catalog snapshots and moves them through their lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/catalog"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/correlative"
	"restopos-backend/internal/database"
	"restopos-backend/internal/metrics"
	"restopos-backend/internal/models"
	"restopos-backend/internal/money"
	"restopos-backend/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Service struct {
	db          *gorm.DB
	catalog     *catalog.Repository
	correlative *correlative.Allocator
	clock       clock.Clock
	loc         *time.Location
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewService(db *gorm.DB, cat *catalog.Repository, alloc *correlative.Allocator, opts Options) *Service {
	s := &Service{
		db:          db,
		catalog:     cat,
		correlative: alloc,
		clock:       opts.Clock,
		loc:         opts.Location,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("orders.service")
	return s
}

type CreateOrderInput struct {
	Kind         models.OrderKind `json:"kind"`
	Table        *string          `json:"table"`
	CustomerName *string          `json:"customer_name"`
	Notes        string           `json:"notes"`
	Discount     decimal.Decimal  `json:"discount"`
	Tax          decimal.Decimal  `json:"tax"`
	Items        []ItemInput      `json:"items"`
	CreatedBy    uint             `json:"-"`
}

// Validate normalizes the input and checks everything that needs no database access.
func (in *CreateOrderInput) Validate() error {
	if !in.Kind.Valid() {
		return ErrInvalidKind.WithDetails(map[string]any{"kind": in.Kind})
	}

	in.Table = trimmedOrNil(in.Table)
	in.CustomerName = trimmedOrNil(in.CustomerName)
	in.Notes = strings.TrimSpace(in.Notes)

	switch in.Kind {
	case models.OrderKindDineIn:
		if in.Table == nil {
			return ErrTableRequired
		}
	case models.OrderKindTakeout, models.OrderKindDelivery:
		if in.Table != nil {
			return ErrTableNotAllowed
		}
	}

	if in.Discount.IsNegative() || in.Tax.IsNegative() {
		return ErrNegativeAmount.WithDetails(map[string]any{
			"discount": in.Discount.StringFixed(2),
			"tax":      in.Tax.StringFixed(2),
		})
	}
	return validateItems(in.Items)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// CreateOrder numbers, prices and stores a new order in one transaction.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := in.Validate(); err != nil {
		s.metrics.Rejected("create_order", err)
		return nil, err
	}

	businessDate := clock.BusinessDate(s.clock, s.loc)
	productIDs, optionIDs := referencedIDs(in.Items)

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.correlative.Next(ctx, tx, businessDate)
		if err != nil {
			return err
		}

		snap, err := s.catalog.Load(ctx, tx, productIDs, optionIDs)
		if err != nil {
			return err
		}
		p, err := priceItems(snap, in.Items)
		if err != nil {
			return err
		}

		discount := money.Round(in.Discount)
		tax := money.Round(in.Tax)
		total := money.Add(p.subtotal.Sub(discount), tax)
		if total.IsNegative() {
			return ErrNegativeTotal.WithDetails(map[string]any{
				"subtotal": p.subtotal.StringFixed(2),
				"discount": discount.StringFixed(2),
				"tax":      tax.StringFixed(2),
			})
		}

		status := initialStatus(p.kitchen)
		order = models.Order{
			BusinessDate: businessDate,
			Sequence:     seq,
			Code:         correlative.OrderCode(businessDate, seq),
			Kind:         in.Kind,
			Table:        in.Table,
			CustomerName: in.CustomerName,
			Notes:        in.Notes,
			Status:       status,
			Subtotal:     p.subtotal,
			Discount:     discount,
			Tax:          tax,
			Total:        total,
			CreatedBy:    in.CreatedBy,
			Items:        p.lines,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		history := models.OrderStatusHistory{
			OrderID:  order.ID,
			ToStatus: status,
			ActorID:  in.CreatedBy,
			Comment:  "Orden creada",
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("insert order history: %w", err)
		}
		order.History = []models.OrderStatusHistory{history}
		return nil
	})
	if err != nil {
		err = translateTxError(err, correlative.ErrCodeConflict)
		s.metrics.Rejected("create_order", err)
		return nil, err
	}

	s.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("code", order.Code),
		zap.String("status", string(order.Status)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.metrics.OrderCreated(string(order.Kind))
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.OrderCreated, orderPayload(&order),
		notify.GroupKitchen, notify.GroupCashier))
	return &order, nil
}

// AddItems appends lines to an order that is neither voided nor invoiced. Existing lines,
// discount and tax are left as they are; subtotal and total grow by the new lines.
func (s *Service) AddItems(ctx context.Context, orderID uint, actor models.Actor, items []ItemInput) (*models.Order, error) {
	if err := validateItems(items); err != nil {
		s.metrics.Rejected("add_items", err)
		return nil, err
	}
	productIDs, optionIDs := referencedIDs(items)

	var reopened bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusVoided {
			return ErrVoided
		}
		invoiced, err := hasInvoice(tx, order.ID)
		if err != nil {
			return err
		}
		if invoiced {
			return ErrAlreadyInvoiced
		}

		snap, err := s.catalog.Load(ctx, tx, productIDs, optionIDs)
		if err != nil {
			return err
		}
		p, err := priceItems(snap, items)
		if err != nil {
			return err
		}
		for i := range p.lines {
			p.lines[i].OrderID = order.ID
		}
		if err := tx.Create(&p.lines).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		updates := map[string]any{
			"subtotal": money.Add(order.Subtotal, p.subtotal),
			"total":    money.Add(order.Total, p.subtotal),
		}
		if order.Status == models.OrderStatusReady && p.kitchen {
			updates["status"] = models.OrderStatusNew
			reopened = true
		}
		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order totals: %w", err)
		}

		if reopened {
			from := models.OrderStatusReady
			history := models.OrderStatusHistory{
				OrderID:    order.ID,
				FromStatus: &from,
				ToStatus:   models.OrderStatusNew,
				ActorID:    actor.ID,
				Comment:    "Se agregaron productos que requieren cocina",
			}
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("insert order history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		err = translateTxError(err, ErrConcurrentUpdate)
		s.metrics.Rejected("add_items", err)
		return nil, err
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("order items added",
		zap.Uint("order_id", order.ID),
		zap.Int("items", len(items)),
		zap.Bool("reopened", reopened),
	)
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.OrderUpdated, orderPayload(order),
		notify.GroupKitchen, notify.GroupCashier))
	return order, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound.WithDetails(map[string]any{"order_id": id})
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

type ListFilter struct {
	BusinessDate string
	Status       models.OrderStatus
	Kind         models.OrderKind
	Limit        int
}

// List returns the orders of a business date (today when empty), newest first, without lines.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Order, error) {
	if f.BusinessDate == "" {
		f.BusinessDate = clock.BusinessDate(s.clock, s.loc)
	} else if _, err := time.Parse(clock.DateLayout, f.BusinessDate); err != nil {
		return nil, apperr.Validation("order_date_invalid", "Fecha inválida; use AAAA-MM-DD")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus.WithDetails(map[string]any{"status": f.Status})
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, ErrInvalidKind.WithDetails(map[string]any{"kind": f.Kind})
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 200
	}

	q := s.db.WithContext(ctx).Where("business_date = ?", f.BusinessDate)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}

	var list []models.Order
	if err := q.Order("sequence DESC").Limit(f.Limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound.WithDetails(map[string]any{"order_id": id})
		}
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return &order, nil
}

func hasInvoice(tx *gorm.DB, orderID uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.Invoice{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check invoice for order %d: %w", orderID, err)
	}
	return count > 0, nil
}

// translateTxError keeps business errors and maps store races to retryable conflicts.
func translateTxError(err error, onDuplicate *apperr.Error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsDuplicateKey(err) {
		return onDuplicate.Wrap(err)
	}
	if database.IsSerializationFailure(err) {
		return ErrConcurrentUpdate.Wrap(err)
	}
	return err
}

func orderPayload(o *models.Order) map[string]any {
	payload := map[string]any{
		"order_id": o.ID,
		"code":     o.Code,
		"kind":     o.Kind,
		"status":   o.Status,
		"total":    o.Total.StringFixed(2),
		"items":    len(o.Items),
	}
	if o.Table != nil {
		payload["table"] = *o.Table
	}
	return payload
}
