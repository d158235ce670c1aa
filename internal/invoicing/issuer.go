// Package invoicing turns a paid order into a fiscal invoice numbered from the active CAI.
package invoicing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/audit"
	"restopos-backend/internal/cai"
	"restopos-backend/internal/cashregister"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/database"
	"restopos-backend/internal/metrics"
	"restopos-backend/internal/models"
	"restopos-backend/internal/money"
	"restopos-backend/internal/notify"
	"restopos-backend/internal/orders"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Issuer struct {
	db       *gorm.DB
	clock    clock.Clock
	loc      *time.Location
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewIssuer(db *gorm.DB, opts Options) *Issuer {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Issuer{
		db:       db,
		clock:    opts.Clock,
		loc:      opts.Location,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		log:      opts.Logger.Named("invoicing.issuer"),
	}
}

type IssueInput struct {
	OrderID       uint           `json:"order_id"`
	CashSessionID uint           `json:"cash_session_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerTaxID string         `json:"customer_tax_id"`
	Copy          bool           `json:"copy"`
	Payments      []PaymentInput `json:"payments"`
	Actor         models.Actor   `json:"-"`
}

type IssueResult struct {
	InvoiceID      uint            `json:"invoice_id"`
	OrderID        uint            `json:"order_id"`
	DocumentNumber string          `json:"document_number"`
	Total          decimal.Decimal `json:"total"`
	Change         decimal.Decimal `json:"change"`
}

// Issue creates the invoice for one order. Locks are taken in a fixed order:
// cash session (shared), order, invoice lookup, active CAI.
func (s *Issuer) Issue(ctx context.Context, in IssueInput) (*IssueResult, error) {
	started := time.Now()

	if in.Copy {
		return nil, s.reject(ErrCopyNotIssuable)
	}
	if in.OrderID == 0 || in.CashSessionID == 0 {
		return nil, s.reject(ErrInvalidOrder)
	}
	taxID, err := normalizeTaxID(in.CustomerTaxID)
	if err != nil {
		return nil, s.reject(err)
	}
	payments, paid, change, err := buildPayments(in.Payments)
	if err != nil {
		return nil, s.reject(err)
	}

	businessDate := clock.BusinessDate(s.clock, s.loc)
	var (
		invoice   models.Invoice
		order     *models.Order
		remaining int64
	)
	issue := func(tx *gorm.DB) error {
		if err := checkSession(tx, in.CashSessionID); err != nil {
			return err
		}

		var err error
		order, err = lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusVoided {
			return orders.ErrVoided.WithDetails(map[string]any{"order_id": order.ID})
		}
		if err := checkNotInvoiced(tx, order.ID); err != nil {
			return err
		}
		if len(payments) == 0 && !money.Round(order.Total).IsZero() {
			return ErrNoPayments.WithDetails(map[string]any{"order_total": order.Total.StringFixed(2)})
		}
		if !money.Equal(paid, order.Total) {
			return ErrPaymentMismatch.WithDetails(map[string]any{
				"order_total": order.Total.StringFixed(2),
				"paid":        paid.StringFixed(2),
			})
		}

		active, err := cai.LockActive(ctx, tx)
		if err != nil {
			return err
		}
		next, err := cai.NextCorrelative(active, businessDate)
		if err != nil {
			return err
		}
		if err := cai.Advance(ctx, tx, active, next); err != nil {
			return err
		}
		remaining = active.RangeTo - next

		invoice = models.Invoice{
			OrderID:        order.ID,
			CashSessionID:  in.CashSessionID,
			CAIID:          active.ID,
			CAICode:        active.Code,
			CAIExpiresOn:   active.ExpiresOn,
			CAIRangeFrom:   active.RangeFrom,
			CAIRangeTo:     active.RangeTo,
			Establishment:  active.Establishment,
			EmissionPoint:  active.EmissionPoint,
			DocumentType:   active.DocumentType,
			Correlative:    next,
			DocumentNumber: FormatDocumentNumber(active.Establishment, active.EmissionPoint, active.DocumentType, next),
			CustomerName:   strings.TrimSpace(in.CustomerName),
			CustomerTaxID:  taxID,
			Subtotal:       money.Round(order.Subtotal),
			Discount:       money.Round(order.Discount),
			Tax:            money.Round(order.Tax),
			Total:          money.Round(order.Total),
			CreatedBy:      in.Actor.ID,
			Payments:       append([]models.Payment(nil), payments...),
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       in.Actor,
			EntityType:  audit.EntityInvoice,
			EntityID:    invoice.ID,
			Action:      models.AuditActionIssue,
			Description: "Factura " + invoice.DocumentNumber,
			Data: map[string]any{
				"order_id":        order.ID,
				"cash_session_id": in.CashSessionID,
				"cai_id":          active.ID,
				"correlative":     next,
				"total":           invoice.Total.StringFixed(2),
			},
		})
	}
	err = retryTx(ctx, txAttempts, txBackoff, func() error {
		return s.db.WithContext(ctx).Transaction(issue, s.txOptions())
	})
	if err != nil {
		return nil, s.reject(translateTxError(err))
	}

	s.log.Info("invoice issued",
		zap.Uint("invoice_id", invoice.ID),
		zap.Uint("order_id", invoice.OrderID),
		zap.String("document_number", invoice.DocumentNumber),
		zap.String("total", invoice.Total.StringFixed(2)),
		zap.Int64("cai_remaining", remaining),
	)
	s.metrics.InvoiceIssued(invoice.Total.InexactFloat64(), remaining, time.Since(started))
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.InvoiceIssued, map[string]any{
		"invoice_id":      invoice.ID,
		"order_id":        invoice.OrderID,
		"order_code":      order.Code,
		"document_number": invoice.DocumentNumber,
		"total":           invoice.Total.StringFixed(2),
	}, notify.GroupCashier))

	return &IssueResult{
		InvoiceID:      invoice.ID,
		OrderID:        invoice.OrderID,
		DocumentNumber: invoice.DocumentNumber,
		Total:          invoice.Total,
		Change:         change,
	}, nil
}

// Get returns an invoice with its payments.
func (s *Issuer) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.WithContext(ctx).Preload("Payments").First(&invoice, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound.WithDetails(map[string]any{"invoice_id": id})
		}
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return &invoice, nil
}

// Reprint returns the stored document flagged as a copy. No invoice row is written
// and no correlative is consumed; only the audit trail records the reprint.
func (s *Issuer) Reprint(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = audit.WriteLog(ctx, s.db, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityInvoice,
		EntityID:    invoice.ID,
		Action:      models.AuditActionReprint,
		Description: "Copia de factura " + invoice.DocumentNumber,
	})
	if err != nil {
		return nil, err
	}
	invoice.IsCopy = true
	s.log.Info("invoice reprinted", zap.Uint("invoice_id", invoice.ID), zap.Uint("user_id", actor.ID))
	return invoice, nil
}

// txOptions pins READ COMMITTED on Postgres. The row locks and the guarded CAI
// update serialize issuers; a waiting transaction then reads the committed correlative.
func (s *Issuer) txOptions() *sql.TxOptions {
	if database.IsPostgres(s.db) {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

const (
	txAttempts = 3
	txBackoff  = 50 * time.Millisecond
)

// retryTx re-runs fn while the store reports a serialization failure or deadlock.
// Each attempt is a fresh transaction, so every check runs again.
func retryTx(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !database.IsSerializationFailure(err) || i == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return err
}

func (s *Issuer) reject(err error) error {
	s.metrics.Rejected("issue_invoice", err)
	return err
}

func checkSession(tx *gorm.DB, id uint) error {
	var session models.CashSession
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&session, id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return cashregister.ErrSessionNotOpen.WithDetails(map[string]any{"session_id": id, "reason": "not_found"})
		}
		return fmt.Errorf("lock cash session %d: %w", id, err)
	}
	if !session.IsOpen() {
		return cashregister.ErrSessionNotOpen.WithDetails(map[string]any{"session_id": id, "status": session.Status})
	}
	return nil
}

func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, orders.ErrNotFound.WithDetails(map[string]any{"order_id": id})
		}
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return &order, nil
}

func checkNotInvoiced(tx *gorm.DB, orderID uint) error {
	var existing []models.Invoice
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "document_number").
		Where("order_id = ?", orderID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return fmt.Errorf("check invoice for order %d: %w", orderID, err)
	}
	if len(existing) > 0 {
		return orders.ErrAlreadyInvoiced.WithDetails(map[string]any{
			"order_id":        orderID,
			"invoice_id":      existing[0].ID,
			"document_number": existing[0].DocumentNumber,
		})
	}
	return nil
}

func translateTxError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsDuplicateKey(err) || database.IsSerializationFailure(err) {
		return ErrConflict.Wrap(err)
	}
	return err
}
