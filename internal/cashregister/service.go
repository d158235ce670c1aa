// Package cashregister opens and closes per-operator cash drawer sessions.
package cashregister

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/audit"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/database"
	"restopos-backend/internal/metrics"
	"restopos-backend/internal/models"
	"restopos-backend/internal/money"
	"restopos-backend/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSessionAlreadyOpen = apperr.Conflict("cash_session_already_open", "El operador ya tiene una caja abierta")
	ErrSessionNotOpen     = apperr.Conflict("cash_session_not_open", "La sesión de caja no está abierta")
	ErrSessionNotFound    = apperr.NotFound("cash_session_not_found", "Sesión de caja no encontrada")
	ErrNotOwner           = apperr.Forbidden("cash_session_not_owner", "Solo un supervisor puede cerrar la caja de otro operador")
	ErrInvalidAmount      = apperr.Validation("cash_amount_invalid", "El monto no puede ser negativo")
	ErrInvalidBreakdown   = apperr.Validation("cash_breakdown_invalid", "Desglose de cierre inválido")
	ErrUnknownOperator    = apperr.NotFound("cash_operator_not_found", "Operador no encontrado o inactivo")
)

type Service struct {
	db       *gorm.DB
	clock    clock.Clock
	loc      *time.Location
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewService(db *gorm.DB, clk clock.Clock, loc *time.Location, notifier notify.Notifier, m *metrics.Metrics, log *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		clock:    clk,
		loc:      loc,
		notifier: notifier,
		metrics:  m,
		log:      log.Named("cashregister.service"),
	}
}

// Denomination is one line of a bill/coin count.
type Denomination struct {
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

// Breakdown is stored as-is for later reconciliation.
type Breakdown struct {
	Denominations []Denomination                           `json:"denominations,omitempty"`
	ByMethod      map[models.PaymentMethod]decimal.Decimal `json:"by_method,omitempty"`
	Notes         string                                   `json:"notes,omitempty"`
}

func (b *Breakdown) validate() error {
	for i, d := range b.Denominations {
		if !d.Value.IsPositive() || d.Count < 0 {
			return ErrInvalidBreakdown.WithDetails(map[string]any{"denomination": i})
		}
	}
	for method, amount := range b.ByMethod {
		if !method.Valid() || amount.IsNegative() {
			return ErrInvalidBreakdown.WithDetails(map[string]any{"method": method})
		}
	}
	b.Notes = strings.TrimSpace(b.Notes)
	return nil
}

// Open starts a session for actor. The operator's user row is locked so two
// concurrent opens for the same operator cannot both pass the existence check.
func (s *Service) Open(ctx context.Context, actor models.Actor, openingAmount decimal.Decimal) (*models.CashSession, error) {
	if openingAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var session models.CashSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var operator models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&operator, actor.ID).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrUnknownOperator
			}
			return fmt.Errorf("lock operator %d: %w", actor.ID, err)
		}
		if !operator.Active {
			return ErrUnknownOperator
		}

		existing, err := findOpen(tx, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrSessionAlreadyOpen.WithDetails(map[string]any{"session_id": existing.ID})
		}

		session = models.CashSession{
			OperatorID:    actor.ID,
			BusinessDate:  clock.BusinessDate(s.clock, s.loc),
			OpeningAmount: money.Round(openingAmount),
			Status:        models.CashSessionOpen,
			OpenedAt:      s.clock.Now(),
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("insert cash session: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityCashSession,
			EntityID:    session.ID,
			Action:      models.AuditActionOpen,
			Description: "Apertura de caja",
			Data:        map[string]any{"opening_amount": session.OpeningAmount.StringFixed(2)},
		})
	})
	if err != nil {
		s.metrics.Rejected("open_cash_session", err)
		return nil, err
	}

	s.log.Info("cash session opened",
		zap.Uint("session_id", session.ID),
		zap.Uint("operator_id", actor.ID),
		zap.String("opening_amount", session.OpeningAmount.StringFixed(2)),
	)
	s.metrics.CashSession("open")
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.CashSessionOpened, map[string]any{
		"session_id":  session.ID,
		"operator_id": actor.ID,
	}, notify.GroupCashier))
	return &session, nil
}

type CloseInput struct {
	SessionID     *uint
	Actor         models.Actor
	ClosingAmount decimal.Decimal
	Breakdown     *Breakdown
}

// Close ends a session. Without SessionID the actor's own open session is closed;
// closing another operator's session needs an elevated role.
func (s *Service) Close(ctx context.Context, in CloseInput) (*models.CashSession, error) {
	if in.ClosingAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	var breakdown datatypes.JSON
	if in.Breakdown != nil {
		if err := in.Breakdown.validate(); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(in.Breakdown)
		if err != nil {
			return nil, fmt.Errorf("encode breakdown: %w", err)
		}
		breakdown = datatypes.JSON(raw)
	}

	var session *models.CashSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if in.SessionID == nil {
			session, err = findOpen(tx, in.Actor.ID)
			if err != nil {
				return err
			}
			if session == nil {
				return ErrSessionNotOpen.WithDetails(map[string]any{"operator_id": in.Actor.ID})
			}
		} else {
			session, err = lockSession(tx, *in.SessionID)
			if err != nil {
				return err
			}
			if session.OperatorID != in.Actor.ID && !in.Actor.Role.Elevated() {
				return ErrNotOwner
			}
			if !session.IsOpen() {
				return ErrSessionNotOpen.WithDetails(map[string]any{"session_id": session.ID, "status": session.Status})
			}
		}

		now := s.clock.Now()
		amount := money.Round(in.ClosingAmount)
		updates := map[string]any{
			"status":            models.CashSessionClosed,
			"closed_at":         now,
			"closing_amount":    amount,
			"closing_breakdown": breakdown,
			"closed_by":         in.Actor.ID,
		}
		if err := tx.Model(session).Updates(updates).Error; err != nil {
			return fmt.Errorf("close cash session %d: %w", session.ID, err)
		}
		session.Status = models.CashSessionClosed
		session.ClosedAt = &now
		session.ClosingAmount = &amount
		session.ClosingBreakdown = breakdown
		session.ClosedBy = &in.Actor.ID

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       in.Actor,
			EntityType:  audit.EntityCashSession,
			EntityID:    session.ID,
			Action:      models.AuditActionClose,
			Description: "Cierre de caja",
			Data: map[string]any{
				"operator_id":    session.OperatorID,
				"closing_amount": amount.StringFixed(2),
			},
		})
	})
	if err != nil {
		s.metrics.Rejected("close_cash_session", err)
		return nil, err
	}

	s.log.Info("cash session closed",
		zap.Uint("session_id", session.ID),
		zap.Uint("operator_id", session.OperatorID),
		zap.Uint("closed_by", in.Actor.ID),
	)
	s.metrics.CashSession("close")
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.CashSessionClosed, map[string]any{
		"session_id":     session.ID,
		"operator_id":    session.OperatorID,
		"closing_amount": session.ClosingAmount.StringFixed(2),
	}, notify.GroupCashier))
	return session, nil
}

// Active returns the operator's open session, or nil when there is none.
func (s *Service) Active(ctx context.Context, operatorID uint) (*models.CashSession, error) {
	return findOpen(s.db.WithContext(ctx), operatorID)
}

// findOpen treats rows without a status as open.
func findOpen(tx *gorm.DB, operatorID uint) (*models.CashSession, error) {
	var sessions []models.CashSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("operator_id = ?", operatorID).
		Where("status = ? OR status = '' OR status IS NULL", models.CashSessionOpen).
		Order("id DESC").
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("find open cash session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func lockSession(tx *gorm.DB, id uint) (*models.CashSession, error) {
	var session models.CashSession
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrSessionNotFound.WithDetails(map[string]any{"session_id": id})
		}
		return nil, fmt.Errorf("lock cash session %d: %w", id, err)
	}
	return &session, nil
}
