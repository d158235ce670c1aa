package cai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restopos-backend/internal/audit"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/database"
	"restopos-backend/internal/models"
	"restopos-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	clock    clock.Clock
	loc      *time.Location
	notifier notify.Notifier
	log      *zap.Logger
}

func NewService(db *gorm.DB, clk clock.Clock, loc *time.Location, notifier notify.Notifier, log *zap.Logger) *Service {
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
	return &Service{db: db, clock: clk, loc: loc, notifier: notifier, log: log.Named("cai.service")}
}

type CreateInput struct {
	Code          string `json:"code"`
	Establishment int    `json:"establishment"`
	EmissionPoint int    `json:"emission_point"`
	DocumentType  int    `json:"document_type"`
	RangeFrom     int64  `json:"range_from"`
	RangeTo       int64  `json:"range_to"`
	ExpiresOn     string `json:"expires_on"`
	Activate      bool   `json:"activate"`
}

func (in *CreateInput) Validate() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.ExpiresOn = strings.TrimSpace(in.ExpiresOn)

	invalid := func(field, reason string) error {
		return ErrInvalid.WithDetails(map[string]any{"field": field, "reason": reason})
	}
	switch {
	case in.Code == "":
		return invalid("code", "required")
	case in.Establishment < 0 || in.Establishment > 999:
		return invalid("establishment", "0-999")
	case in.EmissionPoint < 0 || in.EmissionPoint > 999:
		return invalid("emission_point", "0-999")
	case in.DocumentType < 0 || in.DocumentType > 99:
		return invalid("document_type", "0-99")
	case in.RangeFrom < 1:
		return invalid("range_from", "must be positive")
	case in.RangeTo < in.RangeFrom:
		return invalid("range_to", "must not be below range_from")
	case in.RangeTo > MaxCorrelative:
		return invalid("range_to", "at most 8 digits")
	}
	if _, err := time.Parse(clock.DateLayout, in.ExpiresOn); err != nil {
		return invalid("expires_on", "YYYY-MM-DD")
	}
	return nil
}

// Create stores a new authorization. With Activate set, every other row is deactivated first.
func (s *Service) Create(ctx context.Context, in CreateInput, actor models.Actor) (*models.CAI, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Activate && in.ExpiresOn < clock.BusinessDate(s.clock, s.loc) {
		return nil, ErrExpired.WithDetails(map[string]any{"expires_on": in.ExpiresOn})
	}

	c := models.CAI{
		Code:               in.Code,
		Establishment:      in.Establishment,
		EmissionPoint:      in.EmissionPoint,
		DocumentType:       in.DocumentType,
		RangeFrom:          in.RangeFrom,
		RangeTo:            in.RangeTo,
		ExpiresOn:          in.ExpiresOn,
		CurrentCorrelative: in.RangeFrom - 1,
		Active:             in.Activate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Activate {
			if err := lockAdmin(ctx, tx); err != nil {
				return err
			}
			if err := deactivateAll(ctx, tx); err != nil {
				return err
			}
		}
		if err := tx.Create(&c).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ErrCodeTaken.WithDetails(map[string]any{"code": in.Code})
			}
			return fmt.Errorf("insert cai: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityCAI,
			EntityID:    c.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("CAI %s registrado", c.Code),
			Data:        c,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cai created", zap.Uint("cai_id", c.ID), zap.Bool("active", c.Active))
	if c.Active {
		s.emitActivated(ctx, &c)
	}
	return &c, nil
}

// Activate makes id the only active authorization.
func (s *Service) Activate(ctx context.Context, id uint, actor models.Actor) (*models.CAI, error) {
	today := clock.BusinessDate(s.clock, s.loc)

	var c models.CAI
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockAdmin(ctx, tx); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrNotFound.WithDetails(map[string]any{"cai_id": id})
			}
			return fmt.Errorf("lock cai %d: %w", id, err)
		}
		if _, err := NextCorrelative(&c, today); err != nil {
			return err
		}

		if err := deactivateAll(ctx, tx); err != nil {
			return err
		}
		if err := tx.Model(&c).Update("active", true).Error; err != nil {
			return fmt.Errorf("activate cai %d: %w", id, err)
		}
		c.Active = true

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityCAI,
			EntityID:    c.ID,
			Action:      models.AuditActionActivate,
			Description: fmt.Sprintf("CAI %s activado", c.Code),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cai activated", zap.Uint("cai_id", c.ID))
	s.emitActivated(ctx, &c)
	return &c, nil
}

func (s *Service) List(ctx context.Context) ([]models.CAI, error) {
	var list []models.CAI
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list cai: %w", err)
	}
	return list, nil
}

// adminLockKey identifies the advisory lock held by every activating transaction.
const adminLockKey int64 = 0x434149

// lockAdmin serializes activations until tx ends. Row locks cannot cover the case where
// no row is active yet; SQLite already runs one writer at a time.
func lockAdmin(ctx context.Context, tx *gorm.DB) error {
	if !database.IsPostgres(tx) {
		return nil
	}
	if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", adminLockKey).Error; err != nil {
		return fmt.Errorf("lock cai administration: %w", err)
	}
	return nil
}

// deactivateAll locks the active rows before clearing them so an issuance holding
// the active row finishes first.
func deactivateAll(ctx context.Context, tx *gorm.DB) error {
	var ids []uint
	err := tx.WithContext(ctx).Model(&models.CAI{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("active = ?", true).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("lock active cai: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&models.CAI{}).Where("id IN ?", ids).Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate cai: %w", err)
	}
	return nil
}

func (s *Service) emitActivated(ctx context.Context, c *models.CAI) {
	notify.Emit(ctx, s.notifier, s.log, notify.NewEvent(notify.CAIActivated, map[string]any{
		"cai_id":     c.ID,
		"code":       c.Code,
		"expires_on": c.ExpiresOn,
		"remaining":  c.Remaining(),
	}, notify.GroupAll))
}
