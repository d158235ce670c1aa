// Package storetest opens throw-away SQLite stores and seeds POS fixtures for package tests.
package storetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"restopos-backend/internal/database"
	"restopos-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to the test. A single connection
// makes concurrent transactions queue the way row locks would serialize them on Postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func User(t *testing.T, db *gorm.DB, role models.UserRole) models.User {
	t.Helper()
	n := seq.Add(1)
	u := models.User{
		Name:         fmt.Sprintf("%s %d", role, n),
		Email:        fmt.Sprintf("%s%d@restopos.test", role, n),
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

type ProductSpec struct {
	Name            string
	Price           string
	RequiresKitchen bool
	Inactive        bool
}

func Product(t *testing.T, db *gorm.DB, spec ProductSpec) models.Product {
	t.Helper()
	cat := models.Category{Name: fmt.Sprintf("cat-%d", seq.Add(1)), Active: true}
	require.NoError(t, db.Create(&cat).Error)

	p := models.Product{
		CategoryID:      cat.ID,
		Name:            spec.Name,
		Price:           Dec(spec.Price),
		TaxRate:         Dec("15"),
		RequiresKitchen: spec.RequiresKitchen,
		Active:          !spec.Inactive,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// Modifier creates a group with one option per surcharge and links it to the given products.
func Modifier(t *testing.T, db *gorm.DB, name string, surcharges []string, products ...models.Product) (models.Modifier, []models.ModifierOption) {
	t.Helper()
	m := models.Modifier{Name: name, Active: true}
	require.NoError(t, db.Create(&m).Error)

	opts := make([]models.ModifierOption, 0, len(surcharges))
	for i, s := range surcharges {
		o := models.ModifierOption{
			ModifierID: m.ID,
			Name:       fmt.Sprintf("%s %d", name, i+1),
			Surcharge:  Dec(s),
			Active:     true,
		}
		require.NoError(t, db.Create(&o).Error)
		opts = append(opts, o)
	}
	for _, p := range products {
		require.NoError(t, db.Create(&models.ProductModifier{ProductID: p.ID, ModifierID: m.ID}).Error)
	}
	return m, opts
}

type CAISpec struct {
	From, To, Current int64
	ExpiresOn         string
	Inactive          bool
}

func CAI(t *testing.T, db *gorm.DB, spec CAISpec) models.CAI {
	t.Helper()
	c := models.CAI{
		Code:               fmt.Sprintf("CAI-%06d", seq.Add(1)),
		Establishment:      1,
		EmissionPoint:      1,
		DocumentType:       1,
		RangeFrom:          spec.From,
		RangeTo:            spec.To,
		ExpiresOn:          spec.ExpiresOn,
		CurrentCorrelative: spec.Current,
		Active:             !spec.Inactive,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func OpenSession(t *testing.T, db *gorm.DB, operatorID uint, businessDate string) models.CashSession {
	t.Helper()
	s := models.CashSession{
		OperatorID:    operatorID,
		BusinessDate:  businessDate,
		OpeningAmount: Dec("500.00"),
		Status:        models.CashSessionOpen,
		OpenedAt:      time.Now(),
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// Order inserts an order row directly, bypassing the builder, with the given total.
func Order(t *testing.T, db *gorm.DB, kind models.OrderKind, status models.OrderStatus, total string) models.Order {
	t.Helper()
	n := int(seq.Add(1))
	o := models.Order{
		BusinessDate: "2026-10-17",
		Sequence:     n,
		Code:         fmt.Sprintf("ORD-20261017-%04d", n),
		Kind:         kind,
		Status:       status,
		Subtotal:     Dec(total),
		Discount:     decimal.Zero,
		Tax:          decimal.Zero,
		Total:        Dec(total),
		CreatedBy:    1,
	}
	if kind == models.OrderKindDineIn {
		table := "M1"
		o.Table = &table
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}
