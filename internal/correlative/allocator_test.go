package correlative

import (
	"context"
	"sync"
	"testing"

	"restopos-backend/internal/models"
	"restopos-backend/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOrderCode(t *testing.T) {
	assert.Equal(t, "ORD-20261017-0001", OrderCode("2026-10-17", 1))
	assert.Equal(t, "ORD-20261231-0420", OrderCode("2026-12-31", 420))
	assert.Equal(t, "ORD-20260101-12345", OrderCode("2026-01-01", 12345))
}

func TestNextStartsAtOnePerDate(t *testing.T) {
	db := storetest.Open(t)
	a := NewAllocator()
	ctx := context.Background()

	next := func(date string) int {
		var n int
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = a.Next(ctx, tx, date)
			return err
		}))
		return n
	}

	assert.Equal(t, 1, next("2026-10-17"))
	assert.Equal(t, 2, next("2026-10-17"))
	assert.Equal(t, 1, next("2026-10-18"))
	assert.Equal(t, 3, next("2026-10-17"))
}

func TestNextDoesNotOverwriteExistingRow(t *testing.T) {
	db := storetest.Open(t)
	require.NoError(t, db.Create(&models.OrderCorrelative{BusinessDate: "2026-10-17", LastNumber: 41}).Error)

	var n int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = NewAllocator().Next(context.Background(), tx, "2026-10-17")
		return err
	}))
	assert.Equal(t, 42, n)
}

func TestNextRollbackReturnsNumber(t *testing.T) {
	db := storetest.Open(t)
	a := NewAllocator()
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := a.Next(ctx, tx, "2026-10-17")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var n int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = a.Next(ctx, tx, "2026-10-17")
		return err
	}))
	assert.Equal(t, 1, n)
}

func TestNextConcurrentCallersGetDistinctNumbers(t *testing.T) {
	db := storetest.Open(t)
	a := NewAllocator()
	ctx := context.Background()

	const workers = 20
	results := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.Transaction(func(tx *gorm.DB) error {
				n, err := a.Next(ctx, tx, "2026-10-17")
				if err == nil {
					results <- n
				}
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for n := range results {
		assert.False(t, seen[n], "duplicate sequence %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[i], "missing sequence %d", i)
	}
}
