package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"restopos-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("dine_in")
		m.InvoiceIssued(10, 5, time.Millisecond)
		m.Rejected("issue", errors.New("boom"))
		m.CashSession("open")
		m.NotifyFailed("redis")
	})
}

func TestRejectedUsesErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.Rejected("issue", apperr.Conflict("payment_mismatch", "x"))
	m.Rejected("issue", apperr.Conflict("payment_mismatch", "x"))
	m.Rejected("issue", errors.New("db down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("issue", "payment_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("issue", "internal_error")))
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")
	m.OrderCreated("takeout")
	m.InvoiceIssued(215, 99, 3*time.Millisecond)

	app := fiber.New()
	app.Get("/metrics", Handler(reg))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `restopos_orders_created_total{env="test",kind="takeout"} 1`)
	assert.Contains(t, string(body), `restopos_invoices_issued_total{env="test"} 1`)
	assert.Contains(t, string(body), `restopos_cai_remaining_correlatives{env="test"} 99`)
}
