package invoicing

import "restopos-backend/internal/apperr"

var (
	ErrCopyNotIssuable      = apperr.Validation("invoice_copy_not_issuable", "Las copias se obtienen reimprimiendo la factura original")
	ErrNoPayments           = apperr.Validation("payments_empty", "Debe registrar al menos un pago")
	ErrInvalidMethod        = apperr.Validation("payment_method_invalid", "Método de pago inválido; use cash, card, transfer o mixed")
	ErrInvalidAmount        = apperr.Validation("payment_amount_invalid", "El monto de cada pago debe ser mayor que cero")
	ErrInsufficientTendered = apperr.Validation("payment_tendered_insufficient", "El efectivo recibido es menor que el monto del pago")
	ErrInvalidTaxID         = apperr.Validation("customer_tax_id_invalid", "El RTN debe tener 14 dígitos")
	ErrInvalidOrder         = apperr.Validation("invoice_order_required", "Debe indicar la orden y la sesión de caja")
	ErrPaymentMismatch      = apperr.Conflict("payment_mismatch", "La suma de los pagos no coincide con el total de la orden")
	ErrConflict             = apperr.Retryable("invoice_conflict", "Otra factura se emitió al mismo tiempo, intente de nuevo")
	ErrNotFound             = apperr.NotFound("invoice_not_found", "Factura no encontrada")
)
