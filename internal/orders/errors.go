package orders

import "restopos-backend/internal/apperr"

var (
	ErrInvalidKind       = apperr.Validation("order_kind_invalid", "Tipo de orden inválido; use dine_in, takeout o delivery")
	ErrTableRequired     = apperr.Validation("order_table_required", "La mesa es obligatoria para órdenes en salón")
	ErrTableNotAllowed   = apperr.Validation("order_table_not_allowed", "Solo las órdenes en salón llevan mesa")
	ErrNoItems           = apperr.Validation("order_items_empty", "La orden debe tener al menos un producto")
	ErrInvalidQuantity   = apperr.Validation("order_item_quantity_invalid", "La cantidad debe ser un entero positivo")
	ErrInvalidProduct    = apperr.Validation("order_item_product_invalid", "Producto inválido")
	ErrRepeatedOption    = apperr.Validation("order_item_option_repeated", "Una opción no puede repetirse en el mismo producto")
	ErrNegativeAmount    = apperr.Validation("order_amount_negative", "Descuento e impuesto no pueden ser negativos")
	ErrNegativeTotal     = apperr.Validation("order_total_negative", "El total de la orden no puede ser negativo")
	ErrInvalidStatus     = apperr.Validation("order_status_invalid", "Estado de orden inválido")
	ErrNotFound          = apperr.NotFound("order_not_found", "Orden no encontrada")
	ErrVoided            = apperr.Conflict("order_voided", "La orden está anulada")
	ErrAlreadyInvoiced   = apperr.Conflict("order_already_invoiced", "La orden ya fue facturada")
	ErrIllegalTransition = apperr.Conflict("order_transition_not_allowed", "Cambio de estado no permitido")
	ErrNotInvoiced       = apperr.Conflict("order_not_invoiced", "La orden debe estar facturada antes de entregarse")
	ErrNotDelivery       = apperr.Conflict("order_not_delivery", "Solo las órdenes a domicilio se confirman como entregadas")
	ErrConcurrentUpdate  = apperr.Retryable("order_concurrent_update", "Otra operación modificó la orden, intente de nuevo")
)
