package router

import (
	"github.com/gin-gonic/gin"
	"github.com/shopdesk/backend/internal/interfaces/http/handler"
)

// InvoiceRoutes maps the invoice API onto its handler. writeGuards run in
// front of the endpoints that create records (invoices and payments).
func InvoiceRoutes(h *handler.InvoiceHandler, writeGuards ...gin.HandlerFunc) *DomainGroup {
	guarded := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeGuards...), fn)
	}

	return NewDomainGroup("invoices", "/invoices").
		POST("", guarded(h.Create)...).
		GET("", h.List).
		GET("/summary", h.Summary).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		POST("/:id/transition", h.Transition).
		POST("/:id/send", h.Send).
		POST("/:id/mark-paid", h.MarkPaid).
		POST("/:id/void", h.Void).
		POST("/:id/payments", guarded(h.RecordPayment)...).
		DELETE("/:id/payments/:paymentId", h.RemovePayment).
		GET("/:id/financials", h.GetFinancials).
		POST("/:id/recompute", h.Recompute)
}

// SystemRoutes exposes build information under the API group. The health
// check lives at the engine root, outside authentication.
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo)
}
