package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoiceapp "github.com/shopdesk/backend/internal/application/invoicing"
	"github.com/shopdesk/backend/internal/interfaces/http/dto"
)

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoiceapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoiceapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
	}
}

// ListInvoicesQuery holds the query parameters of the invoice list
type ListInvoicesQuery struct {
	Search          string `form:"search" binding:"max=100"`
	Status          string `form:"status" binding:"omitempty,invoice_status"`
	FinancialStatus string `form:"financial_status" binding:"omitempty,oneof=paid partial due"`
	CustomerID      string `form:"customer_id" binding:"omitempty,uuid"`
	WorkOrderID     string `form:"work_order_id" binding:"omitempty,uuid"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string `form:"order_by" binding:"omitempty,oneof=invoice_number created_at updated_at due_date total balance_due status"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q ListInvoicesQuery) toFilter() invoiceapp.InvoiceListFilter {
	filter := invoiceapp.InvoiceListFilter{
		Search:          q.Search,
		Status:          q.Status,
		FinancialStatus: q.FinancialStatus,
		Page:            q.Page,
		PageSize:        q.PageSize,
		OrderBy:         q.OrderBy,
		OrderDir:        q.OrderDir,
	}
	// binding already checked the format
	if id, err := uuid.Parse(q.CustomerID); err == nil {
		filter.CustomerID = &id
	}
	if id, err := uuid.Parse(q.WorkOrderID); err == nil {
		filter.WorkOrderID = &id
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = dto.DefaultPageSize
	}
	return filter
}

// tenantAndInvoice resolves the tenant and the :id path parameter, writing
// the error response itself when either is missing or malformed
func (h *InvoiceHandler) tenantAndInvoice(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

// Create godoc
//
//	@Summary		Create a draft invoice
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		invoiceapp.CreateInvoiceRequest	true	"Invoice creation request"
//	@Success		201		{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req invoiceapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), tenantID, getUserID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// List godoc
//
//	@Summary		List invoices
//	@Tags			invoices
//	@Produce		json
//	@Param			status				query		string	false	"Lifecycle status"	Enums(draft, sent, paid, void)
//	@Param			financial_status	query		string	false	"Financial status"	Enums(paid, partial, due)
//	@Param			customer_id			query		string	false	"Customer ID"
//	@Param			page				query		int		false	"Page number"	default(1)
//	@Param			page_size			query		int		false	"Page size"		default(20)
//	@Success		200					{object}	APIResponse[[]invoiceapp.InvoiceResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var query ListInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	filter := query.toFilter()

	invoices, total, err := h.invoiceService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Summary godoc
//
//	@Summary		Invoice totals per financial status
//	@Tags			invoices
//	@Produce		json
//	@Success		200	{object}	APIResponse[invoiceapp.InvoiceSummaryResponse]
//	@Security		BearerAuth
//	@Router			/invoices/summary [get]
func (h *InvoiceHandler) Summary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	summary, err := h.invoiceService.Summary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetByID godoc
//
//	@Summary		Get an invoice
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"	format(uuid)
//	@Success		200	{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Update godoc
//
//	@Summary		Update draft content
//	@Description	Line items, total, notes and due date can only change while the invoice is a draft.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Invoice ID"	format(uuid)
//	@Param			request	body		invoiceapp.UpdateInvoiceRequest	true	"Content changes"
//	@Success		200		{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse	"INVOICE_LOCKED once sent"
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	var req invoiceapp.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	invoice, err := h.invoiceService.UpdateContent(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Transition godoc
//
//	@Summary		Change lifecycle status
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Invoice ID"	format(uuid)
//	@Param			request	body		invoiceapp.TransitionRequest	true	"Target status"
//	@Success		200		{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse	"INVALID_INVOICE_TRANSITION"
//	@Security		BearerAuth
//	@Router			/invoices/{id}/transition [post]
func (h *InvoiceHandler) Transition(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	var req invoiceapp.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	invoice, err := h.invoiceService.Transition(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Send godoc
//
//	@Summary	Send a draft invoice to the customer
//	@Tags		invoices
//	@Param		id	path		string	true	"Invoice ID"	format(uuid)
//	@Success	200	{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Router		/invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Send(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// MarkPaid godoc
//
//	@Summary	Mark an invoice paid
//	@Tags		invoices
//	@Param		id	path		string	true	"Invoice ID"	format(uuid)
//	@Success	200	{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Router		/invoices/{id}/mark-paid [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.MarkPaid(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Void godoc
//
//	@Summary	Void an invoice
//	@Tags		invoices
//	@Accept		json
//	@Param		id		path		string					true	"Invoice ID"	format(uuid)
//	@Param		request	body		invoiceapp.VoidRequest	false	"Void reason"
//	@Success	200		{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Router		/invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	var req invoiceapp.VoidRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	invoice, err := h.invoiceService.Void(c.Request.Context(), tenantID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// RecordPayment godoc
//
//	@Summary		Record a payment
//	@Description	Amount accepts a JSON number or a numeric string. Payments are accepted in any lifecycle status.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Invoice ID"	format(uuid)
//	@Param			request	body		invoiceapp.RecordPaymentRequest	true	"Payment"
//	@Success		201		{object}	APIResponse[invoiceapp.RecordPaymentResponse]
//	@Failure		400		{object}	ErrorResponse	"INVALID_AMOUNT"
//	@Security		BearerAuth
//	@Router			/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	var req invoiceapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.invoiceService.RecordPayment(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// RemovePayment godoc
//
//	@Summary	Remove a payment
//	@Tags		invoices
//	@Param		id			path		string	true	"Invoice ID"	format(uuid)
//	@Param		paymentId	path		string	true	"Payment ID"	format(uuid)
//	@Success	200			{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Failure	404			{object}	ErrorResponse
//	@Router		/invoices/{id}/payments/{paymentId} [delete]
func (h *InvoiceHandler) RemovePayment(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	invoice, err := h.invoiceService.RemovePayment(c.Request.Context(), tenantID, id, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// GetFinancials godoc
//
//	@Summary	Derived financial snapshot
//	@Tags		invoices
//	@Param		id	path		string	true	"Invoice ID"	format(uuid)
//	@Success	200	{object}	APIResponse[invoiceapp.FinancialsResponse]
//	@Router		/invoices/{id}/financials [get]
func (h *InvoiceHandler) GetFinancials(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	financials, err := h.invoiceService.GetFinancials(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, financials)
}

// Recompute godoc
//
//	@Summary	Re-derive and persist financial fields
//	@Tags		invoices
//	@Param		id	path		string	true	"Invoice ID"	format(uuid)
//	@Success	200	{object}	APIResponse[invoiceapp.InvoiceResponse]
//	@Router		/invoices/{id}/recompute [post]
func (h *InvoiceHandler) Recompute(c *gin.Context) {
	tenantID, id, ok := h.tenantAndInvoice(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Recompute(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}
