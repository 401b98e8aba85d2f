// Package invoicing holds the invoice use cases: it composes the invoice
// lifecycle and reconciliation rules with persistence, per-invoice locking,
// event publishing and instrumentation.
package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopdesk/backend/internal/infrastructure/lock"
	"github.com/shopdesk/backend/internal/infrastructure/logger"
	"github.com/shopdesk/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	serviceName = "InvoiceService"

	// generated numbers can collide when two creates race on the same day
	maxNumberAttempts = 3
)

// Operation names used for spans, metrics and profiling labels
const (
	OpCreate        = "create"
	OpUpdateContent = "update_content"
	OpTransition    = "transition"
	OpRecordPayment = "record_payment"
	OpRemovePayment = "remove_payment"
	OpRecompute     = "recompute"
)

// InvoiceService provides invoice use cases
type InvoiceService struct {
	repo            invoicing.InvoiceRepository
	locker          lock.InvoiceLocker
	publisher       shared.EventPublisher
	metrics         *telemetry.InvoiceMetrics
	logger          *zap.Logger
	clock           func() time.Time
	numberPrefix    string
	defaultCurrency valueobject.Currency
	defaultPageSize int
}

// InvoiceServiceOption is a functional option for configuring InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithEventPublisher sets the publisher that receives invoice events after
// each successful save
func WithEventPublisher(p shared.EventPublisher) InvoiceServiceOption {
	return func(s *InvoiceService) { s.publisher = p }
}

// WithMetrics sets the invoice business metrics
func WithMetrics(m *telemetry.InvoiceMetrics) InvoiceServiceOption {
	return func(s *InvoiceService) { s.metrics = m }
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) InvoiceServiceOption {
	return func(s *InvoiceService) { s.logger = l }
}

// WithClock overrides time.Now
func WithClock(clock func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) { s.clock = clock }
}

// WithNumberPrefix sets the prefix of generated invoice numbers
func WithNumberPrefix(prefix string) InvoiceServiceOption {
	return func(s *InvoiceService) { s.numberPrefix = prefix }
}

// WithDefaultCurrency sets the currency of invoices created without one
func WithDefaultCurrency(c valueobject.Currency) InvoiceServiceOption {
	return func(s *InvoiceService) { s.defaultCurrency = c }
}

// WithDefaultPageSize sets the list page size used when a request has none
func WithDefaultPageSize(n int) InvoiceServiceOption {
	return func(s *InvoiceService) { s.defaultPageSize = n }
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(repo invoicing.InvoiceRepository, locker lock.InvoiceLocker, opts ...InvoiceServiceOption) *InvoiceService {
	s := &InvoiceService{
		repo:            repo,
		locker:          locker,
		logger:          zap.NewNop(),
		clock:           time.Now,
		numberPrefix:    "INV",
		defaultCurrency: valueobject.DefaultCurrency,
		defaultPageSize: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a draft invoice
func (s *InvoiceService) Create(ctx context.Context, tenantID, userID uuid.UUID, req CreateInvoiceRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "Create",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()))
	start := time.Now()
	defer func() { s.finish(ctx, span, OpCreate, start, err) }()

	now := s.clock()
	lineItems, err := toLineItems(req.LineItems)
	if err != nil {
		return nil, err
	}
	total := lineItems.Subtotal()
	if req.Total != nil {
		total = *req.Total
	}
	currency := s.defaultCurrency
	if req.Currency != "" {
		currency = valueobject.Currency(req.Currency)
	}

	for attempt := 1; ; attempt++ {
		number := req.InvoiceNumber
		if number == "" {
			number, err = s.repo.GenerateInvoiceNumber(ctx, tenantID, s.numberPrefix, now)
			if err != nil {
				return nil, err
			}
		} else {
			exists, err := s.repo.ExistsByNumber(ctx, tenantID, number)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, shared.NewDomainError("ALREADY_EXISTS", "Invoice number already exists")
			}
		}

		inv, err := s.buildDraft(tenantID, userID, number, total, currency, lineItems, req, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.Create(ctx, inv)
		if errors.Is(err, shared.ErrAlreadyExists) && req.InvoiceNumber == "" && attempt < maxNumberAttempts {
			logger.Enrich(ctx, s.logger).Warn("Generated invoice number collided, retrying",
				zap.String("invoice_number", number), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		telemetry.SetAttributes(span,
			telemetry.SpanAttrInvoiceID, inv.ID.String(),
			telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber,
		)
		s.publish(ctx, inv)
		logger.Enrich(ctx, s.logger).Info("Invoice created",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("total", inv.Total.StringFixed(2)),
		)
		out := ToInvoiceResponse(inv, now)
		return &out, nil
	}
}

func (s *InvoiceService) buildDraft(
	tenantID, userID uuid.UUID,
	number string,
	total any,
	currency valueobject.Currency,
	lineItems invoicing.LineItems,
	req CreateInvoiceRequest,
	now time.Time,
) (*invoicing.Invoice, error) {
	inv, err := invoicing.NewInvoice(tenantID, number, req.CustomerID, req.CustomerName, total, now)
	if err != nil {
		return nil, err
	}
	if err := inv.SetCurrency(currency); err != nil {
		return nil, err
	}
	if err := inv.SetReferences(req.VehicleID, req.WorkOrderID); err != nil {
		return nil, err
	}
	if len(lineItems) > 0 || req.Notes != "" || req.DueDate != nil {
		notes := req.Notes
		if _, err := inv.UpdateContent(invoicing.ContentUpdate{
			LineItems: lineItems,
			Notes:     &notes,
			DueDate:   req.DueDate,
		}, now); err != nil {
			return nil, err
		}
		// creation is reported as a single event carrying the final content
		inv.ClearDomainEvents()
		inv.AddDomainEvent(invoicing.NewInvoiceCreatedEvent(inv, now))
	}
	if userID != uuid.Nil {
		inv.SetCreatedBy(userID)
	}
	return inv, nil
}

// Get returns an invoice by ID
func (s *InvoiceService) Get(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.clock())
	return &resp, nil
}

// List returns a page of invoices and the total match count
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter, err := s.toDomainFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	invoices, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	now := s.clock()
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return responses, total, nil
}

func (s *InvoiceService) toDomainFilter(filter InvoiceListFilter) (invoicing.InvoiceFilter, error) {
	f := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		CustomerID:  filter.CustomerID,
		WorkOrderID: filter.WorkOrderID,
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = s.defaultPageSize
	}
	if filter.Status != "" {
		status := invoicing.Status(filter.Status)
		if !status.IsValid() {
			return f, shared.NewDomainError("INVALID_STATUS", "Invalid invoice status: "+filter.Status)
		}
		f.Status = &status
	}
	if filter.FinancialStatus != "" {
		fs := invoicing.FinancialStatus(filter.FinancialStatus)
		if !fs.IsValid() {
			return f, shared.NewDomainError("INVALID_STATUS", "Invalid financial status: "+filter.FinancialStatus)
		}
		f.FinancialStatus = &fs
	}
	return f, nil
}

// UpdateContent changes the content of a draft invoice
func (s *InvoiceService) UpdateContent(ctx context.Context, tenantID, id uuid.UUID, req UpdateInvoiceRequest) (resp *InvoiceResponse, err error) {
	ctx, span := s.startSpan(ctx, "UpdateContent", tenantID, id)
	start := time.Now()
	defer func() { s.finish(ctx, span, OpUpdateContent, start, err) }()

	update := invoicing.ContentUpdate{
		Total:        req.Total,
		Notes:        req.Notes,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if req.LineItems != nil {
		items, err := toLineItems(*req.LineItems)
		if err != nil {
			return nil, err
		}
		update.LineItems = items
	}

	inv, err := s.mutate(ctx, OpUpdateContent, tenantID, id, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		return inv.UpdateContent(update, now)
	})
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv, s.clock())
	return &out, nil
}

// Transition moves an invoice to another lifecycle status. Requesting the
// current status succeeds without saving anything.
func (s *InvoiceService) Transition(ctx context.Context, tenantID, id uuid.UUID, req TransitionRequest) (resp *InvoiceResponse, err error) {
	ctx, span := s.startSpan(ctx, "Transition", tenantID, id)
	start := time.Now()
	defer func() { s.finish(ctx, span, OpTransition, start, err) }()

	to := invoicing.Status(req.To)
	if !to.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Invalid invoice status: "+req.To)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrTransitionTo, req.To)

	inv, err := s.mutate(ctx, OpTransition, tenantID, id, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		telemetry.SetAttributes(span, telemetry.SpanAttrTransitionFrom, string(inv.Status))
		return inv.TransitionTo(to, req.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv, s.clock())
	return &out, nil
}

// Send issues a draft invoice
func (s *InvoiceService) Send(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	return s.Transition(ctx, tenantID, id, TransitionRequest{To: string(invoicing.StatusSent)})
}

// MarkPaid closes a sent invoice
func (s *InvoiceService) MarkPaid(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	return s.Transition(ctx, tenantID, id, TransitionRequest{To: string(invoicing.StatusPaid)})
}

// Void cancels a draft or sent invoice
func (s *InvoiceService) Void(ctx context.Context, tenantID, id uuid.UUID, reason string) (*InvoiceResponse, error) {
	return s.Transition(ctx, tenantID, id, TransitionRequest{To: string(invoicing.StatusVoid), Reason: reason})
}

// RecordPayment applies a payment to an invoice in any lifecycle status
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, id uuid.UUID, req RecordPaymentRequest) (resp *RecordPaymentResponse, err error) {
	ctx, span := s.startSpan(ctx, "RecordPayment", tenantID, id)
	start := time.Now()
	defer func() { s.finish(ctx, span, OpRecordPayment, start, err) }()

	var payment invoicing.Payment
	telemetry.WithProfilingLabels(ctx, telemetry.InvoiceOperationLabels(OpRecordPayment, tenantID.String()), func(c context.Context) {
		var inv *invoicing.Invoice
		inv, err = s.mutate(c, OpRecordPayment, tenantID, id, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
			p, err := inv.RecordPayment(req.Amount, invoicing.PaymentMethod(req.Method), req.Reference, now)
			if err != nil {
				return false, err
			}
			payment = p
			return true, nil
		})
		if err != nil {
			return
		}
		telemetry.SetAttributes(span,
			telemetry.SpanAttrPaymentID, payment.ID.String(),
			telemetry.SpanAttrAmountMinor, valueobject.ToMinorUnits(payment.Amount),
		)
		resp = &RecordPaymentResponse{
			Payment: toPaymentResponse(payment),
			Invoice: ToInvoiceResponse(inv, s.clock()),
		}
	})
	return resp, err
}

// RemovePayment takes a payment back out of an invoice
func (s *InvoiceService) RemovePayment(ctx context.Context, tenantID, id, paymentID uuid.UUID) (resp *InvoiceResponse, err error) {
	ctx, span := s.startSpan(ctx, "RemovePayment", tenantID, id)
	start := time.Now()
	defer func() { s.finish(ctx, span, OpRemovePayment, start, err) }()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	inv, err := s.mutate(ctx, OpRemovePayment, tenantID, id, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		_, err := inv.RemovePayment(paymentID, now)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv, s.clock())
	return &out, nil
}

// GetFinancials computes the financial snapshot without modifying the invoice
func (s *InvoiceService) GetFinancials(ctx context.Context, tenantID, id uuid.UUID) (*FinancialsResponse, error) {
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	snap := inv.Snapshot(s.clock())
	return &FinancialsResponse{
		InvoiceID:       inv.ID,
		Total:           inv.Total,
		PaidAmount:      snap.PaidAmount,
		BalanceDue:      snap.BalanceDue,
		FinancialStatus: string(snap.Status),
		Overpayment:     snap.Overpayment,
		PaidAt:          snap.PaidAt,
		Stale:           inv.IsStale(),
	}, nil
}

// Recompute re-derives the financial fields and saves them if they changed
func (s *InvoiceService) Recompute(ctx context.Context, tenantID, id uuid.UUID) (resp *InvoiceResponse, err error) {
	ctx, span := s.startSpan(ctx, "Recompute", tenantID, id)
	start := time.Now()
	defer func() { s.finish(ctx, span, OpRecompute, start, err) }()

	inv, err := s.mutate(ctx, OpRecompute, tenantID, id, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		if !inv.IsStale() {
			return false, nil
		}
		inv.ApplyFinancials(now)
		inv.Touch(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv, s.clock())
	return &out, nil
}

// Summary aggregates the tenant's non-void invoices per financial status.
// Every financial status is present, with zeros when nothing matches.
func (s *InvoiceService) Summary(ctx context.Context, tenantID uuid.UUID) (*InvoiceSummaryResponse, error) {
	rows, err := s.repo.SummarizeByFinancialStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[invoicing.FinancialStatus]invoicing.FinancialStatusTotals, len(rows))
	for _, r := range rows {
		byStatus[r.FinancialStatus] = r
	}

	resp := &InvoiceSummaryResponse{}
	var totalMinor, paidMinor, balanceMinor int64
	for _, fs := range []invoicing.FinancialStatus{
		invoicing.FinancialStatusDue,
		invoicing.FinancialStatusPartial,
		invoicing.FinancialStatusPaid,
	} {
		r := byStatus[fs]
		resp.ByFinancialStatus = append(resp.ByFinancialStatus, FinancialStatusSummary{
			FinancialStatus: string(fs),
			Count:           r.Count,
			Total:           valueobject.ToMajorUnits(r.TotalMinor),
			Paid:            valueobject.ToMajorUnits(r.PaidMinor),
			Balance:         valueobject.ToMajorUnits(r.BalanceMinor),
		})
		resp.InvoiceCount += r.Count
		totalMinor += r.TotalMinor
		paidMinor += r.PaidMinor
		balanceMinor += r.BalanceMinor
	}
	resp.TotalBilled = valueobject.ToMajorUnits(totalMinor)
	resp.TotalCollected = valueobject.ToMajorUnits(paidMinor)
	resp.TotalOutstanding = valueobject.ToMajorUnits(balanceMinor)
	return resp, nil
}

// mutate runs one serialized read-modify-write cycle on an invoice: lock,
// load, apply fn, save with the version check, then publish the events the
// aggregate raised. When fn reports no change nothing is saved.
func (s *InvoiceService) mutate(
	ctx context.Context,
	op string,
	tenantID, id uuid.UUID,
	fn func(inv *invoicing.Invoice, now time.Time) (bool, error),
) (*invoicing.Invoice, error) {
	release, err := s.locker.Acquire(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrResourceBusy) {
			s.metrics.RecordLockContention(ctx, op)
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Enrich(ctx, s.logger).Warn("Failed to release invoice lock",
				zap.String("invoice_id", id.String()), zap.Error(err))
		}
	}()

	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	changed, err := fn(inv, s.clock())
	if err != nil {
		return nil, err
	}
	if !changed {
		return inv, nil
	}

	inv.IncrementVersion()
	if err := s.repo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}
	s.publish(ctx, inv)
	return inv, nil
}

// publish hands the pending events to the publisher and records their
// metrics. The invoice is already saved, so a publish failure is logged only.
func (s *InvoiceService) publish(ctx context.Context, inv *invoicing.Invoice) {
	events := inv.GetDomainEvents()
	inv.ClearDomainEvents()
	if len(events) == 0 {
		return
	}

	s.recordEventMetrics(ctx, events)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to publish invoice events",
			zap.String("invoice_id", inv.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

func (s *InvoiceService) recordEventMetrics(ctx context.Context, events []shared.DomainEvent) {
	for _, event := range events {
		tenant := event.TenantID().String()
		switch e := event.(type) {
		case *invoicing.InvoiceCreatedEvent:
			s.metrics.RecordCreated(ctx, tenant)
		case *invoicing.InvoiceStatusChangedEvent:
			s.metrics.RecordTransition(ctx, tenant, string(e.From), string(e.To))
		case *invoicing.InvoicePaymentRecordedEvent:
			s.metrics.RecordPayment(ctx, tenant, string(e.Method), valueobject.ToMinorUnits(e.Amount))
		case *invoicing.InvoicePaymentRemovedEvent:
			s.metrics.RecordPaymentRemoved(ctx, tenant)
		case *invoicing.InvoiceFullyPaidEvent:
			s.metrics.RecordFullyPaid(ctx, tenant)
		}
	}
}

func (s *InvoiceService) startSpan(ctx context.Context, method string, tenantID, id uuid.UUID) (context.Context, trace.Span) {
	return telemetry.StartServiceSpan(ctx, serviceName, method,
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, id.String()),
	)
}

// finish closes an operation span and records its outcome
func (s *InvoiceService) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	defer span.End()
	s.metrics.ObserveOperation(ctx, op, start, err)
	if err == nil {
		return
	}

	code := ErrorCode(err)
	telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, code)
	telemetry.RecordError(span, err)
	s.metrics.RecordRejected(ctx, op, code)
}

// ErrorCode returns the machine-readable code of a service error
func ErrorCode(err error) string {
	var coded shared.CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return "INTERNAL_ERROR"
}
