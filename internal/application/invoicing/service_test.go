package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/infrastructure/lock"
	"github.com/shopdesk/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var serviceTestNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type serviceFixture struct {
	svc       *InvoiceService
	repo      *MockInvoiceRepository
	publisher *capturePublisher
	tenantID  uuid.UUID
}

func newServiceFixture(t *testing.T, opts ...InvoiceServiceOption) *serviceFixture {
	t.Helper()
	repo := new(MockInvoiceRepository)
	publisher := &capturePublisher{}
	locker := lock.NewMemoryInvoiceLocker(lock.Options{TTL: time.Minute})

	base := []InvoiceServiceOption{
		WithEventPublisher(publisher),
		WithClock(func() time.Time { return serviceTestNow }),
	}
	svc := NewInvoiceService(repo, locker, append(base, opts...)...)
	return &serviceFixture{svc: svc, repo: repo, publisher: publisher, tenantID: uuid.New()}
}

// storedInvoice returns a persisted-looking invoice with no pending events
func (f *serviceFixture) storedInvoice(t *testing.T, total string, status invoicing.Status) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(f.tenantID, "INV-20260314-0001", uuid.New(), "Jane Doe", total, serviceTestNow.Add(-time.Hour))
	require.NoError(t, err)
	switch status {
	case invoicing.StatusSent:
		_, err = inv.Send(serviceTestNow.Add(-time.Hour))
	case invoicing.StatusVoid:
		_, err = inv.Void("test", serviceTestNow.Add(-time.Hour))
	case invoicing.StatusPaid:
		_, err = inv.Send(serviceTestNow.Add(-time.Hour))
		require.NoError(t, err)
		_, err = inv.MarkPaid(serviceTestNow.Add(-time.Hour))
	}
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func (f *serviceFixture) expectLoad(inv *invoicing.Invoice) {
	f.repo.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
}

func (f *serviceFixture) expectSave(inv *invoicing.Invoice, expectedVersion int) {
	f.repo.On("SaveWithLock", mock.Anything, mock.MatchedBy(func(saved *invoicing.Invoice) bool {
		return saved.ID == inv.ID && saved.Version == expectedVersion
	})).Return(nil).Once()
}

func TestInvoiceService_Create_GeneratesNumber(t *testing.T) {
	f := newServiceFixture(t)
	customerID := uuid.New()

	f.repo.On("GenerateInvoiceNumber", mock.Anything, f.tenantID, "INV", serviceTestNow).Return("INV-20260314-0001", nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)

	qty := decimal.NewFromInt(2)
	resp, err := f.svc.Create(context.Background(), f.tenantID, uuid.New(), CreateInvoiceRequest{
		CustomerID:   customerID,
		CustomerName: "Jane Doe",
		LineItems: []LineItemInput{
			{Description: "Brake pads", Quantity: qty, UnitPrice: decimal.RequireFromString("45.50")},
			{Description: "Labor", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("80")},
		},
		Notes: "Front axle",
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-20260314-0001", resp.InvoiceNumber)
	assert.Equal(t, "draft", resp.Status)
	assert.True(t, resp.Editable)
	assert.Equal(t, "171.00", resp.Total.StringFixed(2), "total falls back to the line item subtotal")
	assert.Equal(t, "171.00", resp.BalanceDue.StringFixed(2))
	assert.Equal(t, "due", resp.FinancialStatus)
	assert.Len(t, resp.LineItems, 2)
	assert.Equal(t, "USD", resp.Currency)

	assert.Equal(t, []string{invoicing.EventTypeInvoiceCreated}, f.publisher.types())
	f.repo.AssertExpectations(t)
}

func TestInvoiceService_Create_ExplicitNumberTaken(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("ExistsByNumber", mock.Anything, f.tenantID, "WO-1").Return(true, nil)

	_, err := f.svc.Create(context.Background(), f.tenantID, uuid.Nil, CreateInvoiceRequest{
		InvoiceNumber: "WO-1",
		CustomerID:    uuid.New(),
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceService_Create_RetriesGeneratedNumberCollision(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("GenerateInvoiceNumber", mock.Anything, f.tenantID, "INV", serviceTestNow).Return("INV-20260314-0001", nil).Once()
	f.repo.On("GenerateInvoiceNumber", mock.Anything, f.tenantID, "INV", serviceTestNow).Return("INV-20260314-0002", nil).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(inv *invoicing.Invoice) bool {
		return inv.InvoiceNumber == "INV-20260314-0001"
	})).Return(shared.ErrAlreadyExists).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(inv *invoicing.Invoice) bool {
		return inv.InvoiceNumber == "INV-20260314-0002"
	})).Return(nil).Once()

	total := decimal.NewFromInt(10)
	resp, err := f.svc.Create(context.Background(), f.tenantID, uuid.Nil, CreateInvoiceRequest{
		CustomerID: uuid.New(),
		Total:      &total,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-20260314-0002", resp.InvoiceNumber)
	assert.Equal(t, []string{invoicing.EventTypeInvoiceCreated}, f.publisher.types())
	f.repo.AssertExpectations(t)
}

func TestInvoiceService_Create_ValidationErrors(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("GenerateInvoiceNumber", mock.Anything, f.tenantID, "INV", serviceTestNow).Return("INV-20260314-0001", nil)

	negative := decimal.NewFromInt(-5)
	_, err := f.svc.Create(context.Background(), f.tenantID, uuid.Nil, CreateInvoiceRequest{
		CustomerID: uuid.New(),
		Total:      &negative,
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)

	_, err = f.svc.Create(context.Background(), f.tenantID, uuid.Nil, CreateInvoiceRequest{
		CustomerID: uuid.New(),
		LineItems:  []LineItemInput{{Description: ""}},
	})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_LINE_ITEM", domainErr.Code)

	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceService_Transition(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusDraft)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	resp, err := f.svc.Send(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "sent", resp.Status)
	assert.False(t, resp.Editable)
	require.NotNil(t, resp.SentAt)
	assert.Equal(t, serviceTestNow, *resp.SentAt)
	assert.Equal(t, []string{invoicing.EventTypeInvoiceStatusChanged}, f.publisher.types())
	f.repo.AssertExpectations(t)
}

func TestInvoiceService_Transition_SameStatusIsNoop(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)
	version := inv.Version

	resp, err := f.svc.Send(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "sent", resp.Status)
	assert.Equal(t, version, resp.Version)
	assert.Empty(t, f.publisher.types())
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_Transition_Invalid(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusVoid)
	f.expectLoad(inv)

	_, err := f.svc.MarkPaid(context.Background(), f.tenantID, inv.ID)

	var transitionErr *invoicing.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, invoicing.StatusVoid, transitionErr.From)
	assert.Equal(t, invoicing.StatusPaid, transitionErr.To)
	assert.Equal(t, "INVALID_INVOICE_TRANSITION", ErrorCode(err))
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_Transition_UnknownStatus(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Transition(context.Background(), f.tenantID, uuid.New(), TransitionRequest{To: "archived"})

	assert.Equal(t, "INVALID_STATUS", ErrorCode(err))
	f.repo.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceService_Void(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	resp, err := f.svc.Void(context.Background(), f.tenantID, inv.ID, "customer cancelled")
	require.NoError(t, err)
	assert.Equal(t, "void", resp.Status)
	assert.Equal(t, "customer cancelled", resp.VoidReason)
	require.NotNil(t, resp.VoidedAt)
}

func TestInvoiceService_UpdateContent_LockedAfterSend(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)

	notes := "changed"
	_, err := f.svc.UpdateContent(context.Background(), f.tenantID, inv.ID, UpdateInvoiceRequest{Notes: &notes})

	var lockedErr *invoicing.InvoiceLockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, invoicing.StatusSent, lockedErr.Status)
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_UpdateContent(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusDraft)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	total := decimal.RequireFromString("120.5")
	items := []LineItemInput{{Description: "Oil change", Quantity: decimal.NewFromInt(1), UnitPrice: total}}
	due := serviceTestNow.Add(30 * 24 * time.Hour)
	resp, err := f.svc.UpdateContent(context.Background(), f.tenantID, inv.ID, UpdateInvoiceRequest{
		LineItems: &items,
		Total:     &total,
		DueDate:   &due,
	})
	require.NoError(t, err)

	assert.Equal(t, "120.50", resp.Total.StringFixed(2))
	assert.Equal(t, "120.50", resp.BalanceDue.StringFixed(2))
	assert.Len(t, resp.LineItems, 1)
	require.NotNil(t, resp.DueDate)
	assert.Equal(t, due, *resp.DueDate)
	assert.Equal(t, []string{invoicing.EventTypeInvoiceContentUpdated}, f.publisher.types())
}

func TestInvoiceService_UpdateContent_UnchangedSkipsSave(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusDraft)
	version := inv.Version
	f.expectLoad(inv)

	total := decimal.RequireFromString("100")
	notes := ""
	resp, err := f.svc.UpdateContent(context.Background(), f.tenantID, inv.ID, UpdateInvoiceRequest{
		Total: &total,
		Notes: &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, version, resp.Version)
	assert.Empty(t, f.publisher.types())
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_RecordPayment_RejectsOutOfRangeAmount(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)

	_, err := f.svc.RecordPayment(context.Background(), f.tenantID, inv.ID, RecordPaymentRequest{Amount: "100000000000000000"})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
	assert.Empty(t, inv.Payments)
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_RecordPayment_ReachesPaid(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)
	f.expectSave(inv, inv.Version+2)

	first, err := f.svc.RecordPayment(context.Background(), f.tenantID, inv.ID, RecordPaymentRequest{Amount: 40.0, Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, "partial", first.Invoice.FinancialStatus)
	assert.Equal(t, "60.00", first.Invoice.BalanceDue.StringFixed(2))
	assert.Nil(t, first.Invoice.PaidAt)

	second, err := f.svc.RecordPayment(context.Background(), f.tenantID, inv.ID, RecordPaymentRequest{Amount: "60.00", Method: "card", Reference: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, "60.00", second.Payment.Amount.StringFixed(2))
	assert.Equal(t, "card", second.Payment.Method)
	assert.Equal(t, "paid", second.Invoice.FinancialStatus)
	assert.Equal(t, "0.00", second.Invoice.BalanceDue.StringFixed(2))
	require.NotNil(t, second.Invoice.PaidAt)
	assert.Equal(t, serviceTestNow, *second.Invoice.PaidAt)
	assert.Equal(t, "sent", second.Invoice.Status, "paying in full does not change the lifecycle status")

	assert.Equal(t, []string{
		invoicing.EventTypeInvoicePaymentRecorded,
		invoicing.EventTypeInvoiceFullyPaid,
		invoicing.EventTypeInvoicePaymentRecorded,
	}, f.publisher.types())
	f.repo.AssertExpectations(t)
}

func TestInvoiceService_RecordPayment_RejectsZero(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)

	_, err := f.svc.RecordPayment(context.Background(), f.tenantID, inv.ID, RecordPaymentRequest{Amount: "abc"})

	assert.Equal(t, "INVALID_AMOUNT", ErrorCode(err))
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_RemovePayment_KeepsPaidAt(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	p1, err := inv.RecordPayment("40", invoicing.PaymentMethodCash, "", serviceTestNow.Add(-time.Minute))
	require.NoError(t, err)
	_, err = inv.RecordPayment("60", invoicing.PaymentMethodCash, "", serviceTestNow.Add(-time.Minute))
	require.NoError(t, err)
	inv.ClearDomainEvents()
	paidAt := *inv.PaidAt

	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	resp, err := f.svc.RemovePayment(context.Background(), f.tenantID, inv.ID, p1.ID)
	require.NoError(t, err)

	assert.Equal(t, "partial", resp.FinancialStatus)
	assert.Equal(t, "40.00", resp.BalanceDue.StringFixed(2))
	require.NotNil(t, resp.PaidAt)
	assert.Equal(t, paidAt, *resp.PaidAt)
	assert.Equal(t, []string{invoicing.EventTypeInvoicePaymentRemoved}, f.publisher.types())
}

func TestInvoiceService_RemovePayment_UnknownPayment(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)

	_, err := f.svc.RemovePayment(context.Background(), f.tenantID, inv.ID, uuid.New())
	assert.Equal(t, "PAYMENT_NOT_FOUND", ErrorCode(err))
}

func TestInvoiceService_GetFinancials_ReportsStale(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "99.99", invoicing.StatusSent)
	// payments written by an older release without derived fields
	inv.Payments = append(inv.Payments,
		invoicing.NewPayment("33.33", invoicing.PaymentMethodCash, "", serviceTestNow),
		invoicing.NewPayment("33.33", invoicing.PaymentMethodCash, "", serviceTestNow),
	)
	f.expectLoad(inv)

	resp, err := f.svc.GetFinancials(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "66.66", resp.PaidAmount.StringFixed(2))
	assert.Equal(t, "33.33", resp.BalanceDue.StringFixed(2))
	assert.Equal(t, "partial", resp.FinancialStatus)
	assert.True(t, resp.Stale)
	assert.Equal(t, "0.00", inv.PaidAmount.StringFixed(2), "reading financials does not mutate the invoice")
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_Recompute(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "50.00", invoicing.StatusSent)
	inv.Payments = append(inv.Payments, invoicing.NewPayment("75.00", invoicing.PaymentMethodCash, "", serviceTestNow))
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	resp, err := f.svc.Recompute(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.FinancialStatus)
	assert.Equal(t, "75.00", resp.PaidAmount.StringFixed(2))
	assert.Equal(t, "0.00", resp.BalanceDue.StringFixed(2))
	assert.Equal(t, "25.00", resp.Overpayment.StringFixed(2))
	assert.Equal(t, []string{invoicing.EventTypeInvoiceFullyPaid}, f.publisher.types())

	// a second recompute finds nothing to change
	again, err := f.svc.Recompute(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Version, again.Version)
	f.repo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestInvoiceService_ConcurrencyConflict(t *testing.T) {
	f := newServiceFixture(t)
	inv := f.storedInvoice(t, "100.00", invoicing.StatusSent)
	f.expectLoad(inv)
	f.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict)

	_, err := f.svc.RecordPayment(context.Background(), f.tenantID, inv.ID, RecordPaymentRequest{Amount: 10})

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Empty(t, f.publisher.types(), "events are not published for a failed save")
}

func TestInvoiceService_LockBusy(t *testing.T) {
	repo := new(MockInvoiceRepository)
	svc := NewInvoiceService(repo, busyLocker{})

	_, err := svc.RecordPayment(context.Background(), uuid.New(), uuid.New(), RecordPaymentRequest{Amount: 10})

	assert.ErrorIs(t, err, shared.ErrResourceBusy)
	assert.Equal(t, "RESOURCE_BUSY", ErrorCode(err))
	repo.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceService_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.err = errors.New("bus down")
	inv := f.storedInvoice(t, "100.00", invoicing.StatusDraft)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	_, err := f.svc.Send(context.Background(), f.tenantID, inv.ID)
	assert.NoError(t, err)
}

func TestInvoiceService_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.New()
	f.repo.On("FindByIDForTenant", mock.Anything, f.tenantID, id).Return(nil, shared.ErrNotFound)

	_, err := f.svc.Get(context.Background(), f.tenantID, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Send(context.Background(), f.tenantID, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestInvoiceService_List(t *testing.T) {
	f := newServiceFixture(t, WithDefaultPageSize(25))
	inv := f.storedInvoice(t, "10.00", invoicing.StatusDraft)
	customerID := uuid.New()

	matchFilter := mock.MatchedBy(func(filter invoicing.InvoiceFilter) bool {
		return filter.Page == 1 && filter.PageSize == 25 &&
			filter.Status != nil && *filter.Status == invoicing.StatusDraft &&
			filter.FinancialStatus != nil && *filter.FinancialStatus == invoicing.FinancialStatusDue &&
			filter.CustomerID != nil && *filter.CustomerID == customerID
	})
	f.repo.On("FindAllForTenant", mock.Anything, f.tenantID, matchFilter).Return([]invoicing.Invoice{*inv}, nil)
	f.repo.On("CountForTenant", mock.Anything, f.tenantID, matchFilter).Return(int64(1), nil)

	items, total, err := f.svc.List(context.Background(), f.tenantID, InvoiceListFilter{
		Status:          "draft",
		FinancialStatus: "due",
		CustomerID:      &customerID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, inv.ID, items[0].ID)

	_, _, err = f.svc.List(context.Background(), f.tenantID, InvoiceListFilter{Status: "archived"})
	assert.Equal(t, "INVALID_STATUS", ErrorCode(err))
}

func TestInvoiceService_Summary(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("SummarizeByFinancialStatus", mock.Anything, f.tenantID).Return([]invoicing.FinancialStatusTotals{
		{FinancialStatus: invoicing.FinancialStatusPaid, Count: 2, TotalMinor: 15000, PaidMinor: 17500, BalanceMinor: 0},
		{FinancialStatus: invoicing.FinancialStatusPartial, Count: 1, TotalMinor: 9999, PaidMinor: 6666, BalanceMinor: 3333},
	}, nil)

	resp, err := f.svc.Summary(context.Background(), f.tenantID)
	require.NoError(t, err)

	require.Len(t, resp.ByFinancialStatus, 3)
	assert.Equal(t, "due", resp.ByFinancialStatus[0].FinancialStatus)
	assert.Equal(t, int64(0), resp.ByFinancialStatus[0].Count)
	assert.Equal(t, "33.33", resp.ByFinancialStatus[1].Balance.StringFixed(2))
	assert.Equal(t, int64(3), resp.InvoiceCount)
	assert.Equal(t, "249.99", resp.TotalBilled.StringFixed(2))
	assert.Equal(t, "241.66", resp.TotalCollected.StringFixed(2))
	assert.Equal(t, "33.33", resp.TotalOutstanding.StringFixed(2))
}

func TestInvoiceService_Instrumentation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := telemetry.NewInvoiceMetrics(mp.Meter("test"))
	require.NoError(t, err)

	f := newServiceFixture(t, WithMetrics(metrics))
	inv := f.storedInvoice(t, "100.00", invoicing.StatusDraft)
	f.expectLoad(inv)
	f.expectSave(inv, inv.Version+1)

	_, err = f.svc.Send(context.Background(), f.tenantID, inv.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateContent(context.Background(), f.tenantID, inv.ID, UpdateInvoiceRequest{})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "InvoiceService.Transition", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "InvoiceService.UpdateContent", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	attrs := make(map[string]string)
	for _, kv := range spans[1].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "INVOICE_LOCKED", attrs[telemetry.SpanAttrErrorCode])
	assert.Equal(t, inv.ID.String(), attrs[telemetry.SpanAttrInvoiceID])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["invoice.transitions.total"])
	assert.Equal(t, int64(1), sums["invoice.rejected.total"])
}
