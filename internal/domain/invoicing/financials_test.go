package invoicing

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payments(amounts ...any) []Payment {
	out := make([]Payment, len(amounts))
	for i, a := range amounts {
		out[i] = NewPayment(a, PaymentMethodCash, "", time.Time{})
	}
	return out
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeFinancials_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		total       any
		payments    []Payment
		paid        string
		balance     string
		status      FinancialStatus
		overpayment string
	}{
		{"exact payment in two parts", 100.00, payments(40.00, 60.00), "100", "0", FinancialStatusPaid, "0"},
		{"cents precision", 99.99, payments(33.33, 33.33), "66.66", "33.33", FinancialStatusPartial, "0"},
		{"overpayment", 50.00, payments(75.00), "75", "0", FinancialStatusPaid, "25"},
		{"no payments", 120.50, nil, "0", "120.5", FinancialStatusDue, "0"},
		{"zero total no payments", 0, nil, "0", "0", FinancialStatusDue, "0"},
		{"zero total with payment", 0, payments(10), "10", "0", FinancialStatusPartial, "10"},
		{"negative total treated as zero", -20, nil, "0", "0", FinancialStatusDue, "0"},
		{"float drift", 0.3, payments(0.1, 0.2), "0.3", "0", FinancialStatusPaid, "0"},
		{"string amounts", "10.00", payments("2.50", "2.50"), "5", "5", FinancialStatusPartial, "0"},
		{"malformed total", "abc", payments(5), "5", "0", FinancialStatusPartial, "5"},
		{"non-finite total", math.Inf(1), nil, "0", "0", FinancialStatusDue, "0"},
		{"malformed payment", 10, payments(math.NaN(), "x", 4), "4", "6", FinancialStatusPartial, "0"},
		{"negative payment offsets", 10, payments(10, -3), "7", "3", FinancialStatusPartial, "0"},
		{"net negative payments", 10, payments(-5), "-5", "15", FinancialStatusDue, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ComputeFinancials(tt.total, tt.payments)
			assertDecimal(t, tt.paid, f.PaidAmount)
			assertDecimal(t, tt.balance, f.BalanceDue)
			assertDecimal(t, tt.overpayment, f.Overpayment)
			assert.Equal(t, tt.status, f.Status)
		})
	}
}

func TestComputeFinancials_CentsOutput(t *testing.T) {
	f := ComputeFinancials(decimal.RequireFromString("99.99"), payments("33.33", "33.33"))
	assert.Equal(t, "66.66", f.PaidAmount.StringFixed(2))
	assert.Equal(t, "33.33", f.BalanceDue.StringFixed(2))
}

func TestComputeFinancials_PermutationInvariant(t *testing.T) {
	ps := payments(12.34, 0.01, 50, "7.65", 29.99)
	want := ComputeFinancials(100, ps)

	perms := [][]int{{4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}, {1, 2, 3, 4, 0}}
	for _, perm := range perms {
		shuffled := make([]Payment, len(ps))
		for i, j := range perm {
			shuffled[i] = ps[j]
		}
		got := ComputeFinancials(100, shuffled)
		assert.True(t, want.PaidAmount.Equal(got.PaidAmount))
		assert.True(t, want.BalanceDue.Equal(got.BalanceDue))
		assert.Equal(t, want.Status, got.Status)
	}
}

func TestComputeFinancials_BalanceNeverNegative(t *testing.T) {
	totals := []any{0, 1, 99.99, 1000, -5, "9999999999999999.99", "100000000000000000", "-1e40"}
	payLists := [][]Payment{
		nil,
		payments(1),
		payments(5000),
		payments(0.01, 0.01),
		payments(-100),
		payments("9999999999999999.99", "9999999999999999.99"),
		payments("100000000000000000"),
		payments("92233720368547758.07", "92233720368547758.07"),
		payments("-92233720368547758.08", "-1"),
		payments("-1e40", "1e40"),
		{{Amount: decimal.RequireFromString("1e17")}},
	}
	for _, total := range totals {
		for _, ps := range payLists {
			f := ComputeFinancials(total, ps)
			assert.False(t, f.BalanceDue.IsNegative())
			assert.False(t, f.Overpayment.IsNegative())

			paid := f.Status == FinancialStatusPaid
			totalPositive := ComputeFinancials(total, nil).BalanceDue.IsPositive()
			assert.Equal(t, totalPositive && f.BalanceDue.IsZero(), paid)
		}
	}
}

func TestComputeFinancials_AmountsBeyondMinorUnitRange(t *testing.T) {
	f := ComputeFinancials(100, []Payment{{Amount: decimal.RequireFromString("100000000000000000")}})
	assert.Equal(t, FinancialStatusPaid, f.Status)
	assertDecimal(t, "0", f.BalanceDue)
	assert.True(t, f.PaidAmount.IsPositive())
	assert.True(t, f.Overpayment.IsPositive())

	f = ComputeFinancials("100000000000000000", payments(100))
	assert.Equal(t, FinancialStatusPartial, f.Status)
	assert.True(t, f.BalanceDue.IsPositive())

	f = ComputeFinancials(100, payments("-1e40", "-1e40"))
	assert.Equal(t, FinancialStatusDue, f.Status)
	assert.True(t, f.BalanceDue.IsPositive())
	assert.True(t, f.PaidAmount.IsNegative())
	assertDecimal(t, "0", f.Overpayment)
}

func TestReconcile_StampsPaidAtOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	snap := Reconcile(100, payments(40, 60), nil, now)
	require.NotNil(t, snap.PaidAt)
	assert.Equal(t, now, *snap.PaidAt)
	assert.True(t, snap.FirstPaidAt(nil))

	later := now.Add(time.Hour)
	again := Reconcile(100, payments(40, 60), snap.PaidAt, later)
	require.NotNil(t, again.PaidAt)
	assert.Equal(t, now, *again.PaidAt)
	assert.False(t, again.FirstPaidAt(snap.PaidAt))
}

func TestReconcile_NeverClearsPaidAt(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	snap := Reconcile(100, payments(40), &paidAt, paidAt.Add(time.Hour))
	assert.Equal(t, FinancialStatusPartial, snap.Status)
	require.NotNil(t, snap.PaidAt)
	assert.Equal(t, paidAt, *snap.PaidAt)
}

func TestReconcile_DoesNotStampUnpaid(t *testing.T) {
	snap := Reconcile(100, payments(99.99), nil, time.Now())
	assert.Nil(t, snap.PaidAt)

	snap = Reconcile(0, nil, nil, time.Now())
	assert.Equal(t, FinancialStatusDue, snap.Status)
	assert.Nil(t, snap.PaidAt)
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := Reconcile(10, payments(10), &paidAt, time.Now())
	*snap.PaidAt = snap.PaidAt.Add(time.Hour)
	assert.Equal(t, 10, paidAt.Hour())
}
