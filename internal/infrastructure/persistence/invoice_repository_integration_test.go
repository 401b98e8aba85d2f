//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/infrastructure/migration"
	"github.com/shopdesk/backend/migrations"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresInvoiceDB starts a throwaway PostgreSQL container and applies
// the embedded migrations to it.
func newPostgresInvoiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shopdesk_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	return db
}

func TestPostgresInvoiceRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db := newPostgresInvoiceDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("round trip keeps exact amounts", func(t *testing.T) {
		inv := createTestInvoice(t, repo, tenantID, "INV-20260314-0001", "99.99")
		_, err := inv.Send(repoTestNow)
		require.NoError(t, err)
		_, err = inv.RecordPayment("33.33", invoicing.PaymentMethodCash, "", repoTestNow)
		require.NoError(t, err)
		_, err = inv.RecordPayment("33.33", invoicing.PaymentMethodCard, "txn-9", repoTestNow)
		require.NoError(t, err)
		inv.IncrementVersion()
		require.NoError(t, repo.SaveWithLock(ctx, inv))

		stored, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.True(t, stored.PaidAmount.Equal(decimal.RequireFromString("66.66")))
		assert.True(t, stored.BalanceDue.Equal(decimal.RequireFromString("33.33")))
		assert.Equal(t, invoicing.FinancialStatusPartial, stored.FinancialStatus)
		require.Len(t, stored.Payments, 2)
		assert.Equal(t, invoicing.PaymentMethodCard, stored.Payments[1].Method)
	})

	t.Run("duplicate numbers are rejected per tenant", func(t *testing.T) {
		createTestInvoice(t, repo, tenantID, "INV-20260314-0002", 10)
		dup, err := invoicing.NewInvoice(tenantID, "INV-20260314-0002", uuid.New(), "Sam", 10, repoTestNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("concurrent writers on one version", func(t *testing.T) {
		inv := createTestInvoice(t, repo, tenantID, "INV-20260314-0003", 100)

		const writers = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				copyInv, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
				if err != nil {
					return
				}
				copyInv.Version = 1
				if _, err := copyInv.RecordPayment(10, invoicing.PaymentMethodCash, "", repoTestNow); err != nil {
					return
				}
				copyInv.IncrementVersion()
				err = repo.SaveWithLock(ctx, copyInv)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case assert.ErrorIs(t, err, shared.ErrConcurrencyConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, writers-1, conflicts)

		stored, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Payments, 1)
		assert.Equal(t, 2, stored.Version)
	})

	t.Run("summary and numbering", func(t *testing.T) {
		totals, err := repo.SummarizeByFinancialStatus(ctx, tenantID)
		require.NoError(t, err)
		assert.NotEmpty(t, totals)

		next, err := repo.GenerateInvoiceNumber(ctx, tenantID, "INV", repoTestNow)
		require.NoError(t, err)
		assert.Equal(t, "INV-20260314-0004", next)
	})
}
