// Package integration exercises the application services against real
// GORM repositories. An in-memory SQLite database stands in for
// PostgreSQL; behavior that depends on Postgres-only SQL (row claiming
// with SKIP LOCKED, partial indexes) is covered by the repository unit
// tests instead.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// One named in-memory database per test; cache=shared keeps it alive
	// across the pool's connections without leaking into other tests.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.AllocationModel{},
		&models.PeriodLockModel{},
		&models.LedgerEntryModel{},
		&models.AuditRecordModel{},
		&models.DunningCaseModel{},
		&models.SettlementRunModel{},
		&models.DistributionEntryModel{},
		&models.JobModel{},
		&models.ImportRunModel{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
