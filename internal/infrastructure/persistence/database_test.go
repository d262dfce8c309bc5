package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/config"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestNewDatabase(t *testing.T) {
	t.Run("opens sqlite file database", func(t *testing.T) {
		cfg := &config.DatabaseConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/shop.db"}

		db, err := NewDatabase(cfg, Options{})
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, db.Ping(context.Background()))
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()

	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("successful transaction", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		type TestModel struct {
			ID   uint
			Name string
		}

		mock.ExpectBegin()
		// PostgreSQL GORM uses Query with RETURNING clause instead of Exec
		mock.ExpectQuery(`INSERT INTO "test_models"`).
			WithArgs("test").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return tx.Create(&TestModel{Name: "test"}).Error
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transaction rollback on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReserveStock_GuardedUpdate(t *testing.T) {
	t.Run("no matching row means insufficient stock", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "product_sku" SET .* WHERE id = \$\d+ AND stock >= \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := reserveStock(db.DB, map[int64]int64{42: 3})
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skus are locked in ascending id order", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "product_sku"`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "product_sku"`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(9), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, reserveStock(db.DB, map[int64]int64{9: 2, 3: 1}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil, "order"))
	assert.True(t, shared.IsNotFound(translateError(gorm.ErrRecordNotFound, "order PO1")))
	assert.True(t, shared.IsConflict(translateError(gorm.ErrDuplicatedKey, "order PO1")))

	domain := shared.NewConflictError("already paid")
	assert.Same(t, domain, translateError(domain, "order"))

	wrapped := translateError(errors.New("connection reset"), "order PO1")
	assert.EqualError(t, wrapped, "order PO1: connection reset")
}
