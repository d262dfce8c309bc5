// Package testutil holds helpers shared by the shop's integration tests:
// database fixtures, token signing and polling assertions.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/infrastructure/auth"
	"github.com/intlshop/backend/internal/infrastructure/config"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// JWTConfig is the verifier config matching SignToken
var JWTConfig = config.JWTConfig{Secret: "integration-secret-0123456789abcdef", Issuer: "intlshop-auth"}

// MockDB wraps a GORM database with sqlmock for testing.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a postgres-dialect GORM handle over sqlmock. It is closed on cleanup.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

// ExpectationsWereMet verifies that all expectations were met.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// NewSQLiteDB returns an in-memory SQLite database with the shop schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SeedSku creates an active product with one SKU and a price per currency.
// prices maps currency code to sale price in minor units.
func SeedSku(t *testing.T, db *gorm.DB, stock int64, prices map[string]int64) int64 {
	t.Helper()
	p := models.ProductModel{Title: "Travel Mug", CoverImageURL: "https://cdn.example/mug.png", Status: "ACTIVE"}
	require.NoError(t, db.Create(&p).Error)

	sku := models.SkuModel{
		ProductID: p.ID,
		SkuCode:   fmt.Sprintf("MUG-%d", p.ID),
		Attrs:     `{"color":"blue"}`,
		Stock:     stock,
		Status:    "ACTIVE",
	}
	require.NoError(t, db.Create(&sku).Error)

	for currency, amount := range prices {
		price := models.SkuPriceModel{SkuID: sku.ID, Currency: currency, SalePrice: amount, IsActive: true}
		require.NoError(t, db.Create(&price).Error)
	}
	return sku.ID
}

// SignToken returns a bearer token accepted by a verifier built from JWTConfig.
func SignToken(t *testing.T, userID int64, role string) string {
	t.Helper()
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    JWTConfig.Issuer,
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserID: userID,
		Role:   role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTConfig.Secret))
	require.NoError(t, err)
	return token
}

// RequireEventually polls condition until it holds or fails the test after timeout.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
