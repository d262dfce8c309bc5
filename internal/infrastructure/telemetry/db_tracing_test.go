package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:32"`
}

func setupTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg.TracerProvider = tp
	require.NoError(t, db.Use(NewDBTracingPlugin(cfg, zaptest.NewLogger(t))))
	return db, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewDBTracingPlugin_Defaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
	assert.Equal(t, "shop:db_tracing", p.Name())

	def := DefaultDBTracingConfig()
	assert.False(t, def.Enabled)
	assert.False(t, def.LogFullSQL)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db, recorder := setupTracedDB(t, DBTracingConfig{Enabled: false})

	require.NoError(t, db.Create(&tracedRow{Code: "A"}).Error)
	assert.Empty(t, recorder.Ended())
}

func TestDBTracingPlugin_AnnotatesStatementSpans(t *testing.T) {
	db, recorder := setupTracedDB(t, DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Nanosecond,
		DBSystem:        "sqlite",
	})

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Code: "A"}).Error)
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Where("code = ?", "A").Find(&rows).Error)
	require.Len(t, rows, 1)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	var annotated int
	for _, span := range spans {
		table, ok := spanAttr(span, "db.sql.table")
		if !ok {
			continue
		}
		annotated++
		assert.Equal(t, "traced_rows", table.AsString())

		rowsAffected, ok := spanAttr(span, "db.rows_affected")
		require.True(t, ok)
		assert.Equal(t, int64(1), rowsAffected.AsInt64())

		slow, ok := spanAttr(span, "db.slow_query")
		require.True(t, ok, "every statement exceeds a 1ns threshold")
		assert.True(t, slow.AsBool())

		var sawEvent bool
		for _, ev := range span.Events() {
			if ev.Name == "slow_query_warning" {
				sawEvent = true
			}
		}
		assert.True(t, sawEvent)
	}
	assert.Equal(t, 2, annotated)
}

func TestDBTracingPlugin_MarksErrors(t *testing.T) {
	db, recorder := setupTracedDB(t, DBTracingConfig{Enabled: true})

	err := db.WithContext(context.Background()).Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)

	var errored bool
	for _, span := range recorder.Ended() {
		if span.Status().Code == codes.Error {
			errored = true
		}
	}
	assert.True(t, errored)
}

func TestDBTracingPlugin_IgnoresRecordNotFound(t *testing.T) {
	db, recorder := setupTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour})

	var row tracedRow
	err := db.WithContext(context.Background()).First(&row, "code = ?", "nope").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	for _, span := range recorder.Ended() {
		_, slow := spanAttr(span, "db.slow_query")
		assert.False(t, slow)
		if _, ok := spanAttr(span, "db.sql.table"); ok {
			assert.NotEqual(t, codes.Error, span.Status().Code)
		}
	}
}
