package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type ticket struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T, logg *logger.Logger, slow time.Duration) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver:     DriverSQLite,
		SQLitePath: "file:db_" + uuid.NewString() + "?mode=memory&cache=shared",
		SlowQuery:  slow,
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&ticket{}))
	return client
}

func countTickets(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&ticket{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := openSQLite(t, nil, 0)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ticket{Code: "committed"}).Error
	}))
	assert.EqualValues(t, 1, countTickets(t, client))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ticket{Code: "rolled"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countTickets(t, client))

	assert.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			tx.Create(&ticket{Code: "panicked"})
			panic("handler bug")
		})
	})
	assert.EqualValues(t, 1, countTickets(t, client))
}

func TestNewValidatesDriverSettings(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "mysql"}, nil)
	assert.ErrorContains(t, err, "unsupported")
	_, err = New(context.Background(), config.DBConfig{Driver: DriverPostgres}, nil)
	assert.ErrorContains(t, err, "DSN")
	_, err = New(context.Background(), config.DBConfig{Driver: DriverSQLite}, nil)
	assert.ErrorContains(t, err, "sqlite path")
}

func TestPingDriverAndNilClient(t *testing.T) {
	client := openSQLite(t, nil, 0)
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, client.Driver())

	var missing *Client
	assert.Error(t, missing.Ping(context.Background()))
	assert.NoError(t, missing.Close())
}

func TestQueryLoggerReportsFailuresNotMisses(t *testing.T) {
	var buf bytes.Buffer
	client := openSQLite(t, logger.New(logger.Options{ServiceName: "test", Output: &buf}), 0)
	conn := client.DB()

	var got ticket
	err := conn.First(&got, "code = ?", "absent").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "query failed")

	require.NoError(t, conn.Create(&ticket{Code: "dup"}).Error)
	require.Error(t, conn.Create(&ticket{Code: "dup"}).Error)
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "UNIQUE")
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	conn := openSQLite(t, nil, 0).DB()
	require.NoError(t, conn.Create(&ticket{Code: "dup"}).Error)
	err := conn.Create(&ticket{Code: "dup"}).Error
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}
