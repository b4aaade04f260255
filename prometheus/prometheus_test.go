package prometheus

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestCountRuns(t *testing.T) {
	mockDb, mockSpy, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDb.Close()

	database, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	require.NoError(t, err)

	mockSpy.ExpectQuery(`SELECT count\(\*\) FROM "device_runs"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mockSpy.ExpectQuery(`SELECT count\(\*\) FROM "device_runs" WHERE state = \$1`).
		WithArgs("Failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	assert.Equal(t, int64(12), countRuns(database, nil))
	assert.Equal(t, int64(3), countRuns(database, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("state = ?", "Failed")
	}))
	assert.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestCountRuns_Error(t *testing.T) {
	mockDb, mockSpy, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDb.Close()

	database, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	require.NoError(t, err)

	mockSpy.ExpectQuery(`SELECT count\(\*\) FROM "device_runs"`).WillReturnError(assert.AnError)

	assert.Equal(t, int64(0), countRuns(database, nil))
}
