package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suitedirector/suitedirector/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	mockDb, mockSpy, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	database, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	require.NoError(t, err)

	return NewLedger(database), mockSpy
}

func TestLedger_Record(t *testing.T) {
	ledger, mockSpy := mockLedger(t)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`INSERT INTO "device_runs"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mockSpy.ExpectCommit()

	exitCode := 0
	err := ledger.Record(context.Background(), &types.DeviceRun{
		ID:        "7b0d3c3e-3a8e-4a43-9a43-9a5a3d1c3b11",
		SuiteName: "smoke",
		SessionID: "04217",
		State:     string(types.StateTerminated),
		ExitCode:  &exitCode,
		TornDown:  true,
		StartedAt: time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestLedger_Record_Error(t *testing.T) {
	ledger, mockSpy := mockLedger(t)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`INSERT INTO "device_runs"`).WillReturnError(assert.AnError)
	mockSpy.ExpectRollback()

	err := ledger.Record(context.Background(), &types.DeviceRun{ID: "x", SuiteName: "smoke"})
	require.Error(t, err)
	assert.Equal(t, types.PersistenceError, types.KindOf(err))
	assert.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestLedger_RunsForSuite(t *testing.T) {
	ledger, mockSpy := mockLedger(t)

	rows := sqlmock.NewRows([]string{"id", "suite_name", "session_id", "state", "torn_down"}).
		AddRow("a", "smoke", "00001", "Terminated", true).
		AddRow("b", "smoke", "00002", "Failed", false)
	mockSpy.ExpectQuery(`SELECT \* FROM "device_runs" WHERE suite_name = \$1 ORDER BY created_at`).
		WithArgs("smoke").
		WillReturnRows(rows)

	runs, err := ledger.RunsForSuite(context.Background(), "smoke")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "00001", runs[0].SessionID)
	assert.True(t, runs[0].TornDown)
	assert.Equal(t, "Failed", runs[1].State)
	assert.NoError(t, mockSpy.ExpectationsWereMet())
}
