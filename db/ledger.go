package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/types"
	"gorm.io/gorm"
)

// Ledger stores one DeviceRun row per completed device run.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(database *gorm.DB) *Ledger {
	return &Ledger{db: database}
}

func (l *Ledger) Record(ctx context.Context, run *types.DeviceRun) error {
	err := l.db.WithContext(ctx).Create(run).Error
	if err != nil {
		return types.NewError(types.PersistenceError, errors.Wrap(err, "Ledger::Record"))
	}
	return nil
}

// RunsForSuite returns the runs of a suite, oldest first.
func (l *Ledger) RunsForSuite(ctx context.Context, suiteName string) ([]types.DeviceRun, error) {
	runs := []types.DeviceRun{}
	err := l.db.WithContext(ctx).Where("suite_name = ?", suiteName).Order("created_at").Find(&runs).Error
	if err != nil {
		return nil, errors.Wrap(err, "Ledger::RunsForSuite")
	}
	return runs, nil
}
