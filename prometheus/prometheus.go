package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suitedirector/suitedirector/log"
	"github.com/suitedirector/suitedirector/types"
	"gorm.io/gorm"
)

// Metrics exports gauges computed from the run ledger, refreshed every 10
// seconds.
func Metrics(database *gorm.DB) {
	ledgerGauge(database, "count", "Total number of device runs in the ledger", nil)
	ledgerGauge(database, "failed", "Device runs that ended in the Failed state",
		func(tx *gorm.DB) *gorm.DB { return tx.Where("state = ?", string(types.StateFailed)) })
	ledgerGauge(database, "leak_risk", "Device runs whose instance may not have been terminated",
		func(tx *gorm.DB) *gorm.DB { return tx.Where("torn_down = ?", false).Where("instance_id <> ?", "") })
}

func ledgerGauge(database *gorm.DB, name, help string, scope func(*gorm.DB) *gorm.DB) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "suitedirector",
		Subsystem: "ledger_runs",
		Name:      name,
		Help:      help,
	})
	prometheus.MustRegister(gauge)

	go func() {
		for range time.Tick(time.Second * 10) {
			gauge.Set(float64(countRuns(database, scope)))
		}
	}()
}

func countRuns(database *gorm.DB, scope func(*gorm.DB) *gorm.DB) int64 {
	var count int64
	tx := database.Model(&types.DeviceRun{})
	if scope != nil {
		tx = scope(tx)
	}
	if err := tx.Count(&count).Error; err != nil {
		log.Error(err)
	}
	return count
}
