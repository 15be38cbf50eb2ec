package journal

import (
	"time"

	"main/internal/ledger"
	"main/internal/risk"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OrderRecord is one order lifecycle event.
type OrderRecord struct {
	ID         uint      `gorm:"primaryKey"`
	OrderID    int64     `gorm:"index"`
	ClientID   string    `gorm:"index"`
	Coin       string    `gorm:"index"`
	Side       string
	Type       string
	Status     string
	Size       float64
	Price      float64
	ReduceOnly bool
	CreatedAt  time.Time
}

// FillRecord is one observed fill.
type FillRecord struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   int64  `gorm:"index"`
	Coin      string `gorm:"index"`
	Side      string
	Size      float64
	AvgPrice  float64
	CreatedAt time.Time
}

// BreachRecord is one risk-gate trip.
type BreachRecord struct {
	ID        uint `gorm:"primaryKey"`
	Reason    string
	CreatedAt time.Time
}

// Journal writes trading events to Postgres for audit. It is strictly
// write-only: nothing here is ever read back into trading state, and a nil
// journal silently records nothing.
type Journal struct {
	db *gorm.DB
}

// Open connects to the given DSN and migrates the record tables. An empty
// DSN returns a nil journal, which disables recording.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open journal database")
	}
	if err := db.AutoMigrate(&OrderRecord{}, &FillRecord{}, &BreachRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate journal tables")
	}
	return &Journal{db: db}, nil
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordOrder persists one order event. Failures are logged, never
// propagated; the audit trail must not interfere with trading.
func (j *Journal) RecordOrder(o ledger.Order) {
	if j == nil || j.db == nil {
		return
	}
	record := OrderRecord{
		OrderID:    o.OrderID,
		ClientID:   o.ClientID,
		Coin:       o.Coin,
		Side:       o.Side.String(),
		Type:       o.Type.String(),
		Status:     o.Status.String(),
		Size:       o.Size,
		Price:      o.Price,
		ReduceOnly: o.ReduceOnly,
		CreatedAt:  time.Now(),
	}
	if err := j.db.Create(&record).Error; err != nil {
		logs.Warnf("journal order write failed, err: %+v", err)
	}
}

// RecordFill persists one fill event.
func (j *Journal) RecordFill(o ledger.Order) {
	if j == nil || j.db == nil {
		return
	}
	record := FillRecord{
		OrderID:   o.OrderID,
		Coin:      o.Coin,
		Side:      o.Side.String(),
		Size:      o.FilledSize,
		AvgPrice:  o.AvgFillPrice,
		CreatedAt: time.Now(),
	}
	if err := j.db.Create(&record).Error; err != nil {
		logs.Warnf("journal fill write failed, err: %+v", err)
	}
}

// RecordBreach persists one risk-gate trip.
func (j *Journal) RecordBreach(checks risk.CheckResult) {
	if j == nil || j.db == nil {
		return
	}
	record := BreachRecord{Reason: checks.Reason, CreatedAt: time.Now()}
	if err := j.db.Create(&record).Error; err != nil {
		logs.Warnf("journal breach write failed, err: %+v", err)
	}
}
