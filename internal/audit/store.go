// Package audit persists the engine's decision trail to SQLite. Writes are
// best-effort: a broken audit disk must never block or fail a trade.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "talon/internal/logger"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the SQLite audit database. A nil *Store is valid and drops
// everything, which is how a disabled audit sink is expressed.
type Store struct {
	db *gorm.DB
}

// Open creates or migrates the audit database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := db.AutoMigrate(&RunModel{}, &DecisionModel{}, &TradeModel{}, &EventModel{}); err != nil {
		return nil, fmt.Errorf("migrate audit store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun marks the start of a session.
func (s *Store) RecordRun(runID, symbol, timeframe string) {
	if s == nil || s.db == nil {
		return
	}
	rec := RunModel{RunID: runID, Symbol: symbol, Timeframe: timeframe, StartedAt: time.Now().UTC()}
	if err := s.db.Create(&rec).Error; err != nil {
		applog.Warnf("audit: record run failed: %v", err)
	}
}

// RecordDecision logs one proposal verdict.
func (s *Store) RecordDecision(runID, symbol, operation string, probability float64, signalQuality int, confidence float64, accepted bool, reasons []string, raw []byte) {
	if s == nil || s.db == nil {
		return
	}
	rec := DecisionModel{
		RunID:         runID,
		Symbol:        symbol,
		Operation:     operation,
		Probability:   probability,
		SignalQuality: signalQuality,
		Confidence:    confidence,
		Accepted:      accepted,
		Raw:           datatypes.JSON(raw),
		CreatedAt:     time.Now().UTC(),
	}
	if len(reasons) > 0 {
		if b, err := json.Marshal(reasons); err == nil {
			rec.Reasons = datatypes.JSON(b)
		}
	}
	if err := s.db.Create(&rec).Error; err != nil {
		applog.Warnf("audit: record decision failed: %v", err)
	}
}

// RecordTrade logs an order placement.
func (s *Store) RecordTrade(runID, orderID, symbol, side string, entry, stop, target, size float64) {
	if s == nil || s.db == nil {
		return
	}
	rec := TradeModel{
		RunID: runID, OrderID: orderID, Symbol: symbol, Side: side,
		Entry: entry, Stop: stop, Target: target, Size: size,
		Status: "placed", CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		applog.Warnf("audit: record trade failed: %v", err)
	}
}

// UpdateTradeStatus transitions a trade record and optionally books PnL.
func (s *Store) UpdateTradeStatus(orderID, status string, pnl float64, note string) {
	if s == nil || s.db == nil {
		return
	}
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if pnl != 0 {
		updates["pn_l"] = pnl
	}
	if note != "" {
		updates["note"] = note
	}
	if err := s.db.Model(&TradeModel{}).Where("order_id = ?", orderID).Updates(updates).Error; err != nil {
		applog.Warnf("audit: update trade %s failed: %v", orderID, err)
	}
}

// RecordEvent logs a non-trade event (breaker trip, reconcile alert, admin
// action).
func (s *Store) RecordEvent(runID, kind, severity, message string) {
	if s == nil || s.db == nil {
		return
	}
	rec := EventModel{RunID: runID, Kind: kind, Severity: severity, Message: message, CreatedAt: time.Now().UTC()}
	if err := s.db.Create(&rec).Error; err != nil {
		applog.Warnf("audit: record event failed: %v", err)
	}
}
