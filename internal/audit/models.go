package audit

import (
	"time"

	"gorm.io/datatypes"
)

// RunModel marks one engine session: one row per process start.
type RunModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:64;uniqueIndex"`
	Symbol    string `gorm:"size:32"`
	Timeframe string `gorm:"size:8"`
	StartedAt time.Time
}

func (RunModel) TableName() string { return "runs" }

// DecisionModel records one oracle proposal and what the safety layer did
// with it.
type DecisionModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:64;index"`
	Symbol    string `gorm:"size:32;index"`
	Operation string `gorm:"size:16"`

	Probability   float64
	SignalQuality int
	Confidence    float64

	Accepted bool
	Reasons  datatypes.JSON `gorm:"type:json"`
	Raw      datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time `gorm:"index"`
}

func (DecisionModel) TableName() string { return "decisions" }

// TradeModel records the lifecycle of one order: placement, fill or expiry,
// and the realized result when the position closes.
type TradeModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	RunID   string `gorm:"size:64;index"`
	OrderID string `gorm:"size:64;index"`
	Symbol  string `gorm:"size:32;index"`
	Side    string `gorm:"size:8"`

	Entry  float64
	Stop   float64
	Target float64
	Size   float64

	Status string `gorm:"size:24;index"` // placed|filled|expired|closed
	PnL    float64
	Note   string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (TradeModel) TableName() string { return "trades" }

// EventModel is the catch-all log for breaker trips, reconcile alerts and
// admin actions.
type EventModel struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RunID    string `gorm:"size:64;index"`
	Kind     string `gorm:"size:48;index"`
	Severity string `gorm:"size:16"`
	Message  string `gorm:"size:1024"`

	CreatedAt time.Time `gorm:"index"`
}

func (EventModel) TableName() string { return "events" }
