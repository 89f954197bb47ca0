// Package paper drives strategies against a live bar stream with the same
// risk and execution pipeline the backtester uses. Each runner owns its
// strategy state and capital ledger; observers receive typed events through a
// publish/subscribe bus and are never known to the runner.
package paper

import (
	"time"

	"strategy-lab/internal/domain"
)

// EventType identifies a runner event.
type EventType string

const (
	EventSignal        EventType = "signal"
	EventTrade         EventType = "trade"
	EventRiskRejection EventType = "risk_rejection"
	EventWarning       EventType = "warning"
	EventEquity        EventType = "equity"
)

// Event is one typed runner event. Within a runner, events arrive in the
// exact order they occurred relative to bar processing; ordering across
// runners is not guaranteed.
type Event struct {
	Type       EventType `json:"type"`
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`

	// Payload, one of the following depending on Type.
	Signal  *domain.Signal      `json:"signal,omitempty"`
	Trade   *domain.Trade       `json:"trade,omitempty"`
	Equity  *domain.EquityPoint `json:"equity,omitempty"`
	Message string              `json:"message,omitempty"`
}
