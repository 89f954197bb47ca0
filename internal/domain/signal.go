package domain

// Action represents a strategy decision for one bar.
type Action string

// Action constants.
const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionHold  Action = "hold"
	ActionClose Action = "close"
)

// Signal is the output of a strategy for one bar. A hold signal implies no
// state mutation downstream.
type Signal struct {
	Action     Action
	Confidence float64 // [0, 1]
	Reason     string
}

// Hold returns a hold signal with the given reason.
func Hold(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}

// IsEntry reports whether the signal opens a new exposure.
func (s Signal) IsEntry() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}
