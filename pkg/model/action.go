package model

// ActionKey identifies a button on an interactive task card.
type ActionKey string

const (
	ActionComplete ActionKey = "COMPLETE"
	ActionPass     ActionKey = "PASS"
	ActionReject   ActionKey = "REJECT"
)

// Action is one button offered with a notification.
type Action struct {
	Key   ActionKey `json:"key"`
	Label string    `json:"label"`
}

// Interaction is an inbound card action.
type Interaction struct {
	UserID     string    `json:"user_id"`
	ScheduleID string    `json:"schedule_id"`
	Action     ActionKey `json:"action"`
	Reason     string    `json:"reason"`
}
